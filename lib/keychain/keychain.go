package keychain

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Keychain seals and opens portal credentials so they are never stored
// in cleartext. The key is derived from a deployment-wide master secret,
// ciphertexts are self-contained (nonce-prefixed) base64 strings suitable
// for a text column.
type Keychain struct {
	aead cipher.AEAD
}

var ErrDecrypt = fmt.Errorf("could not decrypt credential")

// the salt is fixed: there is exactly one master secret per deployment
// and ciphertexts must be decryptable after a restart
var keySalt = []byte("mtuciassist.keychain.v1")

func New(masterSecret string) (Keychain, error) {
	if masterSecret == "" {
		return Keychain{}, fmt.Errorf("master secret is empty")
	}
	key := argon2.IDKey([]byte(masterSecret), keySalt, 1, 64*1024, 4, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return Keychain{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Keychain{}, err
	}
	return Keychain{aead: aead}, nil
}

func (k Keychain) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := k.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (k Keychain) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecrypt, err)
	}
	if len(raw) < k.aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce := raw[:k.aead.NonceSize()]
	plaintext, err := k.aead.Open(nil, nonce, raw[k.aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
