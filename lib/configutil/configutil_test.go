package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username string `json:"username"`
	BaseUrl  string `json:"baseUrl"`
}

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"),
		`{username: "student", baseUrl: "https://lms.mtuci.ru"}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"),
		`{username: "localstudent"}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	assert.Equal(t, "localstudent", cfg.Username)
	assert.Equal(t, "https://lms.mtuci.ru", cfg.BaseUrl)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{username: "s"}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	assert.Equal(t, "s", cfg.Username)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursivelyFindsParentConfig(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeFile(t, filepath.Join(dir, "config.json5"), `{username: "up"}`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := ReadRecursively[testConfig]("config.json5")
	require.NoError(t, err)
	assert.Equal(t, "up", cfg.Username)
}
