package lms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"среда, 12 мая 2025, 14:00", "12.05.2025 14:00"},
		{"понедельник, 3 марта 2025, 09:00", "03.03.2025 09:00"},
		{"1 января 2026", "01.01.2026"},
		{"не указано", "не указано"},
		{"", ""},
		{"вчера", "вчера"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ShortDate(c.in), "input %q", c.in)
	}
}

func TestCompactTimeLeft(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"0 дн. - 2 час. осталось", "2 ч"},
		{"6 дн. - 23 час. осталось", "6 д 23 ч"},
		{"3 дн. осталось", "3 д"},
		{"Задание просрочено", "Задание просрочено"},
		{"—", "—"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CompactTimeLeft(c.in), "input %q", c.in)
	}
}

func TestStatusEmoji(t *testing.T) {
	response, grade := StatusEmoji("Отправлено для оценивания", "Не оценено")
	assert.Equal(t, "📤", response)
	assert.Equal(t, "🔴", grade)

	response, grade = StatusEmoji("Ответы на задание еще не представлены", "Оценено")
	assert.Equal(t, "⚠️", response)
	assert.Equal(t, "🟢", grade)

	response, grade = StatusEmoji("—", "—")
	assert.Equal(t, "▪️", response)
	assert.Equal(t, "⚪", grade)
}
