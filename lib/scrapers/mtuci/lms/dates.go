package lms

import (
	"fmt"
	"regexp"
	"strings"
)

var genitiveMonths = map[string]int{
	"января":   1,
	"февраля":  2,
	"марта":    3,
	"апреля":   4,
	"мая":      5,
	"июня":     6,
	"июля":     7,
	"августа":  8,
	"сентября": 9,
	"октября":  10,
	"ноября":   11,
	"декабря":  12,
}

var longDateRe = regexp.MustCompile(`(\d{1,2})\s+([а-яё]+)\s+(\d{4})(?:,?\s+(\d{1,2}:\d{2}))?`)

// ShortDate rewrites the portal's verbose date strings, e.g.
// "среда, 12 мая 2025, 14:00", into "12.05.2025 14:00". Strings that
// do not look like a date pass through untouched.
func ShortDate(s string) string {
	m := longDateRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return s
	}
	month, ok := genitiveMonths[m[2]]
	if !ok {
		return s
	}
	day := m[1]
	if len(day) == 1 {
		day = "0" + day
	}
	out := fmt.Sprintf("%s.%02d.%s", day, month, m[3])
	if m[4] != "" {
		out += " " + m[4]
	}
	return out
}

var timeLeftRe = regexp.MustCompile(`(?:(\d+)\s*дн\.)?\s*[-–]?\s*(?:(\d+)\s*час\.)?`)

// CompactTimeLeft shortens the remaining-time cell, e.g.
// "0 дн. - 2 час. осталось" becomes "2 ч". Overdue and free-form
// values pass through.
func CompactTimeLeft(s string) string {
	if !strings.Contains(s, "дн.") && !strings.Contains(s, "час.") {
		return s
	}
	m := timeLeftRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	var parts []string
	if m[1] != "" && m[1] != "0" {
		parts = append(parts, m[1]+" д")
	}
	if m[2] != "" && m[2] != "0" {
		parts = append(parts, m[2]+" ч")
	}
	if len(parts) == 0 {
		return s
	}
	return strings.Join(parts, " ")
}

// StatusEmoji maps the portal's status phrases to compact markers for
// notification text.
func StatusEmoji(responseStatus, gradeStatus string) (string, string) {
	response := "▪️"
	switch {
	case strings.Contains(responseStatus, "Отправлено для оценивания"):
		response = "📤"
	case strings.Contains(responseStatus, "Ответы на задание еще не представлены"):
		response = "⚠️"
	}

	grade := "⚪"
	switch {
	case strings.Contains(gradeStatus, "Не оценено"):
		grade = "🔴"
	case strings.Contains(gradeStatus, "Оценено"):
		grade = "🟢"
	}
	return response, grade
}
