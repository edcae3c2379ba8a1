package watcher

import (
	"strings"

	"mtuciassist-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

// subjectAliases expands the abbreviations the schedule uses for
// subjects into the full course names the LMS uses.
var subjectAliases = map[string]string{
	"ТИДЗ":  "Теория информации, данные, знания",
	"ИЯ":    "Иностранный язык",
	"САИИО": "Системный анализ и исследование операций",
	"Ф":     "Физика",
	"ДМ":    "Дискретная математика",
	"ИТИП":  "Информационные технологии и программирование",
	"ОП":    "Основы права",
	"СИАОД": "Структуры и алгоритмы обработки данных",
}

const subjectMatchThreshold = 0.85

// ExpandSubject resolves a timetable subject label to one of the
// user's tracked course names. Known abbreviations resolve through the
// alias table, everything else falls back to fuzzy matching so that
// truncated or reworded labels still line up with their course.
func ExpandSubject(label string, courses []string) string {
	label = strings.TrimSpace(label)
	if full, ok := subjectAliases[strings.ToUpper(label)]; ok {
		label = full
	}

	normalized := textutil.NormalizeName(label)
	best := label
	bestScore := subjectMatchThreshold
	for _, course := range courses {
		score := matchr.JaroWinkler(normalized, textutil.NormalizeName(course), true)
		if score > bestScore {
			best = course
			bestScore = score
		}
	}
	return best
}
