package lk

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mtuciassist-backend/lib/htmlutil"
	"mtuciassist-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

// The cabinet sometimes serves the schedule as a rendered month grid
// instead of the background payload. The grid is a sequence of week
// rows; the first and last rows bleed into the adjacent months, and
// those cells carry only a bare day number, so dates have to be
// reconstructed from the caption.

var nominativeMonths = map[string]time.Month{
	"январь":   time.January,
	"февраль":  time.February,
	"март":     time.March,
	"апрель":   time.April,
	"май":      time.May,
	"июнь":     time.June,
	"июль":     time.July,
	"август":   time.August,
	"сентябрь": time.September,
	"октябрь":  time.October,
	"ноябрь":   time.November,
	"декабрь":  time.December,
}

// parseCaption splits a grid caption such as "Декабрь 2025" or
// "Декабрь" into month and year. A missing year is returned as zero.
func parseCaption(caption string) (time.Month, int, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(caption)))
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("empty month caption")
	}
	month, ok := nominativeMonths[fields[0]]
	if !ok {
		return 0, 0, fmt.Errorf("unknown month caption %q", fields[0])
	}
	year := 0
	if len(fields) > 1 {
		year, _ = strconv.Atoi(fields[1])
	}
	return month, year, nil
}

// captionYear resolves a caption without an explicit year against the
// current date. A January grid viewed in December belongs to the next
// year, a December grid viewed in January to the previous one.
func captionYear(month time.Month, now time.Time) int {
	year := now.Year()
	if month == time.January && now.Month() == time.December {
		year++
	}
	if month == time.December && now.Month() == time.January {
		year--
	}
	return year
}

// ResolveGridDate reconstructs a full date for a day-number cell.
// firstRow and lastRow mark cells in the grid's boundary rows, where
// the number may belong to the adjacent month: a high number in the
// first row is the previous month's tail, a low number in the last row
// is the next month's head. The cutoff at 15 cannot be hit by a real
// spill row, which is never longer than seven days.
func ResolveGridDate(day int, caption time.Month, year int, firstRow, lastRow bool) time.Time {
	month := caption
	switch {
	case firstRow && day > 15:
		month--
		if month < time.January {
			month = time.December
			year--
		}
	case lastRow && day < 15:
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, timezone.Location)
}

// ParseCalendarGrid extracts timetable entries from the rendered month
// view. Expected shape: a caption element, then week rows of day cells
// holding a day number and zero or more lesson blocks.
func ParseCalendarGrid(html string, now time.Time) ([]TimetableEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	caption := htmlutil.CleanText(doc.Find(".schedule-caption").First())
	month, year, err := parseCaption(caption)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = captionYear(month, now)
	}

	weeks := doc.Find(".schedule-week")
	var entries []TimetableEntry
	weeks.Each(func(week int, row *goquery.Selection) {
		firstRow := week == 0
		lastRow := week == weeks.Length()-1

		row.Find(".schedule-day").Each(func(_ int, cell *goquery.Selection) {
			dayText := htmlutil.CleanText(cell.Find(".day-number").First())
			day, err := strconv.Atoi(dayText)
			if err != nil {
				return
			}
			date := ResolveGridDate(day, month, year, firstRow, lastRow).Format("02.01.2006")

			cell.Find(".schedule-lesson").Each(func(_ int, lesson *goquery.Selection) {
				entries = append(entries, TimetableEntry{
					Date:         date,
					Type:         orDash(htmlutil.CleanText(lesson.Find(".lesson-type").First())),
					Lesson:       orDash(htmlutil.CleanText(lesson.Find(".lesson-name").First())),
					Teacher:      orDash(htmlutil.CleanText(lesson.Find(".lesson-teacher").First())),
					TimeOfLesson: orDash(htmlutil.CleanText(lesson.Find(".lesson-time").First())),
					Cabinet:      htmlutil.CleanText(lesson.Find(".lesson-cabinet").First()),
				})
			})
		})
	})
	return entries, nil
}
