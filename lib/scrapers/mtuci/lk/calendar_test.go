package lk

import (
	"testing"
	"time"

	"mtuciassist-backend/lib/timezone"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveGridDate(t *testing.T) {
	cases := []struct {
		name     string
		day      int
		caption  time.Month
		year     int
		firstRow bool
		lastRow  bool
		want     string
	}{
		{"december own day", 30, time.December, 2025, false, true, "30.12.2025"},
		{"december last day", 31, time.December, 2025, false, true, "31.12.2025"},
		{"december first day", 1, time.December, 2025, true, false, "01.12.2025"},
		{"january spill in december grid", 2, time.December, 2025, false, true, "02.01.2026"},
		{"december spill in january grid", 31, time.January, 2026, true, false, "31.12.2025"},
		{"december spill late-month day", 28, time.January, 2026, true, false, "28.12.2025"},
		{"january own low day", 2, time.January, 2026, true, false, "02.01.2026"},
		{"mid month untouched", 15, time.January, 2026, true, true, "15.01.2026"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ResolveGridDate(c.day, c.caption, c.year, c.firstRow, c.lastRow)
			assert.Equal(t, c.want, got.Format("02.01.2006"))
		})
	}
}

func TestCaptionYear(t *testing.T) {
	decNow := time.Date(2025, time.December, 20, 12, 0, 0, 0, timezone.Location)
	janNow := time.Date(2026, time.January, 5, 12, 0, 0, 0, timezone.Location)

	assert.Equal(t, 2026, captionYear(time.January, decNow))
	assert.Equal(t, 2025, captionYear(time.December, decNow))
	assert.Equal(t, 2025, captionYear(time.December, janNow))
	assert.Equal(t, 2026, captionYear(time.January, janNow))
}

const calendarFixture = `
<html><body>
<div class="schedule-caption">Январь</div>
<div class="schedule-week">
  <div class="schedule-day">
    <span class="day-number">29</span>
    <div class="schedule-lesson">
      <span class="lesson-time">09:30-11:05</span>
      <span class="lesson-name">Физика</span>
      <span class="lesson-type">Лекция</span>
      <span class="lesson-teacher">Петров П.П.</span>
      <span class="lesson-cabinet">А-405</span>
    </div>
  </div>
  <div class="schedule-day"><span class="day-number">1</span></div>
</div>
<div class="schedule-week">
  <div class="schedule-day">
    <span class="day-number">12</span>
    <div class="schedule-lesson">
      <span class="lesson-time">11:20-12:55</span>
      <span class="lesson-name">Дискретная математика</span>
    </div>
  </div>
</div>
<div class="schedule-week">
  <div class="schedule-day"><span class="day-number">31</span></div>
  <div class="schedule-day">
    <span class="day-number">2</span>
    <div class="schedule-lesson">
      <span class="lesson-time">09:30-11:05</span>
      <span class="lesson-name">Иностранный язык</span>
    </div>
  </div>
</div>
</body></html>`

func TestParseCalendarGrid(t *testing.T) {
	now := time.Date(2025, time.December, 28, 12, 0, 0, 0, timezone.Location)
	entries, err := ParseCalendarGrid(calendarFixture, now)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	leading := entries[0]
	assert.Equal(t, "29.12.2025", leading.Date)
	assert.Equal(t, "Физика", leading.Lesson)
	assert.Equal(t, "Лекция", leading.Type)
	assert.Equal(t, "Петров П.П.", leading.Teacher)
	assert.Equal(t, "А-405", leading.Cabinet)

	own := entries[1]
	assert.Equal(t, "12.01.2026", own.Date)
	assert.Equal(t, "Дискретная математика", own.Lesson)
	assert.Equal(t, "—", own.Type)
	assert.Equal(t, "—", own.Teacher)

	trailing := entries[2]
	assert.Equal(t, "02.02.2026", trailing.Date)
	assert.Equal(t, "Иностранный язык", trailing.Lesson)
}

func TestParseCalendarGridUnknownCaption(t *testing.T) {
	_, err := ParseCalendarGrid(`<div class="schedule-caption">семестр</div>`, time.Now())
	assert.Error(t, err)
}
