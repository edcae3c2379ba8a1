package lk

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"mtuciassist-backend/lib/scrapers/mtuci/browser"
	"mtuciassist-backend/lib/timezone"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const noValue = "—"

// TimetableEntry is one lesson occurrence. Regenerated per request and
// never diffed against history.
type TimetableEntry struct {
	Date         string
	Type         string
	Lesson       string
	Teacher      string
	TimeOfLesson string
	Cabinet      string
}

type namedItem struct {
	Name string `json:"name"`
}

type scheduleSlot struct {
	NoLesson    bool        `json:"НетЗанятия"`
	Groups      []namedItem `json:"ГруппыСтудентов"`
	Teacher     namedItem   `json:"Преподаватель"`
	Subject     namedItem   `json:"Дисциплина"`
	Period      namedItem   `json:"Занятие"`
	Cabinet     string      `json:"Аудитория"`
	Remote      bool        `json:"Дистанционно"`
	LoadKind    namedItem   `json:"ВидНагрузки"`
	ControlForm namedItem   `json:"ФормаКонтроля"`
}

type scheduleDay struct {
	Date  string         `json:"Дата"`
	Slots []scheduleSlot `json:"СеткаРасписания"`
}

type scheduleResponse struct {
	Data struct {
		Answer struct {
			Days []scheduleDay `json:"МассивРасписания"`
		} `json:"Ответ"`
	} `json:"data"`
}

func orDash(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return noValue
	}
	return s
}

// ParseScheduleResponse maps the cabinet's schedule payload onto flat
// timetable entries. Empty slots and slots without an assigned student
// group are dropped.
func ParseScheduleResponse(body []byte) ([]TimetableEntry, error) {
	var resp scheduleResponse
	err := json.Unmarshal(body, &resp)
	if err != nil {
		return nil, err
	}

	var entries []TimetableEntry
	for _, day := range resp.Data.Answer.Days {
		stamp, err := time.Parse("20060102150405", day.Date)
		if err != nil {
			continue
		}
		date := stamp.Format("02.01.2006")

		for _, slot := range day.Slots {
			if slot.NoLesson {
				continue
			}
			if len(slot.Groups) == 0 || strings.TrimSpace(slot.Groups[0].Name) == "" {
				continue
			}

			lessonType := strings.TrimSpace(slot.LoadKind.Name)
			controlForm := strings.TrimSpace(slot.ControlForm.Name)

			// the cabinet labels retakes with the bare pass/fail form
			if controlForm == "Зачет" {
				controlForm = "Зачёт (ПЕРЕСДАЧА)"
			}
			if lessonType == "" && slot.Remote {
				lessonType = "Дистанционно"
			}
			if slot.Remote && controlForm != "" {
				lessonType += " (" + controlForm + ")"
			}

			entries = append(entries, TimetableEntry{
				Date:         date,
				Type:         orDash(lessonType),
				Lesson:       orDash(slot.Subject.Name),
				Teacher:      orDash(slot.Teacher.Name),
				TimeOfLesson: orDash(slot.Period.Name),
				Cabinet:      strings.TrimSpace(slot.Cabinet),
			})
		}
	}
	return entries, nil
}

// Timetable loads the month schedule view and intercepts the structured
// payload the page fetches in the background. When no payload shows up
// it reads the lessons off the rendered calendar grid instead.
func (p Portal) Timetable(ctx context.Context, s *browser.Session) ([]TimetableEntry, error) {
	ctx, span := tracer.Start(ctx, "lk:Timetable")
	defer span.End()

	body, err := s.CaptureResponse(ctx, "getProcessor", time.Second*15,
		chromedp.Navigate(p.TimetableUrl),
		chromedp.WaitReady("div.schedule-lessons", chromedp.ByQuery),
	)
	if err != nil {
		// some month views render server side and never fire the
		// background fetch, fall back to the rendered grid
		span.RecordError(err)
		return p.timetableFromGrid(ctx, s)
	}

	entries, err := ParseScheduleResponse(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schedule payload did not parse")
		return nil, err
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

func (p Portal) timetableFromGrid(ctx context.Context, s *browser.Session) ([]TimetableEntry, error) {
	ctx, span := tracer.Start(ctx, "lk:timetableFromGrid")
	defer span.End()

	html, err := s.HTML(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrScheduleCapture.Error())
		return nil, ErrScheduleCapture
	}
	entries, err := ParseCalendarGrid(html, timezone.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrScheduleCapture.Error())
		return nil, ErrScheduleCapture
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}
