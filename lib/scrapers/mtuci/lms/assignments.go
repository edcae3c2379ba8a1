package lms

import (
	"context"
	"net/url"
	"strings"
	"time"

	"mtuciassist-backend/lib/htmlutil"
	"mtuciassist-backend/lib/scrapers/mtuci/browser"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	noValue  = "—"
	noDate   = "не указано"
	untitled = "Без названия"
)

// Assignment is one graded task as shown by the portal. Dates and
// statuses are kept as the portal's display strings, normalized only
// for whitespace, so stored rows compare bytewise against fresh reads.
type Assignment struct {
	Course         string
	TaskName       string
	TaskLink       string
	OpenDate       string
	DueDate        string
	ResponseStatus string
	GradeStatus    string
	TimeLeft       string
	LastChange     string
	Attachments    []string
}

// AssignmentStatus is the submission/grading block off a single
// assignment page.
type AssignmentStatus struct {
	ResponseStatus string
	GradeStatus    string
	TimeLeft       string
	LastChange     string
	Attachments    []string
}

// ParseAssignments extracts assignment previews from a course page.
// Only the name, link and the two dates are available here; statuses
// require opening each assignment page.
func ParseAssignments(html, course string, base *url.URL) ([]Assignment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var assignments []Assignment
	doc.Find("li.modtype_assign").Each(func(_ int, li *goquery.Selection) {
		item := li.Find("div.activity-item").First()

		name := strings.TrimSpace(item.AttrOr("data-activityname", ""))
		if name == "" {
			name = htmlutil.CleanText(li.Find("a.aalink").First())
		}
		if name == "" {
			name = untitled
		}

		href, ok := li.Find("a.aalink").First().Attr("href")
		if !ok {
			return
		}

		a := Assignment{
			Course:         course,
			TaskName:       name,
			TaskLink:       htmlutil.ResolveHref(base, href),
			OpenDate:       noDate,
			DueDate:        noDate,
			ResponseStatus: noValue,
			GradeStatus:    noValue,
			TimeLeft:       noValue,
			LastChange:     noValue,
		}

		li.Find("div.activity-dates div").Each(func(_ int, d *goquery.Selection) {
			text := htmlutil.CleanText(d)
			switch {
			case strings.HasPrefix(text, "Открыто с"):
				a.OpenDate = ShortDate(strings.TrimSpace(strings.TrimPrefix(text, "Открыто с:")))
			case strings.HasPrefix(text, "Срок сдачи"):
				a.DueDate = ShortDate(strings.TrimSpace(strings.TrimPrefix(text, "Срок сдачи:")))
			}
		})

		assignments = append(assignments, a)
	})
	return assignments, nil
}

// ParseAssignmentStatus extracts the submission status table from an
// assignment page. Labels missing from the table keep the portal's
// em-dash placeholder so reconciliation treats absence as a value.
func ParseAssignmentStatus(html string, base *url.URL) (AssignmentStatus, error) {
	status := AssignmentStatus{
		ResponseStatus: noValue,
		GradeStatus:    noValue,
		TimeLeft:       noValue,
		LastChange:     noValue,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return status, err
	}

	table := doc.Find("table.generaltable.table-bordered").First()
	if table.Length() == 0 {
		return status, ErrNoStatusTable
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := htmlutil.CleanText(cells.First())
		value := htmlutil.CleanText(cells.Eq(1))
		if value == "" {
			value = noValue
		}
		switch {
		case strings.Contains(label, "Состояние ответа на задание"):
			status.ResponseStatus = value
		case strings.Contains(label, "Состояние оценивания"):
			status.GradeStatus = value
		case strings.Contains(label, "Оставшееся время"):
			status.TimeLeft = CompactTimeLeft(value)
		case strings.Contains(label, "Последнее изменение"):
			status.LastChange = ShortDate(value)
		}
	})

	for _, a := range htmlutil.GetAnchors(doc.Find("a[href*='pluginfile.php']")) {
		status.Attachments = append(status.Attachments, htmlutil.ResolveHref(base, a.Href))
	}

	return status, nil
}

// CourseAssignments opens one course page and returns its assignment
// previews.
func (p Portal) CourseAssignments(ctx context.Context, s *browser.Session, course CourseLink) ([]Assignment, error) {
	ctx, span := tracer.Start(ctx, "portal:CourseAssignments")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.Name))

	err := s.Navigate(ctx, course.Href, "h1.h2.mb-0", time.Second*20)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course page did not load")
		return nil, err
	}
	html, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	assignments, err := ParseAssignments(html, course.Name, p.BaseUrl)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("assignments", len(assignments)))
	return assignments, nil
}

// Status opens one assignment page and reads its submission state.
func (p Portal) Status(ctx context.Context, s *browser.Session, taskLink string) (AssignmentStatus, error) {
	ctx, span := tracer.Start(ctx, "portal:Status")
	defer span.End()

	err := s.Navigate(ctx, taskLink, "#page-content", time.Second*20)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment page did not load")
		return AssignmentStatus{}, err
	}
	html, err := s.HTML(ctx)
	if err != nil {
		return AssignmentStatus{}, err
	}
	status, err := ParseAssignmentStatus(html, p.BaseUrl)
	if err != nil {
		span.RecordError(err)
	}
	return status, err
}

// AllAssignments walks every enrolled course and collects assignments
// with their full submission state. Used on first ingest; routine
// change checks only re-read statuses for links already on record.
func (p Portal) AllAssignments(ctx context.Context, s *browser.Session) ([]Assignment, error) {
	ctx, span := tracer.Start(ctx, "portal:AllAssignments")
	defer span.End()

	courses, err := p.Courses(ctx, s)
	if err != nil {
		return nil, err
	}

	var all []Assignment
	for _, course := range courses {
		assignments, err := p.CourseAssignments(ctx, s, course)
		if err != nil {
			span.RecordError(err)
			continue
		}
		for _, a := range assignments {
			status, err := p.Status(ctx, s, a.TaskLink)
			if err != nil {
				// a page without the status block at all is not a
				// gradable assignment, drop the record
				span.RecordError(err)
				continue
			}
			a.ResponseStatus = status.ResponseStatus
			a.GradeStatus = status.GradeStatus
			a.TimeLeft = status.TimeLeft
			a.LastChange = status.LastChange
			a.Attachments = status.Attachments
			all = append(all, a)
		}
	}
	span.SetAttributes(attribute.Int("total", len(all)))
	return all, nil
}
