package lms

import (
	"context"
	"net/url"
	"strings"
	"time"

	"mtuciassist-backend/lib/htmlutil"
	"mtuciassist-backend/lib/scrapers/mtuci/browser"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CourseLink references one course the user is enrolled in. Ephemeral,
// only used to walk into the course pages.
type CourseLink struct {
	Name string
	Href string
}

const courseCardSelector = "div.col.d-flex.px-0.mb-2"

// reads the active-state label off the display-mode dropdown; cheaper
// than serializing the page and parsing it
const currentDisplayModeJS = `
(() => {
	const b = document.getElementById('displaydropdown');
	if (!b) { return ''; }
	const s = b.querySelector('span[data-active-item-text]');
	return (s ? s.textContent : b.textContent).trim();
})()
`

func (p Portal) currentDisplayMode(ctx context.Context, s *browser.Session) string {
	var mode string
	err := s.Evaluate(ctx, currentDisplayModeJS, &mode)
	if err != nil {
		return ""
	}
	return mode
}

// ensureCardView normalizes the course list to the card layout. The
// portal remembers whichever display mode the user picked last, and the
// list layout has a completely different DOM, so scraping only supports
// cards. The mode toggle may be hidden inside the collapsed mobile
// drawer, which then has to be opened first.
func (p Portal) ensureCardView(ctx context.Context, s *browser.Session) error {
	ctx, span := tracer.Start(ctx, "portal:ensureCardView")
	defer span.End()

	for attempt := 0; attempt < 3; attempt++ {
		mode := p.currentDisplayMode(ctx, s)
		span.AddEvent("display mode", trace.WithAttributes(attribute.String("mode", mode)))
		if strings.Contains(mode, "Карточка") {
			return nil
		}

		var hasDropdown bool
		err := s.Evaluate(ctx, `document.getElementById('displaydropdown') !== null`, &hasDropdown)
		if err != nil {
			span.RecordError(err)
			continue
		}
		if !hasDropdown {
			// mobile layout: the toggle lives in the drawer
			err = s.DispatchClick(ctx, `[data-region="drawer-toggle"]`)
			if err != nil {
				span.RecordError(err)
				continue
			}
			err = s.Run(ctx, time.Second*5, chromedp.WaitVisible(".drawer.show", chromedp.ByQuery))
			if err != nil {
				span.RecordError(err)
				continue
			}
		}

		err = s.DispatchClick(ctx, "#displaydropdown")
		if err != nil {
			span.RecordError(err)
			continue
		}

		err = s.Run(ctx, time.Second*5,
			chromedp.WaitVisible(`a[data-display-option="display"][data-value="card"]`, chromedp.ByQuery),
		)
		if err != nil {
			span.RecordError(err)
			continue
		}
		err = s.DispatchClick(ctx, `a[data-display-option="display"][data-value="card"]`)
		if err != nil {
			span.RecordError(err)
			continue
		}

		// verify through a re-read instead of trusting the click
		deadline := time.Now().Add(time.Second * 5)
		for time.Now().Before(deadline) {
			if strings.Contains(p.currentDisplayMode(ctx, s), "Карточка") {
				return nil
			}
			time.Sleep(time.Millisecond * 200)
		}
	}

	span.SetStatus(codes.Error, ErrLayoutSwitch.Error())
	return ErrLayoutSwitch
}

// Courses loads the "my courses" page, normalizes it to card view and
// extracts one link per course card.
func (p Portal) Courses(ctx context.Context, s *browser.Session) ([]CourseLink, error) {
	ctx, span := tracer.Start(ctx, "portal:Courses")
	defer span.End()

	err := s.Navigate(ctx, p.absolute(myCoursesPath), "div.dropdown.mb-1", time.Second*20)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course list did not load")
		return nil, err
	}

	err = p.ensureCardView(ctx, s)
	if err != nil {
		return nil, err
	}

	err = s.Run(ctx, time.Second*20, chromedp.WaitReady(courseCardSelector, chromedp.ByQuery))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course cards did not render")
		return nil, err
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	links, err := ParseCourseLinks(html, p.BaseUrl)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("courses", len(links)))
	return links, nil
}

// ParseCourseLinks extracts course links from the card-view course list.
func ParseCourseLinks(html string, base *url.URL) ([]CourseLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var links []CourseLink
	doc.Find(courseCardSelector).Each(func(_ int, card *goquery.Selection) {
		anchors := htmlutil.GetAnchors(card.Find("a[href]").First())
		if len(anchors) == 0 {
			return
		}
		links = append(links, CourseLink{
			Name: anchors[0].Name,
			Href: htmlutil.ResolveHref(base, anchors[0].Href),
		})
	})
	return links, nil
}
