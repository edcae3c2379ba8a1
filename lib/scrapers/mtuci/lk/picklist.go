package lk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mtuciassist-backend/lib/htmlutil"
	"mtuciassist-backend/lib/scrapers/mtuci/browser"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AcceptCookies dismisses the consent banner when present. The banner
// overlays the picklists, so this runs before any option click.
func AcceptCookies(ctx context.Context, s *browser.Session) {
	err := s.Run(ctx, time.Second*3,
		chromedp.WaitVisible(".cookies_block .cookies_btn", chromedp.ByQuery),
	)
	if err != nil {
		return
	}
	_ = s.DispatchClick(ctx, ".cookies_block .cookies_btn")
}

func optionXPath(containerID, text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = strings.TrimSpace(text)
	if containerID == "groups" {
		return fmt.Sprintf(
			`//div[@id='groups_container']/div[contains(@class,'groups-btn') and normalize-space()=%q]`,
			text)
	}
	return fmt.Sprintf(
		`//div[@id='%s']//div[contains(@class,'switch-btn') or contains(@class,'selector-btn')][normalize-space()=%q]`,
		containerID, text)
}

// SelectOption clicks the picklist option with the given visible text
// inside the container. Group names live in their own container with a
// different button class.
func SelectOption(ctx context.Context, s *browser.Session, containerID, text string) error {
	ctx, span := tracer.Start(ctx, "lk:SelectOption")
	defer span.End()
	span.SetAttributes(
		attribute.String("container", containerID),
		attribute.String("option", text),
	)

	waitID := containerID
	if containerID == "groups" {
		waitID = "groups_container"
	}
	err := s.Run(ctx, time.Second*10, chromedp.WaitVisible("#"+waitID, chromedp.ByQuery))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "picklist container did not appear")
		return err
	}

	err = s.DispatchClickXPath(ctx, optionXPath(containerID, text))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrOptionNotFound.Error())
		return fmt.Errorf("%w: %s/%s", ErrOptionNotFound, containerID, text)
	}
	return nil
}

// ParseGroups lists group names from the groups picklist.
func ParseGroups(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var groups []string
	doc.Find("#groups_container .groups-btn").Each(func(_ int, btn *goquery.Selection) {
		name := htmlutil.CleanText(btn)
		if name != "" {
			groups = append(groups, name)
		}
	})
	return groups, nil
}

// Groups walks the study-profile picklists on the public schedule page
// and returns the group names available under the chosen profile. This
// page needs styling loaded, the picklist scripts size elements off
// their rendered boxes.
func (p Portal) Groups(ctx context.Context, s *browser.Session, level, form, faculty, course string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "lk:Groups")
	defer span.End()

	err := s.Navigate(ctx, p.TimetableUrl, "body", time.Second*15)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	AcceptCookies(ctx, s)

	steps := []struct{ container, value string }{
		{"levels", level},
		{"forms", form},
		{"faculties", faculty},
		{"courses", course},
	}
	for _, step := range steps {
		err = SelectOption(ctx, s, step.container, step.value)
		if err != nil {
			return nil, err
		}
	}

	err = s.Run(ctx, time.Second*10, chromedp.WaitReady("#groups_container", chromedp.ByQuery))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "groups picklist did not load")
		return nil, err
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := ParseGroups(html)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("groups", len(groups)))
	return groups, nil
}
