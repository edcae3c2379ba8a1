package lms

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"mtuciassist-backend/lib/scrapers/mtuci/browser"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/mtuci/lms")
var meter = otel.Meter("scrapers/mtuci/lms")

var authAttemptCounter, _ = meter.Int64Counter("auth_attempt")
var authSuccessCounter, _ = meter.Int64Counter("auth_success")

var ErrAuthentication = fmt.Errorf("the portal rejected the credentials")
var ErrLayoutSwitch = fmt.Errorf("could not switch the course list to card view")
var ErrNoStatusTable = fmt.Errorf("the assignment page has no status table")

const (
	loginPath     = "/lms/login/index.php"
	myCoursesPath = "/lms/my/courses.php"
)

const authTimeout = time.Second * 15

// Portal drives a browser session against the rendered LMS pages.
type Portal struct {
	BaseUrl *url.URL
}

func NewPortal(baseUrl string) (Portal, error) {
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return Portal{}, err
	}
	return Portal{BaseUrl: parsed}, nil
}

func (p Portal) absolute(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return p.BaseUrl.ResolveReference(ref).String()
}

// Login authenticates the browser session. Success is observed through
// the post-login landmark (#page-content); a timeout means either bad
// credentials or a portal outage, both are surfaced as ErrAuthentication.
func (p Portal) Login(ctx context.Context, s *browser.Session, username, password string) error {
	ctx, span := tracer.Start(ctx, "portal:Login")
	defer span.End()
	authAttemptCounter.Add(ctx, 1)

	err := s.Navigate(ctx, p.absolute(loginPath), `input[name="username"]`, authTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login page did not load")
		return fmt.Errorf("%w: %s", ErrAuthentication, err)
	}

	err = s.Run(ctx, authTimeout,
		chromedp.SendKeys(`input[name="username"]`, username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, password+kb.Enter, chromedp.ByQuery),
		chromedp.WaitReady("#page-content", chromedp.ByQuery),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post-login landmark never appeared")
		return fmt.Errorf("%w: %s", ErrAuthentication, err)
	}

	authSuccessCounter.Add(ctx, 1)
	return nil
}
