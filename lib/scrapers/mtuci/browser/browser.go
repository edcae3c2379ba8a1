package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/mtuci/browser")
var meter = otel.Meter("scrapers/mtuci/browser")

var driverInitCounter, _ = meter.Int64Counter("driver_init")
var driverCloseCounter, _ = meter.Int64Counter("driver_close")

var ErrDriverInit = fmt.Errorf("could not start a browser session")

// the portal renders fine without any of these, and each headless session
// is expensive enough that pulling fonts/images/video is pure waste
var blockedResourceUrls = []string{
	"*.ttf", "*.svg", "*.css", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.woff2", "*.mp4",
}

var execFlags = map[string]interface{}{
	"headless":                               true,
	"disable-gpu":                            true,
	"disable-extensions":                     true,
	"disable-dev-shm-usage":                  true,
	"no-sandbox":                             true,
	"disable-background-timer-throttling":    true,
	"disable-background-networking":          true,
	"disable-client-side-phishing-detection": true,
	"disable-default-apps":                   true,
	"disable-popup-blocking":                 true,
	"disable-translate":                      true,
	"disable-application-cache":              true,
	"disk-cache-size":                        "0",
	"aggressive-cache-discard":               true,
	"no-zygote":                              true,
	"incognito":                              true,
}

type Options struct {
	// LoadStyling disables resource blocking; needed for the few pages
	// whose scripts misbehave without their stylesheets applied.
	LoadStyling bool
	// ExecPath overrides the browser binary location.
	ExecPath string
}

// Session is one live headless browser, exclusively owned by the scrape
// operation that opened it. Always release it with Close, on every exit
// path.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func Open(ctx context.Context, opts Options) (*Session, error) {
	ctx, span := tracer.Start(ctx, "Open")
	defer span.End()
	driverInitCounter.Add(ctx, 1)

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for flag, value := range execFlags {
		allocOpts = append(allocOpts, chromedp.Flag(flag, value))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	sessionCtx, sessionCancel := chromedp.NewContext(allocCtx)

	actions := []chromedp.Action{network.Enable()}
	if !opts.LoadStyling {
		actions = append(actions, network.SetBlockedURLS(blockedResourceUrls))
	}

	// the first Run is what actually launches the browser process
	startCtx, startCancel := context.WithTimeout(sessionCtx, time.Second*20)
	defer startCancel()
	err := chromedp.Run(startCtx, actions...)
	if err != nil {
		sessionCancel()
		allocCancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return nil, fmt.Errorf("%w: %s", ErrDriverInit, err)
	}

	return &Session{
		ctx:         sessionCtx,
		cancel:      sessionCancel,
		allocCancel: allocCancel,
	}, nil
}

// Close clears the browser cache and cookies best-effort (long-running
// headless sessions otherwise accumulate gigabytes on disk), then
// unconditionally terminates the process.
func (s *Session) Close(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Close")
	defer span.End()
	driverCloseCounter.Add(ctx, 1)

	clearCtx, clearCancel := context.WithTimeout(s.ctx, time.Second*5)
	err := chromedp.Run(clearCtx,
		network.ClearBrowserCache(),
		network.ClearBrowserCookies(),
	)
	clearCancel()
	if err != nil {
		span.RecordError(err)
	}

	s.cancel()
	s.allocCancel()
}

// Run executes browser actions against this session, bounded by the
// caller's context deadline on top of `timeout`.
func (s *Session) Run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads a page and blocks until `waitSelector` is present.
func (s *Session) Navigate(ctx context.Context, url, waitSelector string, timeout time.Duration) error {
	ctx, span := tracer.Start(ctx, "Navigate")
	defer span.End()

	err := s.Run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// HTML returns the current serialized document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.Run(ctx, time.Second*10, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", err
	}
	return html, nil
}

func (s *Session) Evaluate(ctx context.Context, js string, out interface{}) error {
	return s.Run(ctx, time.Second*10, chromedp.Evaluate(js, out))
}

// CaptureResponse runs `actions` while watching network traffic for the
// first response whose url contains `urlFragment`, then returns its body.
// The portal pushes the timetable grid through a background request, so
// interception is the only way to get the structured payload.
func (s *Session) CaptureResponse(ctx context.Context, urlFragment string, timeout time.Duration, actions ...chromedp.Action) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "CaptureResponse")
	defer span.End()

	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	requestIds := make(chan network.RequestID, 1)
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		res, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		if !strings.Contains(res.Response.URL, urlFragment) {
			return
		}
		select {
		case requestIds <- res.RequestID:
		default:
		}
	})

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actions failed")
		return nil, err
	}

	select {
	case id := <-requestIds:
		return s.responseBody(runCtx, id)
	case <-runCtx.Done():
		err := fmt.Errorf("no response matching %q was observed", urlFragment)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
}

func (s *Session) responseBody(runCtx context.Context, id network.RequestID) ([]byte, error) {
	var body []byte
	// the body may not be loadable until loadingFinished fires, a little
	// after responseReceived; retry instead of wiring up a second listener
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = chromedp.Run(runCtx, chromedp.ActionFunc(func(actionCtx context.Context) error {
			var innerErr error
			body, innerErr = network.GetResponseBody(id).Do(actionCtx)
			return innerErr
		}))
		if err == nil {
			return body, nil
		}
		select {
		case <-runCtx.Done():
			return nil, runCtx.Err()
		case <-time.After(time.Millisecond * 200):
		}
	}
	return nil, err
}
