// Package watcher runs the background reconciliation fleet: it walks
// every user with notifications enabled, re-reads their assignment
// statuses from the portal under a bounded number of concurrent browser
// sessions, and emits change events for anything that moved.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mtuciassist-backend/lib/keychain"
	"mtuciassist-backend/lib/recordstore"
	"mtuciassist-backend/lib/scrapers/mtuci/browser"
	"mtuciassist-backend/lib/scrapers/mtuci/lms"
	"mtuciassist-backend/lib/timezone"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("mtuciassist.services.watcher")

const DefaultMaxConcurrentSessions = 3

// PortalSession is one authenticated scrape session. The production
// implementation drives a headless browser; tests substitute fakes.
type PortalSession interface {
	Login(ctx context.Context, username, password string) error
	AllAssignments(ctx context.Context) ([]lms.Assignment, error)
	AssignmentStatus(ctx context.Context, taskLink string) (lms.AssignmentStatus, error)
	Close(ctx context.Context)
}

// SessionFactory opens a fresh session per operation. Sessions are
// never shared between users.
type SessionFactory func(ctx context.Context) (PortalSession, error)

// Notifier delivers change events to the user. Delivery failures are
// logged, not retried; the record keeps the new status either way.
type Notifier interface {
	NotifyChanges(ctx context.Context, user recordstore.User, events []ChangeEvent) error
}

type Service struct {
	store         recordstore.Store
	keychain      keychain.Keychain
	notifier      Notifier
	sessions      SessionFactory
	maxConcurrent int64
}

type ServiceOptions struct {
	Store    recordstore.Store
	Keychain keychain.Keychain
	Notifier Notifier
	Sessions SessionFactory
	// MaxConcurrentSessions caps simultaneously open browser sessions
	// across the whole cycle. Zero means the default of 3.
	MaxConcurrentSessions int64
}

func NewService(opts ServiceOptions) Service {
	if opts.Sessions == nil {
		panic("nil session factory")
	}
	maxConcurrent := opts.MaxConcurrentSessions
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSessions
	}
	return Service{
		store:         opts.Store,
		keychain:      opts.Keychain,
		notifier:      opts.Notifier,
		sessions:      opts.Sessions,
		maxConcurrent: maxConcurrent,
	}
}

// NewBrowserSessionFactory returns the production factory backed by a
// headless browser against the given portal.
func NewBrowserSessionFactory(portal lms.Portal, opts browser.Options) SessionFactory {
	return func(ctx context.Context) (PortalSession, error) {
		session, err := browser.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return browserPortalSession{portal: portal, session: session}, nil
	}
}

type browserPortalSession struct {
	portal  lms.Portal
	session *browser.Session
}

func (b browserPortalSession) Login(ctx context.Context, username, password string) error {
	return b.portal.Login(ctx, b.session, username, password)
}

func (b browserPortalSession) AllAssignments(ctx context.Context) ([]lms.Assignment, error) {
	return b.portal.AllAssignments(ctx, b.session)
}

func (b browserPortalSession) AssignmentStatus(ctx context.Context, taskLink string) (lms.AssignmentStatus, error) {
	return b.portal.Status(ctx, b.session, taskLink)
}

func (b browserPortalSession) Close(ctx context.Context) {
	b.session.Close(ctx)
}

// CycleSummary reports one reconciliation pass over the user fleet.
type CycleSummary struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	CheckedUsers int
	FailedUsers  int
	ChangeEvents int
}

// RunCycle reconciles every notifiable user once. Per-user failures are
// contained: they are logged, counted and never abort sibling users.
func (s Service) RunCycle(ctx context.Context) (CycleSummary, error) {
	ctx, span := tracer.Start(ctx, "watcher:RunCycle")
	defer span.End()

	summary := CycleSummary{
		ID:        uuid.NewString(),
		StartedAt: timezone.Now(),
	}
	span.SetAttributes(attribute.String("cycle_id", summary.ID))

	users, err := s.store.NotifiableUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not list users")
		return summary, err
	}

	// counted before the cycle so the stats row reflects the record
	// set the cycle started from
	trackedTasks, usersWithTasks, err := s.store.TrackedCounts(ctx)
	if err != nil {
		slog.WarnContext(ctx, "count tracked tasks", "err", err)
	}

	sem := semaphore.NewWeighted(s.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, user := range users {
		err := sem.Acquire(ctx, 1)
		if err != nil {
			break
		}
		wg.Add(1)
		go func(user recordstore.User) {
			defer wg.Done()
			defer sem.Release(1)

			events, err := s.CheckUser(ctx, user)
			mu.Lock()
			defer mu.Unlock()
			summary.CheckedUsers++
			if err != nil {
				summary.FailedUsers++
				slog.WarnContext(ctx, "check user",
					"cycle", summary.ID, "user", user.TelegramID, "err", err)
			}
			// events computed before a mid-check failure are still
			// delivered, the failure only marks the user
			summary.ChangeEvents += len(events)
			if len(events) > 0 && s.notifier != nil {
				err = s.notifier.NotifyChanges(ctx, user, events)
				if err != nil {
					slog.ErrorContext(ctx, "notify changes",
						"cycle", summary.ID, "user", user.TelegramID, "err", err)
				}
			}
		}(user)
	}
	wg.Wait()

	summary.FinishedAt = timezone.Now()
	s.recordCycle(ctx, summary, trackedTasks, usersWithTasks)

	span.SetAttributes(
		attribute.Int("checked_users", summary.CheckedUsers),
		attribute.Int("failed_users", summary.FailedUsers),
		attribute.Int("change_events", summary.ChangeEvents),
	)
	return summary, nil
}

func (s Service) recordCycle(ctx context.Context, summary CycleSummary, trackedTasks, usersWithTasks int64) {
	err := s.store.RecordCycleStats(ctx, recordstore.CycleStats{
		ID:             summary.ID,
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
		CheckedUsers:   int64(summary.CheckedUsers),
		TrackedTasks:   trackedTasks,
		UsersWithTasks: usersWithTasks,
	})
	if err != nil {
		slog.WarnContext(ctx, "record cycle stats", "cycle", summary.ID, "err", err)
	}
}

// Run is the scheduler daemon. Flags are re-read every tick so the
// interval, the kill switch and maintenance mode apply without a
// restart.
func (s Service) Run(ctx context.Context) {
	flags, err := s.store.GetFlags(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "read flags", "err", err)
		flags = recordstore.Flags{BotEnabled: true, CheckInterval: time.Minute * 30}
	}

	ticker := time.NewTicker(flags.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flags, err = s.store.GetFlags(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "read flags", "err", err)
				continue
			}
			ticker.Reset(flags.CheckInterval)

			if !flags.BotEnabled || flags.MaintenanceMode {
				slog.InfoContext(ctx, "cycle skipped",
					"enabled", flags.BotEnabled, "maintenance", flags.MaintenanceMode)
				continue
			}

			summary, err := s.RunCycle(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "run cycle", "err", err)
				continue
			}
			slog.InfoContext(ctx, "cycle finished",
				"cycle", summary.ID,
				"duration", summary.FinishedAt.Sub(summary.StartedAt),
				"checked_users", summary.CheckedUsers,
				"failed_users", summary.FailedUsers,
				"change_events", summary.ChangeEvents)
		}
	}
}
