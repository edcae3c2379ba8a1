package main

import (
	"context"
	"log/slog"

	"mtuciassist-backend/lib/configutil"
	"mtuciassist-backend/lib/keychain"
	"mtuciassist-backend/lib/recordstore"
	"mtuciassist-backend/lib/recordstore/db"
	"mtuciassist-backend/lib/scrapers/mtuci/browser"
	"mtuciassist-backend/lib/scrapers/mtuci/lms"
	"mtuciassist-backend/lib/sqliteutil"
	"mtuciassist-backend/lib/telemetry"
	"mtuciassist-backend/lib/util/serviceutil"
	"mtuciassist-backend/services/watcher"
)

type Config struct {
	Database struct {
		Path string `json:"path"`
	} `json:"database"`
	Portal struct {
		BaseUrl string `json:"base_url"`
	} `json:"portal"`
	Keychain struct {
		MasterSecret string `json:"master_secret"`
	} `json:"keychain"`
	Browser struct {
		ExecPath string `json:"exec_path"`
	} `json:"browser"`
	MaxConcurrentSessions int64 `json:"max_concurrent_sessions"`
}

// logNotifier records change events in the service log. Delivery to a
// chat transport is handled by a separate frontend reading the same
// store.
type logNotifier struct{}

func (logNotifier) NotifyChanges(ctx context.Context, user recordstore.User, events []watcher.ChangeEvent) error {
	for _, e := range events {
		slog.InfoContext(ctx, "assignment changed",
			"user", user.TelegramID,
			"course", e.Course,
			"task", e.TaskName,
			"response_changed", e.ResponseChanged,
			"grade_changed", e.GradeChanged)
	}
	return nil
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	database, err := sqliteutil.OpenDB(db.Schema, config.Database.Path)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "watcherd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	kc, err := keychain.New(config.Keychain.MasterSecret)
	if err != nil {
		serviceutil.Fatal("failed to initialize keychain", err)
	}

	portal, err := lms.NewPortal(config.Portal.BaseUrl)
	if err != nil {
		serviceutil.Fatal("invalid portal base url", err)
	}

	service := watcher.NewService(watcher.ServiceOptions{
		Store:    recordstore.NewStore(database),
		Keychain: kc,
		Notifier: logNotifier{},
		Sessions: watcher.NewBrowserSessionFactory(portal, browser.Options{
			ExecPath: config.Browser.ExecPath,
		}),
		MaxConcurrentSessions: config.MaxConcurrentSessions,
	})

	go service.Run(ctx)

	<-ctx.Done()
}
