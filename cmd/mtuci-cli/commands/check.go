package commands

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
	"mtuciassist-backend/lib/util/serviceutil"
	"mtuciassist-backend/services/watcher"

	"github.com/spf13/cobra"
)

type checkConfig struct {
	Config
	Keychain struct {
		MasterSecret string `json:"master_secret"`
	} `json:"keychain"`
}

var checkDb *string

func init() {
	checkDb = checkCmd.Flags().String("db", "watcher.db", "The watcher database.")
	rootCmd.AddCommand(checkCmd)
}

type stdoutNotifier struct{}

func (stdoutNotifier) NotifyChanges(ctx context.Context, user recordstore.User, events []watcher.ChangeEvent) error {
	for _, e := range events {
		slog.InfoContext(ctx, "change detected",
			"user", user.TelegramID,
			"course", e.Course,
			"task", e.TaskName,
			"old_response", e.OldResponse,
			"new_response", e.NewResponse,
			"old_grade", e.OldGrade,
			"new_grade", e.NewGrade)
	}
	return nil
}

var checkCmd = &cobra.Command{
	Use:   "check [--db <path/to/watcher.db>]",
	Short: "Runs a single reconciliation cycle over every subscribed user.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[checkConfig]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		ctx := cmd.Context()

		database, err := sqliteutil.OpenDB(db.Schema, *checkDb)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer database.Close()

		kc, err := keychain.New(cfg.Keychain.MasterSecret)
		if err != nil {
			serviceutil.Fatal("failed to initialize keychain", err)
		}
		portal, err := lms.NewPortal(cfg.baseUrl())
		if err != nil {
			serviceutil.Fatal("invalid base url", err)
		}

		service := watcher.NewService(watcher.ServiceOptions{
			Store:    recordstore.NewStore(database),
			Keychain: kc,
			Notifier: stdoutNotifier{},
			Sessions: watcher.NewBrowserSessionFactory(portal, browser.Options{
				ExecPath: cfg.Browser.ExecPath,
			}),
		})

		summary, err := service.RunCycle(ctx)
		if err != nil {
			serviceutil.Fatal("cycle failed", err)
		}
		slog.Info("cycle finished",
			"cycle", summary.ID,
			"duration", summary.FinishedAt.Sub(summary.StartedAt),
			"checked_users", summary.CheckedUsers,
			"failed_users", summary.FailedUsers,
			"change_events", summary.ChangeEvents)
	},
}
