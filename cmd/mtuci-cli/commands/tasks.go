package commands

import (
	"log/slog"
	"os"
	"time"

	"mtuciassist-backend/lib/configutil"
	"mtuciassist-backend/lib/scrapers/mtuci/browser"
	"mtuciassist-backend/lib/scrapers/mtuci/lms"
	"mtuciassist-backend/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tasksCmd)
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Scrapes every assignment with its submission status.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		ctx := cmd.Context()

		portal, session := createSession(ctx, cfg, browser.Options{})
		defer session.Close(ctx)

		t1 := time.Now()
		assignments, err := portal.AllAssignments(ctx, session)
		if err != nil {
			serviceutil.Fatal("failed to scrape assignments", err)
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Курс", "Задание", "Срок сдачи", "Ответ", "Оценка"})
		for _, a := range assignments {
			response, grade := lms.StatusEmoji(a.ResponseStatus, a.GradeStatus)
			t.AppendRow(table.Row{
				a.Course,
				a.TaskName,
				a.DueDate,
				response + " " + a.ResponseStatus,
				grade + " " + a.GradeStatus,
			})
		}
		t.Render()
	},
}
