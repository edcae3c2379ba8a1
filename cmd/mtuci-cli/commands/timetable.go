package commands

import (
	"log/slog"
	"os"

	"mtuciassist-backend/lib/configutil"
	"mtuciassist-backend/lib/scrapers/mtuci/browser"
	"mtuciassist-backend/lib/scrapers/mtuci/lk"
	"mtuciassist-backend/lib/util/serviceutil"
	"mtuciassist-backend/services/watcher"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(timetableCmd)
}

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Fetches the month schedule from the student cabinet.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		ctx := cmd.Context()

		portal, session := createSession(ctx, cfg, browser.Options{})
		defer session.Close(ctx)

		entries, err := lk.NewPortal().Timetable(ctx, session)
		if err != nil {
			serviceutil.Fatal("failed to fetch timetable", err)
		}

		// schedule cells abbreviate subjects, the enrolled course
		// names give them their full titles back
		var courseNames []string
		courses, err := portal.Courses(ctx, session)
		if err != nil {
			slog.Warn("course list unavailable, subject labels stay abbreviated", "err", err)
		}
		for _, c := range courses {
			courseNames = append(courseNames, c.Name)
		}
		for i := range entries {
			entries[i].Lesson = watcher.ExpandSubject(entries[i].Lesson, courseNames)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Дата", "Время", "Дисциплина", "Тип", "Преподаватель", "Аудитория"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.Date, e.TimeOfLesson, e.Lesson, e.Type, e.Teacher, e.Cabinet})
		}
		t.Render()
	},
}
