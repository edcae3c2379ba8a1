package commands

import (
	"log/slog"

	"mtuciassist-backend/lib/recordstore"
	"mtuciassist-backend/lib/recordstore/db"
	"mtuciassist-backend/lib/sqliteutil"
	"mtuciassist-backend/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	profileDb      *string
	profileUser    *int64
	profileLevel   *string
	profileForm    *string
	profileFaculty *string
	profileCourse  *string
	profileGroup   *string
)

func init() {
	profileDb = profileCmd.Flags().String("db", "watcher.db", "The watcher database.")
	profileUser = profileCmd.Flags().Int64("user", 0, "Telegram id of the user to update.")
	profileLevel = profileCmd.Flags().String("level", "Бакалавриат", "Education level.")
	profileForm = profileCmd.Flags().String("form", "Очная", "Study form.")
	profileFaculty = profileCmd.Flags().String("faculty", "", "Faculty.")
	profileCourse = profileCmd.Flags().String("course", "1 курс", "Course year.")
	profileGroup = profileCmd.Flags().String("group", "", "Study group, e.g. БИН2301.")
	profileCmd.MarkFlagRequired("user")
	profileCmd.MarkFlagRequired("faculty")
	profileCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile --user <telegram-id> --faculty <name> --group <name>",
	Short: "Saves a user's study profile so their timetable group is known.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database, err := sqliteutil.OpenDB(db.Schema, *profileDb)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer database.Close()
		store := recordstore.NewStore(database)

		user, err := store.GetUser(ctx, *profileUser)
		if err != nil {
			serviceutil.Fatal("unknown user", err)
		}

		err = store.SetStudyProfile(ctx, user.TelegramID,
			*profileLevel, *profileForm, *profileFaculty, *profileCourse, *profileGroup)
		if err != nil {
			serviceutil.Fatal("failed to save study profile", err)
		}
		slog.Info("study profile saved",
			"user", user.TelegramID,
			"group", *profileGroup)
	},
}
