package commands

import (
	"fmt"

	"mtuciassist-backend/lib/scrapers/mtuci/browser"
	"mtuciassist-backend/lib/scrapers/mtuci/lk"
	"mtuciassist-backend/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	groupsLevel   *string
	groupsForm    *string
	groupsFaculty *string
	groupsCourse  *string
)

func init() {
	groupsLevel = groupsCmd.Flags().String("level", "Бакалавриат", "Education level.")
	groupsForm = groupsCmd.Flags().String("form", "Очная", "Study form.")
	groupsFaculty = groupsCmd.Flags().String("faculty", "", "Faculty name.")
	groupsCourse = groupsCmd.Flags().String("course", "1 курс", "Course year.")
	groupsCmd.MarkFlagRequired("faculty")
	rootCmd.AddCommand(groupsCmd)
}

var groupsCmd = &cobra.Command{
	Use:   "groups --faculty <name> [--level <l>] [--form <f>] [--course <c>]",
	Short: "Walks the schedule picklists and lists the study groups.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		// the picklist scripts measure rendered boxes, styling stays on
		session, err := browser.Open(ctx, browser.Options{LoadStyling: true})
		if err != nil {
			serviceutil.Fatal("failed to start browser", err)
		}
		defer session.Close(ctx)

		groups, err := lk.NewPortal().Groups(ctx, session,
			*groupsLevel, *groupsForm, *groupsFaculty, *groupsCourse)
		if err != nil {
			serviceutil.Fatal("failed to list groups", err)
		}
		for _, group := range groups {
			fmt.Println(group)
		}
	},
}
