package commands

import (
	"errors"
	"fmt"

	"mtuciassist-backend/lib/configutil"
	"mtuciassist-backend/lib/scrapers/mtuci/lms"
	"mtuciassist-backend/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Validates the configured credentials without starting a browser.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		ctx := cmd.Context()

		client, err := lms.NewClient(ctx, lms.ClientOptions{BaseUrl: cfg.baseUrl()})
		if err != nil {
			serviceutil.Fatal("failed to initialize client", err)
		}

		err = client.LoginUsernamePassword(ctx, cfg.Username, cfg.Password)
		if errors.Is(err, lms.ErrAuthentication) {
			fmt.Println("invalid credentials")
			return
		}
		if err != nil {
			serviceutil.Fatal("login check failed", err)
		}
		fmt.Println("credentials ok")
	},
}
