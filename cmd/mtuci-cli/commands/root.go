package commands

import (
	"context"
	"fmt"
	"os"

	"mtuciassist-backend/lib/scrapers/mtuci/browser"
	"mtuciassist-backend/lib/scrapers/mtuci/lms"
	"mtuciassist-backend/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mtuci-cli",
	Short: "mtuci-cli scrapes the MTUCI portals on demand.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	BaseUrl  string `json:"base_url"`
	Browser  struct {
		ExecPath string `json:"exec_path"`
	} `json:"browser"`
}

func (c Config) baseUrl() string {
	if c.BaseUrl == "" {
		return "https://lms.mtuci.ru"
	}
	return c.BaseUrl
}

// createSession opens a browser session already logged into the LMS.
func createSession(ctx context.Context, cfg Config, opts browser.Options) (lms.Portal, *browser.Session) {
	portal, err := lms.NewPortal(cfg.baseUrl())
	if err != nil {
		serviceutil.Fatal("invalid base url", err)
	}

	opts.ExecPath = cfg.Browser.ExecPath
	session, err := browser.Open(ctx, opts)
	if err != nil {
		serviceutil.Fatal("failed to start browser", err)
	}

	err = portal.Login(ctx, session, cfg.Username, cfg.Password)
	if err != nil {
		session.Close(ctx)
		serviceutil.Fatal("failed to login", err)
	}
	return portal, session
}
