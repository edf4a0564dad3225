package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/chatwatch/internal/auth"
	"github.com/fakeyudi/chatwatch/internal/notify"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the admin session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newManager(notify.Discard, nil)
		if mgr.Initialize(cmd.Context()) != auth.StateAuthenticated {
			cmd.Println("not logged in")
			return nil
		}

		s := mgr.Session()
		exp, _ := mgr.ExpiresAt()
		cmd.Println("Logged in: yes")
		cmd.Printf("Session: %s\n", s.ID)
		cmd.Printf("Issued: %s\n", s.IssuedAt.Local().Format(time.RFC3339))
		cmd.Printf("Expires: %s\n", exp.Local().Format(time.RFC3339))
		cmd.Printf("Remaining: %s\n", time.Until(exp).Round(time.Minute).String())
		cmd.Printf("Backend: %s\n", cfg.SessionBackend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
