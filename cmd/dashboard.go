package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/chatwatch/internal/notify"
	"github.com/fakeyudi/chatwatch/internal/tui"
)

var dashboardPath string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd, dashboardPath)
	},
}

// runDashboard starts the TUI at path. Notifications go to the TUI's toast
// bar and route changes requested by the auth manager go to its navigator.
func runDashboard(cmd *cobra.Command, path string) error {
	queue := notify.NewQueue(16)
	nav := tui.NewNavigator()
	return tui.Run(cmd.Context(), tui.Deps{
		Manager:       newManager(queue, nav),
		API:           newClient(queue),
		Notifications: queue,
		Navigator:     nav,
		Logger:        logger,
		PageSize:      cfg.PageSize,
		StartPath:     path,
	})
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardPath, "path", "/", "route to open first, e.g. /executions or /chat/<id>")
	rootCmd.AddCommand(dashboardCmd)
}
