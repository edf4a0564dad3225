package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/chatwatch/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure chatwatch (re-run anytime to edit settings)",
	// Bypass the normal PersistentPreRunE so setup works with a broken config.
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		existing := config.Defaults()
		if global, err := config.LoadGlobal(); err == nil {
			existing = config.Merge(global, nil)
		}

		c, err := config.RunSetup(cmd.InOrStdin(), cmd.OutOrStdout(), existing)
		if err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
		if err := config.Save(c); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		path, _ := config.GlobalPath()
		cmd.Printf("  ✓ Config saved to %s\n", path)
		cmd.Println("  Run 'chatwatch login' to sign in.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
