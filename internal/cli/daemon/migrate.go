package daemon

import (
	"fmt"

	"github.com/huddlehq/huddle/internal/config"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			dir, _ := cmd.Flags().GetString("migrations")
			return runMigrations(cfg.DatabaseURL, dir, NewLogger(cfg))
		},
	}

	cmd.Flags().String("migrations", defaultMigrationsDir, "Directory holding the SQL migrations")

	return cmd
}
