package cli

import (
	"fmt"

	"github.com/bissquit/incident-pulse/internal/config"
	"github.com/bissquit/incident-pulse/internal/pkg/postgres"
	"github.com/bissquit/incident-pulse/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return postgres.Migrate(cfg.Database.URL, migrations.FS)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
