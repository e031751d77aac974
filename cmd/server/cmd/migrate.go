package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"salesync/internal/infrastructure/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		m := migration.NewMigration(cfg, migration.DefaultEngine)
		if err := m.Up(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
