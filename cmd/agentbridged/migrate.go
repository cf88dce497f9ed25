package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/store"
)

// newMigrateCmd mirrors the teacher's standalone cmd/dbctl entry point:
// applying schema migrations without starting the HTTP server.
func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := store.Open(cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			if err := store.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			fmt.Println("migrations applied")
			return nil
		},
	}
}
