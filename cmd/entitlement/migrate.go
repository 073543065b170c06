package main

import (
	"context"
	"time"

	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/migration"
	"github.com/smallbiznis/entitlement/internal/observability"
	"github.com/smallbiznis/entitlement/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func migrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		Long: `Apply schema migrations and exit.

Postgres uses the embedded SQL migrations; other dialects are auto-migrated
from the models. Development fixtures are seeded when SEED_DEV_FIXTURES is set
outside production.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// migrations run while the graph is built
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.Stop(ctx)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "start and stop timeout")
	return cmd
}
