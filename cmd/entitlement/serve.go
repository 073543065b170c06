package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/cache"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/course"
	"github.com/smallbiznis/entitlement/internal/migration"
	"github.com/smallbiznis/entitlement/internal/notification"
	"github.com/smallbiznis/entitlement/internal/observability"
	"github.com/smallbiznis/entitlement/internal/payment"
	"github.com/smallbiznis/entitlement/internal/providers"
	"github.com/smallbiznis/entitlement/internal/purchase"
	"github.com/smallbiznis/entitlement/internal/server"
	"github.com/smallbiznis/entitlement/internal/subscription"
	"github.com/smallbiznis/entitlement/internal/user"
	"github.com/smallbiznis/entitlement/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var nodeID int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				// Core Infrastructure
				config.Module,
				observability.Module,
				fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(nodeID) }),
				db.Module,
				clock.Module,
				migration.Module,
				cache.Module,

				// Functional Domains
				user.Module,
				course.Module,
				purchase.Module,
				subscription.Module,
				providers.Module,
				notification.Module,
				payment.Module,

				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().Int64Var(&nodeID, "node-id", 1, "snowflake node id, unique per replica")
	return cmd
}
