package migration

import (
	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Run(conn); err != nil {
			return err
		}
		if cfg.SeedDevFixtures && !cfg.IsProduction() {
			return seed.EnsureDevFixtures(conn, log)
		}
		return nil
	}),
)
