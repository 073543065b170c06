package cache

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/entitlement/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// Provide selects Redis when REDIS_ADDR is set and the in-memory LRU
// otherwise.
func Provide(p Params) UserCache {
	cfg := p.Config.Cache
	log := p.Log.Named("cache")

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("user cache backend", zap.String("backend", "memory"))
		return NewMemoryUserCache(cfg.MemorySize, cfg.UserTTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable, lookups will fall through", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("user cache backend", zap.String("backend", "redis"), zap.String("addr", addr))
	return NewRedisUserCache(client, cfg.UserTTL, log)
}
