package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"go.uber.org/zap"
)

type redisUserCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache stores users as JSON under a prefixed key. Redis errors
// degrade to cache misses.
func NewRedisUserCache(client redis.UniversalClient, ttl time.Duration, log *zap.Logger) UserCache {
	if ttl <= 0 {
		ttl = defaultUserTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &redisUserCache{client: client, ttl: ttl, log: log}
}

func (c *redisUserCache) GetUser(ctx context.Context, customerRef string) (*userdomain.User, bool) {
	raw, err := c.client.Get(ctx, cacheKey(keyPrefix, customerRef)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("user cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var user userdomain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		c.log.Warn("user cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &user, true
}

func (c *redisUserCache) SetUser(ctx context.Context, customerRef string, user *userdomain.User) {
	if user == nil || user.ID == 0 || cacheKey(customerRef) == "" {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(keyPrefix, customerRef), raw, c.ttl).Err(); err != nil {
		c.log.Warn("user cache write failed", zap.Error(err))
	}
}

func (c *redisUserCache) Invalidate(ctx context.Context, customerRef string) {
	if err := c.client.Del(ctx, cacheKey(keyPrefix, customerRef)).Err(); err != nil {
		c.log.Warn("user cache invalidate failed", zap.Error(err))
	}
}
