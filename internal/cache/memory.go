package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
)

type memoryUserCache struct {
	users *expirable.LRU[string, userdomain.User]
}

// NewMemoryUserCache returns a size-bounded in-process cache whose entries
// expire after ttl.
func NewMemoryUserCache(size int, ttl time.Duration) UserCache {
	if size <= 0 {
		size = defaultUserSize
	}
	if ttl <= 0 {
		ttl = defaultUserTTL
	}
	return &memoryUserCache{
		users: expirable.NewLRU[string, userdomain.User](size, nil, ttl),
	}
}

func (c *memoryUserCache) GetUser(_ context.Context, customerRef string) (*userdomain.User, bool) {
	user, ok := c.users.Get(cacheKey(customerRef))
	if !ok {
		return nil, false
	}
	return &user, true
}

func (c *memoryUserCache) SetUser(_ context.Context, customerRef string, user *userdomain.User) {
	key := cacheKey(customerRef)
	if user == nil || user.ID == 0 || key == "" {
		return
	}
	c.users.Add(key, *user)
}

func (c *memoryUserCache) Invalidate(_ context.Context, customerRef string) {
	c.users.Remove(cacheKey(customerRef))
}
