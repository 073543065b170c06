package cache

import (
	"context"
	"strings"
	"time"

	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
)

const (
	defaultUserTTL  = 5 * time.Minute
	defaultUserSize = 1024
	keyPrefix       = "entitlement:user:customer"
)

// UserCache stores positive customer-ref lookups for the entitlement
// resolver. Misses are never cached so late-provisioned users resolve.
type UserCache interface {
	GetUser(ctx context.Context, customerRef string) (*userdomain.User, bool)
	SetUser(ctx context.Context, customerRef string, user *userdomain.User)
	Invalidate(ctx context.Context, customerRef string)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}
