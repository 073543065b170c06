package resolver

import (
	"context"
	"strings"

	"github.com/smallbiznis/entitlement/internal/cache"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Users userdomain.Repository
	Cache cache.UserCache `optional:"true"`
}

// Resolver maps a billing customer reference to the internal user.
type Resolver struct {
	db    *gorm.DB
	log   *zap.Logger
	users userdomain.Repository
	cache cache.UserCache
}

func New(p Params) *Resolver {
	return &Resolver{
		db:    p.DB,
		log:   p.Log.Named("payment.resolver"),
		users: p.Users,
		cache: p.Cache,
	}
}

// ResolveUser returns ErrMissingReference for a blank ref and
// ErrUserNotFound when no user carries it. Store failures are StoreError.
func (r *Resolver) ResolveUser(ctx context.Context, customerRef string) (*userdomain.User, error) {
	customerRef = strings.TrimSpace(customerRef)
	if customerRef == "" {
		return nil, paymentdomain.ErrMissingReference
	}

	if r.cache != nil {
		if user, ok := r.cache.GetUser(ctx, customerRef); ok {
			return user, nil
		}
	}

	user, err := r.users.FindByExternalCustomerID(ctx, r.db, customerRef)
	if err != nil {
		return nil, paymentdomain.NewStoreError("find_user_by_customer", err)
	}
	if user == nil {
		r.log.Warn("no user for billing customer", zap.String("customer_ref", customerRef))
		return nil, paymentdomain.ErrUserNotFound
	}

	if r.cache != nil {
		r.cache.SetUser(ctx, customerRef, user)
	}
	return user, nil
}
