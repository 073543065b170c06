package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// UpsertByExternalRef creates or overwrites the row keyed by
	// ExternalSubscriptionRef in a single statement and returns the stored row.
	UpsertByExternalRef(ctx context.Context, db *gorm.DB, subscription *Subscription) (*Subscription, error)
	// CancelByExternalRef reports false when no active row matched.
	CancelByExternalRef(ctx context.Context, db *gorm.DB, ref string, at time.Time) (bool, error)
	FindByExternalRef(ctx context.Context, db *gorm.DB, ref string) (*Subscription, error)
	List(ctx context.Context, db *gorm.DB) ([]Subscription, error)
}

var (
	ErrInvalidExternalRef = errors.New("invalid_external_subscription_ref")
	ErrInvalidPlanType    = errors.New("invalid_plan_type")
	ErrInvalidUser        = errors.New("invalid_user")
)
