package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/entitlement/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertByExternalRef(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) (*domain.Subscription, error) {
	ref := strings.TrimSpace(subscription.ExternalSubscriptionRef)
	if ref == "" {
		return nil, domain.ErrInvalidExternalRef
	}
	if subscription.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	switch subscription.PlanType {
	case domain.PlanTypeMonth, domain.PlanTypeYear:
	default:
		return nil, domain.ErrInvalidPlanType
	}
	subscription.ExternalSubscriptionRef = ref

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_subscription_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"status",
			"plan_type",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"updated_at",
		}),
	}).Create(subscription).Error
	if err != nil {
		return nil, err
	}

	// The primary key of a conflicting insert is not reported back, so read
	// the stored row by its unique ref.
	return r.FindByExternalRef(ctx, db, ref)
}

func (r *repo) CancelByExternalRef(ctx context.Context, db *gorm.DB, ref string, at time.Time) (bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false, domain.ErrInvalidExternalRef
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, canceled_at = ?, updated_at = ?
		 WHERE external_subscription_ref = ? AND status <> ?`,
		domain.SubscriptionStatusCanceled,
		at,
		at,
		ref,
		domain.SubscriptionStatusCanceled,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, external_subscription_ref, status, plan_type,
			current_period_start, current_period_end, cancel_at_period_end,
			canceled_at, created_at, updated_at
		 FROM subscriptions
		 WHERE external_subscription_ref = ?`,
		ref,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Subscription, error) {
	var subscriptions []domain.Subscription
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Order("created_at desc, id desc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}
