package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, user *domain.User) error {
	if strings.TrimSpace(user.Email) == "" {
		return domain.ErrInvalidEmail
	}
	if strings.TrimSpace(user.ExternalCustomerID) == "" {
		return domain.ErrInvalidCustomerID
	}
	if strings.TrimSpace(user.ExternalAuthID) == "" {
		return domain.ErrInvalidAuthID
	}
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_auth_id, external_customer_id, email, name,
			current_subscription_id, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByExternalCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_auth_id, external_customer_id, email, name,
			current_subscription_id, created_at, updated_at
		 FROM users WHERE external_customer_id = ?
		 LIMIT 1`,
		customerID,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) SetCurrentSubscription(ctx context.Context, db *gorm.DB, userID, subscriptionID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET current_subscription_id = ?, updated_at = ?
		 WHERE id = ?`,
		subscriptionID,
		time.Now().UTC(),
		userID,
	).Error
}

// ClearCurrentSubscription unsets the pointer only while it still references
// subscriptionID, so a newer subscription is never detached.
func (r *repo) ClearCurrentSubscription(ctx context.Context, db *gorm.DB, userID, subscriptionID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET current_subscription_id = NULL, updated_at = ?
		 WHERE id = ? AND current_subscription_id = ?`,
		time.Now().UTC(),
		userID,
		subscriptionID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Order("created_at desc, id desc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
