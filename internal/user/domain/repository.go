package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository returns (nil, nil) from finders when no row matches.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByExternalCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*User, error)
	SetCurrentSubscription(ctx context.Context, db *gorm.DB, userID, subscriptionID snowflake.ID) error
	ClearCurrentSubscription(ctx context.Context, db *gorm.DB, userID, subscriptionID snowflake.ID) (bool, error)
	List(ctx context.Context, db *gorm.DB) ([]User, error)
}

var (
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidCustomerID = errors.New("invalid_customer_id")
	ErrInvalidAuthID     = errors.New("invalid_auth_id")
)
