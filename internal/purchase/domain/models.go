package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Purchase is an immutable course ownership fact. ExternalPurchaseRef is the
// checkout session id and the idempotency key.
type Purchase struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID              snowflake.ID `gorm:"not null;index" json:"user_id"`
	CourseID            string       `gorm:"type:text;not null;index" json:"course_id"`
	Amount              int64        `gorm:"not null" json:"amount"`
	Currency            string       `gorm:"type:text;not null;default:''" json:"currency"`
	ExternalPurchaseRef string       `gorm:"type:text;not null;uniqueIndex" json:"external_purchase_ref"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
}

func (Purchase) TableName() string { return "purchases" }

type Repository interface {
	// InsertIfAbsent stores purchase unless a row with the same
	// ExternalPurchaseRef exists. It returns the stored row and whether this
	// call created it.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, purchase *Purchase) (*Purchase, bool, error)
	FindByExternalRef(ctx context.Context, db *gorm.DB, ref string) (*Purchase, error)
	List(ctx context.Context, db *gorm.DB) ([]Purchase, error)
}

var (
	ErrInvalidExternalRef = errors.New("invalid_external_purchase_ref")
	ErrInvalidCourse      = errors.New("invalid_course")
	ErrInvalidAmount      = errors.New("invalid_amount")
)
