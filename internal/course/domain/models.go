package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Course is owned by the external catalog; this service only reads it.
type Course struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Price     int64     `gorm:"not null" json:"price"`
	ImageURL  string    `gorm:"type:text" json:"image_url"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Course) TableName() string { return "courses" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Course, error)
	List(ctx context.Context, db *gorm.DB) ([]Course, error)
}
