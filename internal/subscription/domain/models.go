// Package domain contains persistence models for subscription grants.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription grant.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// PlanType is the billing interval of the subscribed plan.
type PlanType string

const (
	PlanTypeMonth PlanType = "month"
	PlanTypeYear  PlanType = "year"
)

// Subscription captures a user's Pro-tier grant mirrored from the processor.
type Subscription struct {
	ID                      snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID                  snowflake.ID       `gorm:"not null;index" json:"user_id"`
	ExternalSubscriptionRef string             `gorm:"type:text;not null;uniqueIndex" json:"external_subscription_ref"`
	Status                  SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	PlanType                PlanType           `gorm:"type:text;not null" json:"plan_type"`
	CurrentPeriodStart      time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd        time.Time          `gorm:"not null" json:"current_period_end"`
	CancelAtPeriodEnd       bool               `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CanceledAt              *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt               time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time          `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}
