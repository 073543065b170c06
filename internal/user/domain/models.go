package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the identity record provisioned outside this service. The only
// field written here is CurrentSubscriptionID.
type User struct {
	ID                    snowflake.ID  `gorm:"primaryKey" json:"id"`
	ExternalAuthID        string        `gorm:"type:text;not null;uniqueIndex" json:"external_auth_id"`
	ExternalCustomerID    string        `gorm:"type:text;not null;uniqueIndex" json:"external_customer_id"`
	Email                 string        `gorm:"type:text;not null" json:"email"`
	Name                  string        `gorm:"type:text;not null" json:"name"`
	CurrentSubscriptionID *snowflake.ID `gorm:"index" json:"current_subscription_id,omitempty"`
	CreatedAt             time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time     `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
