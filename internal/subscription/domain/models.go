// Package domain contains persistence models for subscriptions.
package domain

import (
	"time"

	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "TRIALING"
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

// TrialDays is granted at registration before a payment method exists.
const TrialDays = 14

// Subscription belongs to exactly one user or one organization, never both.
type Subscription struct {
	ID     snowflake.ID  `gorm:"primaryKey"`
	UserID *snowflake.ID `gorm:"uniqueIndex:ux_subscriptions_user"`
	OrgID  *snowflake.ID `gorm:"uniqueIndex:ux_subscriptions_org"`

	Plan   plandomain.Tier    `gorm:"type:text;not null"`
	Status SubscriptionStatus `gorm:"type:text;not null"`

	// TrialEnd is cleared once the trial is resolved (paid or downgraded).
	TrialEnd *time.Time `gorm:"index"`
	// ExternalPaymentRef absent means "not yet paid".
	ExternalPaymentRef *string `gorm:"type:text"`

	CurrentPeriodStart time.Time `gorm:"not null"`
	CurrentPeriodEnd   time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
