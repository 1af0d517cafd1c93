// Package domain contains persistence models for the credit ledger.
// Rows here are mutated only through the ledger's increment/upsert
// operations, never by direct field assignment elsewhere.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CreditBalance tracks one owner's monthly-quota usage and purchased
// credit. Exactly one of UserID/OrgID is set.
type CreditBalance struct {
	ID     snowflake.ID  `gorm:"primaryKey"`
	UserID *snowflake.ID `gorm:"uniqueIndex:ux_credit_balances_user"`
	OrgID  *snowflake.ID `gorm:"uniqueIndex:ux_credit_balances_org"`

	MonthlyUsed      int64 `gorm:"not null;default:0"`
	PurchasedBalance int64 `gorm:"not null;default:0"`
	PurchasedUsed    int64 `gorm:"not null;default:0"`

	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditBalance) TableName() string { return "credit_balances" }

// TokenUsage accumulates one user's coarse token estimate per day, with a
// per-mode breakdown.
type TokenUsage struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_token_usages_user_date,priority:1"`
	UsageDate string       `gorm:"type:text;not null;uniqueIndex:ux_token_usages_user_date,priority:2"`

	TokensUsed int64             `gorm:"not null;default:0"`
	Breakdown  datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TokenUsage) TableName() string { return "token_usages" }

// UsageDateFormat keys TokenUsage rows by calendar day.
const UsageDateFormat = "2006-01-02"
