// Package domain models purchased-credit checkout: a fixed pack catalog
// and the session rows that bridge to the external payment provider.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	"github.com/bwmarrin/snowflake"
)

// Pack is one purchasable credit bundle. Larger packs carry a better
// points-per-yen ratio.
type Pack struct {
	ID       string `json:"id"`
	Points   int64  `json:"points"`
	PriceJPY int64  `json:"price_jpy"`
}

var packs = []Pack{
	{ID: "pack_small", Points: 100, PriceJPY: 1200},
	{ID: "pack_medium", Points: 550, PriceJPY: 6000},
	{ID: "pack_large", Points: 1200, PriceJPY: 12000},
}

// Packs returns the catalog, smallest first.
func Packs() []Pack {
	out := make([]Pack, len(packs))
	copy(out, packs)
	return out
}

// PackByID looks up a catalog pack.
func PackByID(id string) (Pack, bool) {
	for _, pack := range packs {
		if pack.ID == id {
			return pack, true
		}
	}
	return Pack{}, false
}

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
)

// CheckoutSession tracks one purchase attempt. Ref is the identifier
// shared with the payment provider and its webhook.
type CheckoutSession struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	Ref    string       `gorm:"type:text;not null;uniqueIndex:ux_checkout_sessions_ref"`
	UserID snowflake.ID `gorm:"not null;index"`

	PackID    string        `gorm:"type:text;not null"`
	Points    int64         `gorm:"not null"`
	AmountJPY int64         `gorm:"not null"`
	Currency  string        `gorm:"type:text;not null"`
	Provider  string        `gorm:"type:text;not null"`
	Status    SessionStatus `gorm:"type:text;not null"`

	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	CompletedAt *time.Time
}

// TableName sets the database table name.
func (CheckoutSession) TableName() string { return "checkout_sessions" }

type CreateSessionInput struct {
	Actor  actorcontext.Actor
	PackID string
}

type CreateSessionResponse struct {
	Session    *CheckoutSession `json:"session"`
	PaymentURL string           `json:"payment_url"`
}

type Service interface {
	ListPacks(ctx context.Context) []Pack
	// CreateSession opens a pending purchase. Organization members cannot
	// buy credits; their budget comes only from allocations.
	CreateSession(ctx context.Context, in CreateSessionInput) (*CreateSessionResponse, error)
	// CompleteSession is the webhook boundary: it marks the session paid
	// and credits the purchased points exactly once per ref.
	CompleteSession(ctx context.Context, ref string) (*CheckoutSession, error)
}

var (
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrForbidden        = errors.New("forbidden")
	ErrPackNotFound     = errors.New("pack_not_found")
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrSessionCompleted = errors.New("session_already_completed")
)
