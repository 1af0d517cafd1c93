package domain

import (
	"context"
	"errors"

	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
)

type CreateTrialRequest struct {
	UserID snowflake.ID
	OrgID  snowflake.ID
	Plan   plandomain.Tier
}

type Service interface {
	// CreateTrial opens a trialing subscription at registration. Exactly
	// one of UserID/OrgID must be set.
	CreateTrial(ctx context.Context, req CreateTrialRequest) (*Subscription, error)
	// AttachPaymentReference marks the subscription paid and resolves the
	// trial.
	AttachPaymentReference(ctx context.Context, subscriptionID snowflake.ID, reference string) error
	GetByUserID(ctx context.Context, userID snowflake.ID) (*Subscription, error)
	GetByOrgID(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	ChangePlan(ctx context.Context, subscriptionID snowflake.ID, tier plandomain.Tier) error
}

var (
	ErrInvalidOwner         = errors.New("invalid_owner")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrInvalidReference     = errors.New("invalid_payment_reference")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrSubscriptionExists   = errors.New("subscription_exists")
)
