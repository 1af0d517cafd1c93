package domain

import (
	"context"
	"errors"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
)

// Context is the resolved budget view for one actor at one instant.
type Context struct {
	Plan                     Plan
	IsOrganization           bool
	PlanPointsRemaining      int64
	PurchasedPointsRemaining int64
	// AllocatedPointsRemaining is meaningful for members only.
	AllocatedPointsRemaining int64
	// HasAllocation distinguishes a zero allocation row from no row at all.
	HasAllocation      bool
	Member             bool
	CanPurchaseCredits bool
}

type Service interface {
	Resolve(ctx context.Context, actor actorcontext.Actor) (Context, error)
}

var (
	ErrInvalidActor         = errors.New("invalid_actor")
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrUnknownTier          = errors.New("unknown_tier")
)
