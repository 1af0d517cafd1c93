package service

import (
	"context"
	"errors"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	"github.com/Tao119/eurekode-sub004/internal/cache"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	organizationdomain "github.com/Tao119/eurekode-sub004/internal/organization/domain"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	SubSvc        subscriptiondomain.Service
	AllocationSvc allocationdomain.Service
	Clock         clock.Clock
	ResolverCache cache.PlanResolverCache `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	subSvc        subscriptiondomain.Service
	allocationSvc allocationdomain.Service
	clock         clock.Clock
	resolverCache cache.PlanResolverCache
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("plan.service"),
		subSvc:        p.SubSvc,
		allocationSvc: p.AllocationSvc,
		clock:         p.Clock,
		resolverCache: p.ResolverCache,
	}
}

// Resolve builds the actor's plan context from subscription, balance, and
// allocation state. The month window is recomputed here on every call; a
// stored balance row for an older period contributes no usage.
func (s *Service) Resolve(ctx context.Context, actor actorcontext.Actor) (plandomain.Context, error) {
	if actor.UserID == 0 {
		return plandomain.Context{}, plandomain.ErrInvalidActor
	}

	if actor.Role == actorcontext.RoleMember {
		return s.resolveMember(ctx, actor)
	}
	return s.resolveIndividual(ctx, actor)
}

func (s *Service) resolveIndividual(ctx context.Context, actor actorcontext.Actor) (plandomain.Context, error) {
	tier := plandomain.DefaultTier(false)
	sub, err := s.lookupSubscription(ctx, actor.UserID)
	if err != nil {
		return plandomain.Context{}, err
	}
	if sub != nil {
		tier = sub.Plan
	}

	plan, ok := plandomain.ByTier(tier)
	if !ok {
		return plandomain.Context{}, plandomain.ErrUnknownTier
	}

	balance, err := s.findBalance(ctx, actor.UserID, 0)
	if err != nil {
		return plandomain.Context{}, err
	}

	periodStart, _ := creditdomain.PeriodWindow(s.clock.Now())
	monthlyUsed, purchasedRemaining := poolsFromBalance(balance, periodStart)

	return plandomain.Context{
		Plan:                     plan,
		IsOrganization:           false,
		PlanPointsRemaining:      nonNegative(plan.MonthlyPoints - monthlyUsed),
		PurchasedPointsRemaining: purchasedRemaining,
		CanPurchaseCredits:       true,
	}, nil
}

func (s *Service) resolveMember(ctx context.Context, actor actorcontext.Actor) (plandomain.Context, error) {
	if actor.OrgID == 0 {
		return plandomain.Context{}, plandomain.ErrInvalidActor
	}

	var org organizationdomain.Organization
	if err := s.db.WithContext(ctx).Where("id = ?", actor.OrgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return plandomain.Context{}, plandomain.ErrOrganizationNotFound
		}
		return plandomain.Context{}, err
	}

	plan, ok := plandomain.ByTier(org.Plan)
	if !ok {
		return plandomain.Context{}, plandomain.ErrUnknownTier
	}

	balance, err := s.findBalance(ctx, 0, actor.OrgID)
	if err != nil {
		return plandomain.Context{}, err
	}

	now := s.clock.Now()
	periodStart, _ := creditdomain.PeriodWindow(now)
	monthlyUsed, _ := poolsFromBalance(balance, periodStart)

	result := plandomain.Context{
		Plan:                plan,
		IsOrganization:      true,
		Member:              true,
		PlanPointsRemaining: nonNegative(plan.MonthlyPoints - monthlyUsed),
		// Members never hold a personal purchased balance.
		PurchasedPointsRemaining: 0,
		CanPurchaseCredits:       false,
	}

	allocation, err := s.allocationSvc.AllocationFor(ctx, actor.OrgID, actor.UserID, now)
	if err != nil {
		return plandomain.Context{}, err
	}
	if allocation != nil {
		result.HasAllocation = true
		result.AllocatedPointsRemaining = nonNegative(allocation.AllocatedPoints - allocation.UsedPoints)
	}

	return result, nil
}

// lookupSubscription serves individual and admin resolves; the member
// path reads its tier from the organization row instead.
func (s *Service) lookupSubscription(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if s.resolverCache != nil {
		if cached, ok := s.resolverCache.GetSubscription(userID); ok {
			return cached, nil
		}
	}

	sub, err := s.subSvc.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.resolverCache != nil {
		s.resolverCache.SetSubscription(userID, sub)
	}
	return sub, nil
}

func (s *Service) findBalance(ctx context.Context, userID, orgID snowflake.ID) (*creditdomain.CreditBalance, error) {
	var record creditdomain.CreditBalance
	stmt := s.db.WithContext(ctx)
	if userID != 0 {
		stmt = stmt.Where("user_id = ?", userID)
	} else {
		stmt = stmt.Where("org_id = ?", orgID)
	}
	if err := stmt.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// poolsFromBalance applies the freshly computed boundary: usage recorded
// against an older stored period does not count against this month.
// Purchased credit is not period-scoped and always carries over.
func poolsFromBalance(balance *creditdomain.CreditBalance, periodStart time.Time) (monthlyUsed, purchasedRemaining int64) {
	if balance == nil {
		return 0, 0
	}
	purchasedRemaining = nonNegative(balance.PurchasedBalance - balance.PurchasedUsed)
	if !balance.PeriodStart.UTC().Equal(periodStart) {
		return 0, purchasedRemaining
	}
	return balance.MonthlyUsed, purchasedRemaining
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
