package service

import (
	"context"
	"strings"

	"github.com/Tao119/eurekode-sub004/internal/clock"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	"github.com/Tao119/eurekode-sub004/internal/subscription/repository"
	"github.com/Tao119/eurekode-sub004/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  repository.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository
	clock clock.Clock
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) CreateTrial(ctx context.Context, req subscriptiondomain.CreateTrialRequest) (*subscriptiondomain.Subscription, error) {
	if (req.UserID == 0) == (req.OrgID == 0) {
		return nil, subscriptiondomain.ErrInvalidOwner
	}

	plan, ok := plandomain.ByTier(req.Plan)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidPlan
	}
	if plan.Organization != (req.OrgID != 0) {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	now := s.clock.Now()
	trialEnd := now.AddDate(0, 0, subscriptiondomain.TrialDays)
	record := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		Plan:               req.Plan,
		Status:             subscriptiondomain.SubscriptionStatusTrialing,
		TrialEnd:           &trialEnd,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.UserID != 0 {
		userID := req.UserID
		record.UserID = &userID
	}
	if req.OrgID != 0 {
		orgID := req.OrgID
		record.OrgID = &orgID
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, subscriptiondomain.ErrSubscriptionExists
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) AttachPaymentReference(ctx context.Context, subscriptionID snowflake.ID, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return subscriptiondomain.ErrInvalidReference
	}

	record, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return err
	}
	if record == nil {
		return subscriptiondomain.ErrSubscriptionNotFound
	}

	now := s.clock.Now()
	return s.repo.Update(ctx, s.db, subscriptionID, map[string]any{
		"external_payment_ref": reference,
		"status":               subscriptiondomain.SubscriptionStatusActive,
		"trial_end":            nil,
		"updated_at":           now,
	})
}

func (s *Service) GetByUserID(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return nil, subscriptiondomain.ErrInvalidOwner
	}
	return s.repo.FindByUserID(ctx, s.db, userID)
}

func (s *Service) GetByOrgID(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if orgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOwner
	}
	return s.repo.FindByOrgID(ctx, s.db, orgID)
}

func (s *Service) ChangePlan(ctx context.Context, subscriptionID snowflake.ID, tier plandomain.Tier) error {
	plan, ok := plandomain.ByTier(tier)
	if !ok {
		return subscriptiondomain.ErrInvalidPlan
	}

	record, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return err
	}
	if record == nil {
		return subscriptiondomain.ErrSubscriptionNotFound
	}
	if plan.Organization != (record.OrgID != nil) {
		return subscriptiondomain.ErrInvalidPlan
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, subscriptionID, map[string]any{
			"plan":       tier,
			"updated_at": s.clock.Now(),
		}); err != nil {
			return err
		}
		if record.OrgID != nil {
			return tx.Exec(`UPDATE organizations SET plan = ?, updated_at = ? WHERE id = ?`,
				tier, s.clock.Now(), *record.OrgID).Error
		}
		return nil
	})
}
