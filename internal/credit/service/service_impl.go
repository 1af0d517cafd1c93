package service

import (
	"context"
	"errors"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	obsmetrics "github.com/Tao119/eurekode-sub004/internal/observability/metrics"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	PlanSvc plandomain.Service
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	planSvc plandomain.Service
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func NewService(p Params) creditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("credit.service"),
		genID:   p.GenID,
		planSvc: p.PlanSvc,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) GetRemaining(ctx context.Context, actor actorcontext.Actor) (plandomain.Context, error) {
	return s.planSvc.Resolve(ctx, actor)
}

// RecordConsumption finalizes one interaction's accounting. Counters are
// mutated through increment-by-delta statements only, so N concurrent
// finalizations from the same actor sum exactly.
func (s *Service) RecordConsumption(ctx context.Context, req creditdomain.RecordConsumptionRequest) error {
	if req.Actor.UserID == 0 {
		return creditdomain.ErrInvalidActor
	}
	if plandomain.Rate(req.Mode) <= 0 {
		return creditdomain.ErrInvalidMode
	}
	if req.EstimatedTokens < 0 {
		return creditdomain.ErrInvalidTokens
	}
	interactions := req.Interactions
	if interactions <= 0 {
		interactions = 1
	}

	points := plandomain.DebitPoints(req.Mode, interactions)
	planCtx, err := s.planSvc.Resolve(ctx, req.Actor)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	periodStart, periodEnd := creditdomain.PeriodWindow(now)

	var monthlyDelta, purchasedDelta int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if planCtx.Member {
			if err := s.debitAllocation(ctx, tx, req.Actor, periodStart, points, now); err != nil {
				return err
			}
		} else {
			monthlyDelta, purchasedDelta, err = s.debitBalance(ctx, tx, req.Actor, planCtx.Plan, periodStart, periodEnd, points, now)
			if err != nil {
				return err
			}
		}
		return s.upsertTokenUsage(ctx, tx, req.Actor.UserID, now, req.Mode, req.EstimatedTokens)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		if planCtx.Member {
			s.metrics.ConsumptionPoints.WithLabelValues("allocated").Add(float64(points))
		} else {
			s.metrics.ConsumptionPoints.WithLabelValues("monthly").Add(float64(monthlyDelta))
			s.metrics.ConsumptionPoints.WithLabelValues("purchased").Add(float64(purchasedDelta))
		}
	}
	return nil
}

// debitAllocation increments the member's delegated counter. A member
// without an allocation row has zero budget; the interaction already
// streamed, so the miss is logged rather than failed (bounded drift).
func (s *Service) debitAllocation(ctx context.Context, tx *gorm.DB, actor actorcontext.Actor, periodStart time.Time, points int64, now time.Time) error {
	result := tx.WithContext(ctx).
		Model(&allocationdomain.CreditAllocation{}).
		Where("org_id = ? AND user_id = ? AND period_start = ?", actor.OrgID, actor.UserID, periodStart).
		Updates(map[string]any{
			"used_points": gorm.Expr("used_points + ?", points),
			"updated_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Warn("consumption recorded without allocation row",
			zap.String("user_id", actor.UserID.String()),
			zap.String("org_id", actor.OrgID.String()),
			zap.Int64("points", points),
		)
	}
	return nil
}

// debitBalance consumes monthly quota first, purchased credit second. The
// split is derived from a read, but both counters advance through a single
// increment statement, so concurrent debits never lose updates.
func (s *Service) debitBalance(ctx context.Context, tx *gorm.DB, actor actorcontext.Actor, plan plandomain.Plan, periodStart, periodEnd time.Time, points int64, now time.Time) (int64, int64, error) {
	// Admins resolve through their individual subscription, so their
	// consumption debits the personal balance, never the organization's.
	ownerColumn := "user_id"
	ownerID := actor.UserID

	if err := s.ensureBalanceRow(ctx, tx, ownerColumn, ownerID, periodStart, periodEnd, now); err != nil {
		return 0, 0, err
	}

	// Lazy period rollover: a stored row from an older month is reset to
	// the freshly computed window before the increment lands. The guard
	// in the WHERE clause makes concurrent rollovers apply once.
	if err := tx.WithContext(ctx).
		Model(&creditdomain.CreditBalance{}).
		Where(ownerColumn+" = ? AND period_start <> ?", ownerID, periodStart).
		Updates(map[string]any{
			"monthly_used": 0,
			"period_start": periodStart,
			"period_end":   periodEnd,
			"updated_at":   now,
		}).Error; err != nil {
		return 0, 0, err
	}

	var balance creditdomain.CreditBalance
	if err := tx.WithContext(ctx).
		Where(ownerColumn+" = ?", ownerID).
		First(&balance).Error; err != nil {
		return 0, 0, err
	}

	monthlyRemaining := plan.MonthlyPoints - balance.MonthlyUsed
	if monthlyRemaining < 0 {
		monthlyRemaining = 0
	}
	monthlyDelta := points
	if monthlyDelta > monthlyRemaining {
		monthlyDelta = monthlyRemaining
	}
	purchasedDelta := points - monthlyDelta

	if err := tx.WithContext(ctx).
		Model(&creditdomain.CreditBalance{}).
		Where(ownerColumn+" = ?", ownerID).
		Updates(map[string]any{
			"monthly_used":   gorm.Expr("monthly_used + ?", monthlyDelta),
			"purchased_used": gorm.Expr("purchased_used + ?", purchasedDelta),
			"updated_at":     now,
		}).Error; err != nil {
		return 0, 0, err
	}
	return monthlyDelta, purchasedDelta, nil
}

func (s *Service) ensureBalanceRow(ctx context.Context, tx *gorm.DB, ownerColumn string, ownerID snowflake.ID, periodStart, periodEnd, now time.Time) error {
	record := &creditdomain.CreditBalance{
		ID:          s.genID.Generate(),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id := ownerID
	if ownerColumn == "org_id" {
		record.OrgID = &id
	} else {
		record.UserID = &id
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: ownerColumn}},
			DoNothing: true,
		}).
		Create(record).Error
}

// upsertTokenUsage creates or increments the per-user daily row. The
// tokens_used counter is exact under concurrency; the breakdown map is
// merged best-effort inside the same transaction.
func (s *Service) upsertTokenUsage(ctx context.Context, tx *gorm.DB, userID snowflake.ID, now time.Time, mode plandomain.Model, tokens int64) error {
	date := now.UTC().Format(creditdomain.UsageDateFormat)
	record := &creditdomain.TokenUsage{
		ID:         s.genID.Generate(),
		UserID:     userID,
		UsageDate:  date,
		TokensUsed: tokens,
		Breakdown:  datatypes.JSONMap{string(mode): tokens},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "usage_date"}},
			DoUpdates: clause.Assignments(map[string]any{
				"tokens_used": gorm.Expr("tokens_used + ?", tokens),
				"updated_at":  now,
			}),
		}).
		Create(record).Error
	if err != nil {
		return err
	}
	return s.mergeBreakdown(ctx, tx, userID, date, mode, tokens)
}

func (s *Service) mergeBreakdown(ctx context.Context, tx *gorm.DB, userID snowflake.ID, date string, mode plandomain.Model, tokens int64) error {
	var record creditdomain.TokenUsage
	if err := tx.WithContext(ctx).
		Where("user_id = ? AND usage_date = ?", userID, date).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	breakdown := record.Breakdown
	if breakdown == nil {
		breakdown = datatypes.JSONMap{}
	}
	current, _ := toInt64(breakdown[string(mode)])
	// A fresh insert already carries this interaction in its breakdown.
	if record.TokensUsed == tokens && current == tokens {
		return nil
	}
	breakdown[string(mode)] = current + tokens

	return tx.WithContext(ctx).
		Model(&creditdomain.TokenUsage{}).
		Where("user_id = ? AND usage_date = ?", userID, date).
		Update("breakdown", breakdown).Error
}

func (s *Service) AddPurchasedPoints(ctx context.Context, actor actorcontext.Actor, points int64) error {
	if actor.UserID == 0 {
		return creditdomain.ErrInvalidActor
	}
	if actor.Role == actorcontext.RoleMember {
		return creditdomain.ErrInvalidActor
	}
	if points <= 0 {
		return creditdomain.ErrInvalidPoints
	}

	now := s.clock.Now()
	periodStart, periodEnd := creditdomain.PeriodWindow(now)
	ownerColumn := "user_id"
	ownerID := actor.UserID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureBalanceRow(ctx, tx, ownerColumn, ownerID, periodStart, periodEnd, now); err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&creditdomain.CreditBalance{}).
			Where(ownerColumn+" = ?", ownerID).
			Updates(map[string]any{
				"purchased_balance": gorm.Expr("purchased_balance + ?", points),
				"updated_at":        now,
			}).Error
	})
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	default:
		return 0, false
	}
}
