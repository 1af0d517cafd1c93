package service

import (
	"context"
	"errors"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	checkoutdomain "github.com/Tao119/eurekode-sub004/internal/checkout/domain"
	"github.com/Tao119/eurekode-sub004/internal/checkout/provider"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	"github.com/Tao119/eurekode-sub004/internal/config"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Ledger   creditdomain.Service
	Provider provider.Provider
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	currency string
	ledger   creditdomain.Service
	provider provider.Provider
}

func NewService(p Params) checkoutdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("checkout.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		currency: p.Config.CheckoutCurrency,
		ledger:   p.Ledger,
		provider: p.Provider,
	}
}

func (s *Service) ListPacks(ctx context.Context) []checkoutdomain.Pack {
	return checkoutdomain.Packs()
}

func (s *Service) CreateSession(ctx context.Context, in checkoutdomain.CreateSessionInput) (*checkoutdomain.CreateSessionResponse, error) {
	if in.Actor.UserID == 0 {
		return nil, checkoutdomain.ErrInvalidActor
	}
	if in.Actor.Role == actorcontext.RoleMember {
		return nil, checkoutdomain.ErrForbidden
	}
	pack, ok := checkoutdomain.PackByID(in.PackID)
	if !ok {
		return nil, checkoutdomain.ErrPackNotFound
	}

	now := s.clock.Now()
	session := &checkoutdomain.CheckoutSession{
		ID:        s.genID.Generate(),
		Ref:       ulid.Make().String(),
		UserID:    in.Actor.UserID,
		PackID:    pack.ID,
		Points:    pack.Points,
		AmountJPY: pack.PriceJPY,
		Currency:  s.currency,
		Provider:  s.provider.Name(),
		Status:    checkoutdomain.SessionStatusPending,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}

	url, err := s.provider.PaymentURL(session)
	if err != nil {
		return nil, err
	}
	s.log.Info("checkout session opened",
		zap.String("ref", session.Ref),
		zap.String("pack_id", pack.ID),
		zap.Int64("points", pack.Points),
	)
	return &checkoutdomain.CreateSessionResponse{Session: session, PaymentURL: url}, nil
}

// CompleteSession flips the session to completed exactly once; the
// guarded update makes a replayed webhook a no-op before any credit lands.
func (s *Service) CompleteSession(ctx context.Context, ref string) (*checkoutdomain.CheckoutSession, error) {
	if ref == "" {
		return nil, checkoutdomain.ErrSessionNotFound
	}

	var session checkoutdomain.CheckoutSession
	if err := s.db.WithContext(ctx).
		Where("ref = ?", ref).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, checkoutdomain.ErrSessionNotFound
		}
		return nil, err
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).
		Model(&checkoutdomain.CheckoutSession{}).
		Where("ref = ? AND status = ?", ref, checkoutdomain.SessionStatusPending).
		Updates(map[string]any{
			"status":       checkoutdomain.SessionStatusCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, checkoutdomain.ErrSessionCompleted
	}

	actor := actorcontext.Actor{UserID: session.UserID, Role: actorcontext.RoleIndividual}
	if err := s.ledger.AddPurchasedPoints(ctx, actor, session.Points); err != nil {
		// The session is marked paid; a credit failure here needs an
		// operator, not a provider retry that would double-charge.
		s.log.Error("purchased points credit failed",
			zap.String("ref", ref),
			zap.String("user_id", session.UserID.String()),
			zap.Int64("points", session.Points),
			zap.Error(err),
		)
		return nil, err
	}

	session.Status = checkoutdomain.SessionStatusCompleted
	session.CompletedAt = &now
	s.log.Info("checkout session completed",
		zap.String("ref", ref),
		zap.Int64("points", session.Points),
	)
	return &session, nil
}
