package domain

import (
	"context"
	"errors"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
)

type RecordConsumptionRequest struct {
	Actor           actorcontext.Actor
	Mode            plandomain.Model
	Interactions    int64
	EstimatedTokens int64
}

type Service interface {
	// GetRemaining resolves the actor's current pools.
	GetRemaining(ctx context.Context, actor actorcontext.Actor) (plandomain.Context, error)
	// RecordConsumption debits points and accumulates the token estimate.
	// Monthly quota is consumed first, purchased credit second. All
	// counter writes are increment-by-delta.
	RecordConsumption(ctx context.Context, req RecordConsumptionRequest) error
	// AddPurchasedPoints tops up an owner's purchased balance; called from
	// the payment webhook boundary.
	AddPurchasedPoints(ctx context.Context, actor actorcontext.Actor, points int64) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidMode   = errors.New("invalid_mode")
	ErrInvalidPoints = errors.New("invalid_points")
	ErrInvalidTokens = errors.New("invalid_tokens")
)
