// Package recorder tracks one streamed AI generation from pre-flight
// check to final ledger debit, checkpointing partial output so an
// interrupted stream stays recoverable.
package recorder

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	"github.com/Tao119/eurekode-sub004/internal/gate"
	gendomain "github.com/Tao119/eurekode-sub004/internal/generation/domain"
	obsmetrics "github.com/Tao119/eurekode-sub004/internal/observability/metrics"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EstimateTokens approximates token usage from character count,
// rounding up at four characters per token.
func EstimateTokens(chars int) int64 {
	if chars <= 0 {
		return 0
	}
	return int64((chars + 3) / 4)
}

type Params struct {
	fx.In

	LC      fx.Lifecycle
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	PlanSvc plandomain.Service
	Ledger  creditdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Recorder struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	planSvc     plandomain.Service
	ledger      creditdomain.Service
	metrics     *obsmetrics.Metrics
	checkpoints *checkpointWriter
}

func NewRecorder(p Params) *Recorder {
	r := &Recorder{
		db:      p.DB,
		log:     p.Log.Named("generation.recorder"),
		genID:   p.GenID,
		clock:   p.Clock,
		planSvc: p.PlanSvc,
		ledger:  p.Ledger,
		metrics: p.Metrics,
	}
	r.checkpoints = newCheckpointWriter(p.DB, p.Log, p.Clock, p.Metrics)
	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go r.checkpoints.run()
			return nil
		},
		OnStop: r.checkpoints.stop,
	})
	return r
}

type StartInput struct {
	Actor          actorcontext.Actor
	ConversationID snowflake.ID
	Mode           plandomain.Model
	// Prompt is the user message opening this exchange.
	Prompt string
}

// Start runs the pre-flight credit check, appends the user message and
// marks the conversation generating. The returned Run accumulates the
// streamed chunks until Complete or Fail.
func (r *Recorder) Start(ctx context.Context, in StartInput) (*Run, error) {
	if in.Actor.UserID == 0 || in.ConversationID == 0 {
		return nil, gendomain.ErrInvalidConversation
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, gendomain.ErrInvalidConversation
	}

	planCtx, err := r.planSvc.Resolve(ctx, in.Actor)
	if err != nil {
		return nil, err
	}
	if !planCtx.Plan.HasModel(in.Mode) {
		return nil, gendomain.ErrModelNotPermitted
	}
	decision := gate.Evaluate(planCtx)
	if decision.RemainingConversations[in.Mode] < 1 {
		return nil, &gate.InsufficientCreditsError{
			Remaining: decision.TotalPointsRemaining,
			Required:  plandomain.Rate(in.Mode),
			Actions:   decision.OutOfCreditsActions,
		}
	}

	now := r.clock.Now()
	var firstExchange bool
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation gendomain.Conversation
		if err := tx.Where("id = ? AND user_id = ?", in.ConversationID, in.Actor.UserID).
			First(&conversation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gendomain.ErrConversationNotFound
			}
			return err
		}

		var messageCount int64
		if err := tx.Model(&gendomain.Message{}).
			Where("conversation_id = ?", in.ConversationID).
			Count(&messageCount).Error; err != nil {
			return err
		}
		firstExchange = messageCount == 0

		if err := tx.Create(&gendomain.Message{
			ID:             r.genID.Generate(),
			ConversationID: in.ConversationID,
			Role:           gendomain.MessageRoleUser,
			Content:        in.Prompt,
			CreatedAt:      now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&gendomain.Conversation{}).
			Where("id = ?", in.ConversationID).
			Updates(map[string]any{
				"mode":              in.Mode,
				"generation_status": gendomain.GenerationStatusGenerating,
				"pending_content":   "",
				"generation_error":  "",
				"updated_at":        now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return &Run{
		recorder:       r,
		actor:          in.Actor,
		conversationID: in.ConversationID,
		mode:           in.Mode,
		prompt:         in.Prompt,
		firstExchange:  firstExchange,
	}, nil
}

// Recovery reports how the chat UI should resume an interrupted stream.
// A conversation still marked generating on load is an unresolved
// interruption; both it and a recorded failure offer a regenerate.
func (r *Recorder) Recovery(ctx context.Context, conversationID snowflake.ID) (gendomain.RecoveryState, error) {
	var conversation gendomain.Conversation
	if err := r.db.WithContext(ctx).
		Where("id = ?", conversationID).
		First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gendomain.RecoveryState{}, gendomain.ErrConversationNotFound
		}
		return gendomain.RecoveryState{}, err
	}

	state := gendomain.RecoveryState{
		Status:          conversation.GenerationStatus,
		PendingContent:  conversation.PendingContent,
		GenerationError: conversation.GenerationError,
	}
	state.OfferRegenerate = conversation.GenerationStatus != gendomain.GenerationStatusCompleted
	return state, nil
}

// Run is the live handle for one streamed generation.
type Run struct {
	recorder       *Recorder
	actor          actorcontext.Actor
	conversationID snowflake.ID
	mode           plandomain.Model
	prompt         string
	firstExchange  bool

	mu     sync.Mutex
	buf    strings.Builder
	chunks int
	done   bool
}

// Append records one streamed chunk. Every tenth chunk the accumulated
// content is checkpointed in the background.
func (run *Run) Append(chunk string) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.done {
		return
	}
	run.buf.WriteString(chunk)
	run.chunks++
	if run.chunks%checkpointInterval == 0 {
		run.recorder.checkpoints.enqueue(checkpoint{
			conversationID: run.conversationID,
			content:        run.buf.String(),
		})
	}
}

// Complete persists the assistant reply, clears the recovery fields and
// debits the ledger. A ledger failure after the content is saved is
// logged, not returned: the user already received the response.
func (run *Run) Complete(ctx context.Context) error {
	run.mu.Lock()
	if run.done {
		run.mu.Unlock()
		return gendomain.ErrRunFinalized
	}
	run.done = true
	content := run.buf.String()
	run.mu.Unlock()

	r := run.recorder
	now := r.clock.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&gendomain.Message{
			ID:             r.genID.Generate(),
			ConversationID: run.conversationID,
			Role:           gendomain.MessageRoleAssistant,
			Content:        content,
			CreatedAt:      now,
		}).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"generation_status": gendomain.GenerationStatusCompleted,
			"pending_content":   "",
			"generation_error":  "",
			"updated_at":        now,
		}
		if run.firstExchange {
			updates["title"] = DeriveTitle(run.prompt)
		}
		return tx.Model(&gendomain.Conversation{}).
			Where("id = ?", run.conversationID).
			Updates(updates).Error
	})
	if err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.GenerationOutcomes.WithLabelValues("completed").Inc()
	}

	tokens := EstimateTokens(len(run.prompt) + len(content))
	if err := r.ledger.RecordConsumption(ctx, creditdomain.RecordConsumptionRequest{
		Actor:           run.actor,
		Mode:            run.mode,
		Interactions:    1,
		EstimatedTokens: tokens,
	}); err != nil {
		r.log.Error("consumption record failed after completed generation",
			zap.String("conversation_id", run.conversationID.String()),
			zap.String("user_id", run.actor.UserID.String()),
			zap.Int64("estimated_tokens", tokens),
			zap.Error(err),
		)
	}
	return nil
}

// Fail marks the conversation failed, keeping the accumulated partial
// output as recoverable pending content. Failed generations are not
// billed.
func (run *Run) Fail(ctx context.Context, cause error) error {
	run.mu.Lock()
	if run.done {
		run.mu.Unlock()
		return gendomain.ErrRunFinalized
	}
	run.done = true
	content := run.buf.String()
	run.mu.Unlock()

	r := run.recorder
	message := "generation interrupted"
	if cause != nil {
		message = cause.Error()
	}
	err := r.db.WithContext(ctx).
		Model(&gendomain.Conversation{}).
		Where("id = ?", run.conversationID).
		Updates(map[string]any{
			"generation_status": gendomain.GenerationStatusFailed,
			"pending_content":   content,
			"generation_error":  message,
			"updated_at":        r.clock.Now(),
		}).Error
	if err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.GenerationOutcomes.WithLabelValues("failed").Inc()
	}
	return nil
}
