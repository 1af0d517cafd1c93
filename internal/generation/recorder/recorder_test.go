package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	"github.com/Tao119/eurekode-sub004/internal/gate"
	gendomain "github.com/Tao119/eurekode-sub004/internal/generation/domain"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubPlanService struct {
	planCtx plandomain.Context
}

func (s *stubPlanService) Resolve(ctx context.Context, actor actorcontext.Actor) (plandomain.Context, error) {
	return s.planCtx, nil
}

type stubLedger struct {
	requests []creditdomain.RecordConsumptionRequest
	err      error
}

func (s *stubLedger) GetRemaining(ctx context.Context, actor actorcontext.Actor) (plandomain.Context, error) {
	return plandomain.Context{}, nil
}
func (s *stubLedger) RecordConsumption(ctx context.Context, req creditdomain.RecordConsumptionRequest) error {
	if s.err != nil {
		return s.err
	}
	s.requests = append(s.requests, req)
	return nil
}
func (s *stubLedger) AddPurchasedPoints(ctx context.Context, actor actorcontext.Actor, points int64) error {
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(&gendomain.Conversation{}, &gendomain.Message{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func starterContext(t *testing.T) plandomain.Context {
	t.Helper()
	plan, ok := plandomain.ByTier(plandomain.TierStarter)
	if !ok {
		t.Fatal("starter plan missing from catalog")
	}
	return plandomain.Context{Plan: plan, PlanPointsRemaining: 100, CanPurchaseCredits: true}
}

func newTestRecorder(t *testing.T, db *gorm.DB, planCtx plandomain.Context, ledger *stubLedger) *Recorder {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	lc := fxtest.NewLifecycle(t)
	r := NewRecorder(Params{
		LC:      lc,
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)),
		PlanSvc: &stubPlanService{planCtx: planCtx},
		Ledger:  ledger,
	})
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)
	return r
}

func seedConversation(t *testing.T, db *gorm.DB, userID snowflake.ID) snowflake.ID {
	t.Helper()
	id := snowflake.ID(1000)
	err := db.Create(&gendomain.Conversation{
		ID:               id,
		UserID:           userID,
		Mode:             plandomain.ModelStandard,
		GenerationStatus: gendomain.GenerationStatusCompleted,
	}).Error
	if err != nil {
		t.Fatalf("failed to seed conversation: %v", err)
	}
	return id
}

func TestStartMarksGeneratingAndStoresPrompt(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRecorder(t, db, starterContext(t), &stubLedger{})
	actor := actorcontext.Actor{UserID: snowflake.ID(42), Role: actorcontext.RoleIndividual}
	conversationID := seedConversation(t, db, actor.UserID)

	run, err := r.Start(context.Background(), StartInput{
		Actor:          actor,
		ConversationID: conversationID,
		Mode:           plandomain.ModelStandard,
		Prompt:         "explain closures",
	})
	assert.NoError(t, err)
	assert.NotNil(t, run)

	var conversation gendomain.Conversation
	assert.NoError(t, db.Where("id = ?", conversationID).First(&conversation).Error)
	assert.Equal(t, gendomain.GenerationStatusGenerating, conversation.GenerationStatus)
	assert.Empty(t, conversation.PendingContent)
	assert.Empty(t, conversation.GenerationError)

	var messages []gendomain.Message
	assert.NoError(t, db.Where("conversation_id = ?", conversationID).Find(&messages).Error)
	assert.Len(t, messages, 1)
	assert.Equal(t, gendomain.MessageRoleUser, messages[0].Role)
	assert.Equal(t, "explain closures", messages[0].Content)
}

func TestStartBlockedWithoutCredits(t *testing.T) {
	db := setupTestDB(t)
	planCtx := starterContext(t)
	planCtx.PlanPointsRemaining = 0
	r := newTestRecorder(t, db, planCtx, &stubLedger{})
	actor := actorcontext.Actor{UserID: snowflake.ID(42), Role: actorcontext.RoleIndividual}
	conversationID := seedConversation(t, db, actor.UserID)

	_, err := r.Start(context.Background(), StartInput{
		Actor:          actor,
		ConversationID: conversationID,
		Mode:           plandomain.ModelStandard,
		Prompt:         "hello",
	})

	var insufficient *gate.InsufficientCreditsError
	assert.True(t, errors.As(err, &insufficient))

	// A blocked pre-flight never touches the conversation.
	var messages int64
	assert.NoError(t, db.Model(&gendomain.Message{}).Count(&messages).Error)
	assert.Equal(t, int64(0), messages)
}

func TestStartRejectsModelOutsidePlan(t *testing.T) {
	db := setupTestDB(t)
	freePlan, _ := plandomain.ByTier(plandomain.TierFree)
	r := newTestRecorder(t, db, plandomain.Context{Plan: freePlan, PlanPointsRemaining: 10}, &stubLedger{})
	actor := actorcontext.Actor{UserID: snowflake.ID(42), Role: actorcontext.RoleIndividual}
	conversationID := seedConversation(t, db, actor.UserID)

	_, err := r.Start(context.Background(), StartInput{
		Actor:          actor,
		ConversationID: conversationID,
		Mode:           plandomain.ModelAdvanced,
		Prompt:         "hello",
	})
	assert.ErrorIs(t, err, gendomain.ErrModelNotPermitted)
}

func TestStartUnknownConversation(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRecorder(t, db, starterContext(t), &stubLedger{})
	actor := actorcontext.Actor{UserID: snowflake.ID(42), Role: actorcontext.RoleIndividual}

	_, err := r.Start(context.Background(), StartInput{
		Actor:          actor,
		ConversationID: snowflake.ID(404),
		Mode:           plandomain.ModelStandard,
		Prompt:         "hello",
	})
	assert.ErrorIs(t, err, gendomain.ErrConversationNotFound)
}

func TestCompletePersistsReplyAndDebits(t *testing.T) {
	db := setupTestDB(t)
	ledger := &stubLedger{}
	r := newTestRecorder(t, db, starterContext(t), ledger)
	actor := actorcontext.Actor{UserID: snowflake.ID(42), Role: actorcontext.RoleIndividual}
	conversationID := seedConversation(t, db, actor.UserID)

	prompt := "explain closures"
	run, err := r.Start(context.Background(), StartInput{
		Actor:          actor,
		ConversationID: conversationID,
		Mode:           plandomain.ModelAdvanced,
		Prompt:         prompt,
	})
	assert.NoError(t, err)

	run.Append("a closure captures ")
	run.Append("its environment")
	assert.NoError(t, run.Complete(context.Background()))

	var conversation gendomain.Conversation
	assert.NoError(t, db.Where("id = ?", conversationID).First(&conversation).Error)
	assert.Equal(t, gendomain.GenerationStatusCompleted, conversation.GenerationStatus)
	assert.Empty(t, conversation.PendingContent)
	// First exchange sets the title from the prompt.
	assert.Equal(t, "explain closures", conversation.Title)

	var messages []gendomain.Message
	assert.NoError(t, db.Where("conversation_id = ?", conversationID).Order("id").Find(&messages).Error)
	assert.Len(t, messages, 2)
	assert.Equal(t, gendomain.MessageRoleAssistant, messages[1].Role)
	assert.Equal(t, "a closure captures its environment", messages[1].Content)

	assert.Len(t, ledger.requests, 1)
	recorded := ledger.requests[0]
	assert.Equal(t, plandomain.ModelAdvanced, recorded.Mode)
	assert.Equal(t, int64(1), recorded.Interactions)
	assert.Equal(t, EstimateTokens(len(prompt)+len("a closure captures its environment")), recorded.EstimatedTokens)

	// A finalized run cannot be finalized again.
	assert.ErrorIs(t, run.Complete(context.Background()), gendomain.ErrRunFinalized)
}

func TestCompleteSurvivesLedgerFailure(t *testing.T) {
	db := setupTestDB(t)
	ledger := &stubLedger{err: errors.New("store down")}
	r := newTestRecorder(t, db, starterContext(t), ledger)
	actor := actorcontext.Actor{UserID: snowflake.ID(42), Role: actorcontext.RoleIndividual}
	conversationID := seedConversation(t, db, actor.UserID)

	run, err := r.Start(context.Background(), StartInput{
		Actor:          actor,
		ConversationID: conversationID,
		Mode:           plandomain.ModelStandard,
		Prompt:         "hello",
	})
	assert.NoError(t, err)
	run.Append("world")

	// The reply already streamed; accounting failure is logged, not raised.
	assert.NoError(t, run.Complete(context.Background()))

	var conversation gendomain.Conversation
	assert.NoError(t, db.Where("id = ?", conversationID).First(&conversation).Error)
	assert.Equal(t, gendomain.GenerationStatusCompleted, conversation.GenerationStatus)
}

func TestFailKeepsPartialOutput(t *testing.T) {
	db := setupTestDB(t)
	ledger := &stubLedger{}
	r := newTestRecorder(t, db, starterContext(t), ledger)
	actor := actorcontext.Actor{UserID: snowflake.ID(42), Role: actorcontext.RoleIndividual}
	conversationID := seedConversation(t, db, actor.UserID)

	run, err := r.Start(context.Background(), StartInput{
		Actor:          actor,
		ConversationID: conversationID,
		Mode:           plandomain.ModelStandard,
		Prompt:         "hello",
	})
	assert.NoError(t, err)

	run.Append("partial out")
	assert.NoError(t, run.Fail(context.Background(), errors.New("provider reset")))

	var conversation gendomain.Conversation
	assert.NoError(t, db.Where("id = ?", conversationID).First(&conversation).Error)
	assert.Equal(t, gendomain.GenerationStatusFailed, conversation.GenerationStatus)
	assert.Equal(t, "partial out", conversation.PendingContent)
	assert.Equal(t, "provider reset", conversation.GenerationError)

	// Failed generations are not billed.
	assert.Empty(t, ledger.requests)

	state, err := r.Recovery(context.Background(), conversationID)
	assert.NoError(t, err)
	assert.Equal(t, gendomain.GenerationStatusFailed, state.Status)
	assert.Equal(t, "partial out", state.PendingContent)
	assert.True(t, state.OfferRegenerate)
}

func TestRecoveryCompletedConversation(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRecorder(t, db, starterContext(t), &stubLedger{})
	conversationID := seedConversation(t, db, snowflake.ID(42))

	state, err := r.Recovery(context.Background(), conversationID)
	assert.NoError(t, err)
	assert.Equal(t, gendomain.GenerationStatusCompleted, state.Status)
	assert.False(t, state.OfferRegenerate)

	_, err = r.Recovery(context.Background(), snowflake.ID(404))
	assert.ErrorIs(t, err, gendomain.ErrConversationNotFound)
}

func TestCheckpointWriteOnlyWhileGenerating(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	w := newCheckpointWriter(db, zap.NewNop(), clk, nil)

	generating := snowflake.ID(1)
	assert.NoError(t, db.Create(&gendomain.Conversation{
		ID:               generating,
		UserID:           snowflake.ID(42),
		Mode:             plandomain.ModelStandard,
		GenerationStatus: gendomain.GenerationStatusGenerating,
	}).Error)
	completed := snowflake.ID(2)
	assert.NoError(t, db.Create(&gendomain.Conversation{
		ID:               completed,
		UserID:           snowflake.ID(42),
		Mode:             plandomain.ModelStandard,
		GenerationStatus: gendomain.GenerationStatusCompleted,
	}).Error)

	w.write(checkpoint{conversationID: generating, content: "snapshot"})
	w.write(checkpoint{conversationID: completed, content: "stale"})

	var conversation gendomain.Conversation
	assert.NoError(t, db.Where("id = ?", generating).First(&conversation).Error)
	assert.Equal(t, "snapshot", conversation.PendingContent)

	var completedConversation gendomain.Conversation
	assert.NoError(t, db.Where("id = ?", completed).First(&completedConversation).Error)
	assert.Empty(t, completedConversation.PendingContent)
}
