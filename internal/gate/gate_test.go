package gate

import (
	"errors"
	"testing"

	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/stretchr/testify/assert"
)

func planFor(t *testing.T, tier plandomain.Tier) plandomain.Plan {
	t.Helper()
	plan, ok := plandomain.ByTier(tier)
	if !ok {
		t.Fatalf("unknown tier %s", tier)
	}
	return plan
}

func TestEvaluateRemainingConversations(t *testing.T) {
	planCtx := plandomain.Context{
		Plan:                planFor(t, plandomain.TierStarter),
		PlanPointsRemaining: 5,
	}

	decision := Evaluate(planCtx)

	assert.Equal(t, int64(5), decision.TotalPointsRemaining)
	assert.Equal(t, int64(5), decision.RemainingConversations[plandomain.ModelStandard])
	// floor(5 / 1.6) = 3
	assert.Equal(t, int64(3), decision.RemainingConversations[plandomain.ModelAdvanced])
}

func TestEvaluateLowBalanceWarning(t *testing.T) {
	// quota=300, monthlyUsed=295, no purchased credit.
	planCtx := plandomain.Context{
		Plan:                planFor(t, plandomain.TierStarter),
		PlanPointsRemaining: 5,
	}

	decision := Evaluate(planCtx)

	assert.True(t, decision.CanStartConversation)
	assert.True(t, decision.LowBalanceWarning)
}

func TestEvaluateSumsPlanAndPurchased(t *testing.T) {
	planCtx := plandomain.Context{
		Plan:                     planFor(t, plandomain.TierPro),
		PlanPointsRemaining:      10,
		PurchasedPointsRemaining: 90,
	}

	decision := Evaluate(planCtx)

	assert.Equal(t, int64(100), decision.TotalPointsRemaining)
	assert.False(t, decision.LowBalanceWarning)
	assert.ElementsMatch(t,
		[]plandomain.Model{plandomain.ModelStandard, plandomain.ModelAdvanced},
		decision.AvailableModels,
	)
}

func TestEvaluateMemberWithoutAllocation(t *testing.T) {
	// The organization's pool is large, but a member with no allocation
	// row has zero budget.
	planCtx := plandomain.Context{
		Plan:                planFor(t, plandomain.TierOrgBusiness),
		IsOrganization:      true,
		Member:              true,
		PlanPointsRemaining: 6000,
	}

	decision := Evaluate(planCtx)

	assert.Equal(t, int64(0), decision.TotalPointsRemaining)
	assert.False(t, decision.CanStartConversation)
	assert.Empty(t, decision.AvailableModels)
	assert.Equal(t, []Action{ActionRequestAllocation}, decision.OutOfCreditsActions)
}

func TestEvaluateMemberAllocationGovernsAlone(t *testing.T) {
	planCtx := plandomain.Context{
		Plan:                     planFor(t, plandomain.TierOrgBusiness),
		IsOrganization:           true,
		Member:                   true,
		PlanPointsRemaining:      6000,
		HasAllocation:            true,
		AllocatedPointsRemaining: 4,
	}

	decision := Evaluate(planCtx)

	assert.Equal(t, int64(4), decision.TotalPointsRemaining)
	assert.True(t, decision.CanStartConversation)
	assert.True(t, decision.LowBalanceWarning)
}

func TestEvaluateFreePlanExcludesAdvancedModel(t *testing.T) {
	planCtx := plandomain.Context{
		Plan:                planFor(t, plandomain.TierFree),
		PlanPointsRemaining: 10,
	}

	decision := Evaluate(planCtx)

	assert.Equal(t, []plandomain.Model{plandomain.ModelStandard}, decision.AvailableModels)
	assert.Equal(t,
		[]Action{ActionUpgradePlan, ActionPurchaseCredits},
		decision.OutOfCreditsActions,
	)
}

func TestRequireBlocked(t *testing.T) {
	planCtx := plandomain.Context{
		Plan: planFor(t, plandomain.TierStarter),
	}

	err := Require(planCtx)

	var insufficient *InsufficientCreditsError
	assert.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(0), insufficient.Remaining)
	assert.Equal(t, plandomain.Rate(plandomain.ModelStandard), insufficient.Required)
}

func TestRequireAllowed(t *testing.T) {
	planCtx := plandomain.Context{
		Plan:                planFor(t, plandomain.TierStarter),
		PlanPointsRemaining: 100,
	}

	assert.NoError(t, Require(planCtx))
}
