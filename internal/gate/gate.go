// Package gate decides whether an actor may start a new AI interaction.
// It is a pure function over a resolved plan context; all storage reads
// happen upstream in the resolver.
package gate

import (
	"fmt"
	"math"

	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
)

// LowBalanceThreshold is the remaining-conversation count at or below
// which the UI shows a warning.
const LowBalanceThreshold = 5

// Action is a next step offered when an actor runs out of credits.
type Action string

const (
	ActionUpgradePlan       Action = "upgrade_plan"
	ActionPurchaseCredits   Action = "purchase_credits"
	ActionRequestAllocation Action = "request_allocation"
)

// Decision is the pre-flight verdict for one actor.
type Decision struct {
	TotalPointsRemaining   int64                      `json:"total_points_remaining"`
	RemainingConversations map[plandomain.Model]int64 `json:"remaining_conversations"`
	AvailableModels        []plandomain.Model         `json:"available_models"`
	LowBalanceWarning      bool                       `json:"low_balance_warning"`
	CanStartConversation   bool                       `json:"can_start_conversation"`
	OutOfCreditsActions    []Action                   `json:"out_of_credits_actions"`
}

// InsufficientCreditsError blocks a generation before it starts and
// carries what the UI needs to explain the block.
type InsufficientCreditsError struct {
	Remaining int64
	Required  float64
	Actions   []Action
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient_credits: %d remaining, %.1f required", e.Remaining, e.Required)
}

// Evaluate computes the decision for a resolved plan context.
//
// Organization members are gated solely by their delegated allocation:
// an allocation row governs when present, and its absence means zero
// budget, never a fallback to the organization's aggregate pool.
func Evaluate(planCtx plandomain.Context) Decision {
	var total int64
	if planCtx.Member {
		if planCtx.HasAllocation {
			total = planCtx.AllocatedPointsRemaining
		}
	} else {
		total = planCtx.PlanPointsRemaining + planCtx.PurchasedPointsRemaining
	}

	remaining := make(map[plandomain.Model]int64, len(plandomain.Models()))
	for _, model := range plandomain.Models() {
		remaining[model] = int64(math.Floor(float64(total) / plandomain.Rate(model)))
	}

	var available []plandomain.Model
	for _, model := range plandomain.Models() {
		if planCtx.Plan.HasModel(model) && remaining[model] >= 1 {
			available = append(available, model)
		}
	}

	decision := Decision{
		TotalPointsRemaining:   total,
		RemainingConversations: remaining,
		AvailableModels:        available,
		OutOfCreditsActions:    actionsFor(planCtx),
	}

	if len(available) == 0 {
		decision.LowBalanceWarning = true
		return decision
	}

	cheapest := available[0]
	for _, model := range available[1:] {
		if plandomain.Rate(model) < plandomain.Rate(cheapest) {
			cheapest = model
		}
	}
	decision.CanStartConversation = remaining[cheapest] >= 1
	decision.LowBalanceWarning = remaining[cheapest] <= LowBalanceThreshold
	return decision
}

// actionsFor never offers purchase to organization members.
func actionsFor(planCtx plandomain.Context) []Action {
	if planCtx.Member {
		return []Action{ActionRequestAllocation}
	}
	return []Action{ActionUpgradePlan, ActionPurchaseCredits}
}

// Require returns nil when a conversation may start, or an
// InsufficientCreditsError describing the cheapest permitted model's cost.
func Require(planCtx plandomain.Context) error {
	decision := Evaluate(planCtx)
	if decision.CanStartConversation {
		return nil
	}

	required := math.Inf(1)
	for _, model := range planCtx.Plan.Models {
		if rate := plandomain.Rate(model); rate < required {
			required = rate
		}
	}
	if math.IsInf(required, 1) {
		required = plandomain.Rate(plandomain.ModelStandard)
	}
	return &InsufficientCreditsError{
		Remaining: decision.TotalPointsRemaining,
		Required:  required,
		Actions:   decision.OutOfCreditsActions,
	}
}
