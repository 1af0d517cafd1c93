// Package domain holds the immutable plan catalog and the resolved plan
// context used to gate AI consumption.
package domain

import "math"

// Tier enumerates the catalog plans.
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
	TierMax     Tier = "max"

	TierOrgFree       Tier = "org_free"
	TierOrgStarter    Tier = "org_starter"
	TierOrgBusiness   Tier = "org_business"
	TierOrgEnterprise Tier = "org_enterprise"
)

// Model identifies an AI model offered to chat users.
type Model string

const (
	ModelStandard Model = "standard"
	ModelAdvanced Model = "advanced"
)

// modelRates is points consumed per interaction.
var modelRates = map[Model]float64{
	ModelStandard: 1.0,
	ModelAdvanced: 1.6,
}

// Rate returns the points-per-interaction cost of a model, 0 for unknown.
func Rate(m Model) float64 {
	return modelRates[m]
}

// Models returns every known model, cheapest first.
func Models() []Model {
	return []Model{ModelStandard, ModelAdvanced}
}

// DebitPoints converts n interactions on a model to whole debit points.
// Rounding happens once on the rate-weighted total, never per step.
func DebitPoints(m Model, n int64) int64 {
	return int64(math.Round(Rate(m) * float64(n)))
}

// Plan is one immutable catalog entry.
type Plan struct {
	Tier          Tier
	Organization  bool
	MonthlyPoints int64
	Models        []Model
}

// HasModel reports whether the plan permits the model.
func (p Plan) HasModel(m Model) bool {
	for _, candidate := range p.Models {
		if candidate == m {
			return true
		}
	}
	return false
}

var catalog = map[Tier]Plan{
	TierFree:    {Tier: TierFree, MonthlyPoints: 10, Models: []Model{ModelStandard}},
	TierStarter: {Tier: TierStarter, MonthlyPoints: 300, Models: []Model{ModelStandard, ModelAdvanced}},
	TierPro:     {Tier: TierPro, MonthlyPoints: 1000, Models: []Model{ModelStandard, ModelAdvanced}},
	TierMax:     {Tier: TierMax, MonthlyPoints: 3000, Models: []Model{ModelStandard, ModelAdvanced}},

	TierOrgFree:       {Tier: TierOrgFree, Organization: true, MonthlyPoints: 20, Models: []Model{ModelStandard}},
	TierOrgStarter:    {Tier: TierOrgStarter, Organization: true, MonthlyPoints: 1500, Models: []Model{ModelStandard, ModelAdvanced}},
	TierOrgBusiness:   {Tier: TierOrgBusiness, Organization: true, MonthlyPoints: 6000, Models: []Model{ModelStandard, ModelAdvanced}},
	TierOrgEnterprise: {Tier: TierOrgEnterprise, Organization: true, MonthlyPoints: 20000, Models: []Model{ModelStandard, ModelAdvanced}},
}

// ByTier looks up a catalog plan.
func ByTier(tier Tier) (Plan, bool) {
	plan, ok := catalog[tier]
	return plan, ok
}

// DefaultTier is applied when an actor has no subscription row.
func DefaultTier(organization bool) Tier {
	if organization {
		return TierOrgFree
	}
	return TierFree
}
