package policy

import "github.com/NatureBlueee/Towow-sub004/domain/negotiation"

// RecursionPolicy decides whether a gap justifies a sub-negotiation.
// All three factors must clear their thresholds; otherwise the gap is
// reported and the current proposal stands.
type RecursionPolicy struct {
	// MinSatisfactionUplift is the minimum expected demand-satisfaction gain.
	MinSatisfactionUplift float64

	// MinStakeholderBenefit is the minimum benefit to participating agents.
	MinStakeholderBenefit float64

	// MinCostBenefit is the minimum cost/benefit ratio.
	MinCostBenefit float64
}

// DefaultRecursionPolicy returns the default three-factor thresholds.
// The exact numbers are configurable policy, not fixed by the engine.
func DefaultRecursionPolicy() RecursionPolicy {
	return RecursionPolicy{
		MinSatisfactionUplift: 0.3,
		MinStakeholderBenefit: 0.3,
		MinCostBenefit:        1.0,
	}
}

// ShouldRecurse returns true only when the gap is marked eligible and all
// three factor scores clear the thresholds.
func (p RecursionPolicy) ShouldRecurse(g negotiation.Gap) bool {
	if !g.Eligible {
		return false
	}
	return g.SatisfactionUplift >= p.MinSatisfactionUplift &&
		g.StakeholderBenefit >= p.MinStakeholderBenefit &&
		g.CostBenefit >= p.MinCostBenefit
}
