package negotiation

import (
	"encoding/json"
	"time"
)

// Assignment binds one selected agent to a concrete role in the proposal.
type Assignment struct {
	// AgentID identifies the assigned agent.
	AgentID string `json:"agent_id"`

	// Role is the concrete role the agent fills.
	Role string `json:"role"`

	// Contribution is the part of the agent's offer folded into the proposal.
	Contribution json.RawMessage `json:"contribution,omitempty"`
}

// Gap is a demand requirement dimension no accepted offer covers.
type Gap struct {
	// Description names the unmet requirement.
	Description string `json:"description"`

	// Importance scores how much the gap matters, higher is more important.
	Importance float64 `json:"importance"`

	// Eligible marks the gap as a recursion candidate per the synthesis oracle.
	Eligible bool `json:"eligible"`

	// Three-factor recursion scores. A sub-negotiation is spawned only when
	// all three clear the configured policy thresholds.
	SatisfactionUplift float64 `json:"satisfaction_uplift"`
	StakeholderBenefit float64 `json:"stakeholder_benefit"`
	CostBenefit        float64 `json:"cost_benefit"`
}

// Proposal is the synthesized agent-to-contribution assignment for one round.
// A published proposal is immutable; later rounds supersede it, never mutate it.
type Proposal struct {
	// Round is the round this proposal was synthesized in.
	Round int `json:"round"`

	// Assignments are the selected agents and their roles.
	Assignments []Assignment `json:"assignments"`

	// Gaps are the uncovered requirement dimensions, possibly empty.
	Gaps []Gap `json:"gaps,omitempty"`

	// Confidence is the synthesis oracle's confidence marker in [0,1].
	Confidence float64 `json:"confidence"`

	// KnownGap annotates a proposal that stands despite an unresolved gap
	// (sub-negotiation timed out or failed).
	KnownGap bool `json:"known_gap,omitempty"`

	// CreatedAt is when the proposal was published.
	CreatedAt time.Time `json:"created_at"`
}

// HasGaps returns true if any requirement dimension is uncovered.
func (p Proposal) HasGaps() bool {
	return len(p.Gaps) > 0
}

// Clone returns a deep copy so published proposals stay immutable.
func (p Proposal) Clone() Proposal {
	out := p
	out.Assignments = make([]Assignment, len(p.Assignments))
	for i, a := range p.Assignments {
		out.Assignments[i] = a
		out.Assignments[i].Contribution = append(json.RawMessage(nil), a.Contribution...)
	}
	out.Gaps = append([]Gap(nil), p.Gaps...)
	return out
}
