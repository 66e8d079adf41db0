package negotiation

import (
	"time"
)

// Negotiation is the aggregate root of the engine. It is exclusively owned
// and mutated by the engine task driving it (single-writer); everything
// handed out to observers is a snapshot copy.
type Negotiation struct {
	ID     string `json:"id"`
	State  State  `json:"state"`
	Demand Demand `json:"demand"`

	// Round counts offer rounds, starting at 1 when the first fan-out begins.
	Round int `json:"round"`

	// Depth is the recursion depth, 0 for a root negotiation.
	Depth int `json:"depth"`

	// ParentID links a sub-negotiation to its parent, empty for roots.
	// The tree is formed by id references only, never embedded objects.
	ParentID string `json:"parent_id,omitempty"`

	// ChildIDs are the sub-negotiations spawned by this negotiation.
	ChildIDs []string `json:"child_ids,omitempty"`

	// Candidates is the cascade output for the current round, ordered.
	Candidates []string `json:"candidates,omitempty"`

	// Offers collected in the current round. Read-only after the barrier.
	Offers []Offer `json:"offers,omitempty"`

	// Proposals holds one published proposal per completed synthesis round.
	// The last element is the current proposal; history is never mutated.
	Proposals []Proposal `json:"proposals,omitempty"`

	// Monotonic idempotency flags, false→true only.
	ProposalDistributed bool `json:"proposal_distributed"`
	FinalizedNotified   bool `json:"finalized_notified"`

	// FailReason is the human-readable reason when State is FAILED.
	FailReason string `json:"fail_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// New creates a root negotiation in CREATED.
func New(id string, demand Demand) *Negotiation {
	now := time.Now()
	return &Negotiation{
		ID:        id,
		State:     StateCreated,
		Demand:    demand,
		Depth:     0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewChild creates a sub-negotiation one level below the parent.
func NewChild(id string, demand Demand, parentID string, depth int) *Negotiation {
	n := New(id, demand)
	n.ParentID = parentID
	n.Depth = depth
	return n
}

// TransitionTo changes the current state. Transition validity is enforced by
// the state machine; the aggregate only tracks the result.
func (n *Negotiation) TransitionTo(state State) {
	n.State = state
	n.UpdatedAt = time.Now()
	if state.IsTerminal() {
		n.EndedAt = n.UpdatedAt
	}
}

// SetNormalized records the formulation oracle output. The demand is
// immutable once formulated.
func (n *Negotiation) SetNormalized(nd NormalizedDemand) error {
	if n.Demand.Normalized != nil {
		// Duplicate completion signals are idempotent, not an error.
		return nil
	}
	n.Demand.Normalized = &nd
	n.UpdatedAt = time.Now()
	return nil
}

// BeginRound starts the next offer round with the given candidate order.
func (n *Negotiation) BeginRound(candidates []string) {
	n.Round++
	n.Candidates = append([]string(nil), candidates...)
	n.Offers = nil
	n.UpdatedAt = time.Now()
}

// RecordOffer appends an offer for the current round. Redelivery of an offer
// from the same agent is a no-op; the return value reports whether state
// changed.
func (n *Negotiation) RecordOffer(o Offer) bool {
	for _, existing := range n.Offers {
		if existing.AgentID == o.AgentID {
			return false
		}
	}
	n.Offers = append(n.Offers, o)
	n.UpdatedAt = time.Now()
	return true
}

// PublishProposal records the proposal for the current round. Exactly one
// proposal may exist per round.
func (n *Negotiation) PublishProposal(p Proposal) error {
	for _, existing := range n.Proposals {
		if existing.Round == p.Round {
			return ErrDuplicateProposal
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	n.Proposals = append(n.Proposals, p.Clone())
	n.UpdatedAt = time.Now()
	return nil
}

// SupersedeProposal replaces the proposal already published for the same
// round. It is the fold-back path: re-synthesis over sub-negotiation
// outcomes refines the round's proposal in place, keeping one proposal per
// round. A known-gap annotation on the superseded proposal carries over so
// a recorded degradation is never lost.
func (n *Negotiation) SupersedeProposal(p Proposal) error {
	for i := range n.Proposals {
		if n.Proposals[i].Round != p.Round {
			continue
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		if n.Proposals[i].KnownGap {
			p.KnownGap = true
		}
		n.Proposals[i] = p.Clone()
		n.UpdatedAt = time.Now()
		return nil
	}
	return ErrNoProposal
}

// CurrentProposal returns a copy of the latest published proposal, or nil.
// A FAILED negotiation retains its last good proposal through this.
func (n *Negotiation) CurrentProposal() *Proposal {
	if len(n.Proposals) == 0 {
		return nil
	}
	p := n.Proposals[len(n.Proposals)-1].Clone()
	return &p
}

// AnnotateKnownGap marks the current proposal as standing despite an
// unresolved gap. This is the one sanctioned mutation of proposal history:
// it only flips the annotation flag, never the content.
func (n *Negotiation) AnnotateKnownGap() {
	if len(n.Proposals) == 0 {
		return
	}
	n.Proposals[len(n.Proposals)-1].KnownGap = true
	n.UpdatedAt = time.Now()
}

// MarkProposalDistributed flips the distribution flag. Returns false if the
// flag was already set (idempotent redelivery).
func (n *Negotiation) MarkProposalDistributed() bool {
	if n.ProposalDistributed {
		return false
	}
	n.ProposalDistributed = true
	n.UpdatedAt = time.Now()
	return true
}

// MarkFinalizedNotified flips the finalization flag. Returns false if the
// flag was already set.
func (n *Negotiation) MarkFinalizedNotified() bool {
	if n.FinalizedNotified {
		return false
	}
	n.FinalizedNotified = true
	n.UpdatedAt = time.Now()
	return true
}

// AddChild records a spawned sub-negotiation id.
func (n *Negotiation) AddChild(id string) {
	n.ChildIDs = append(n.ChildIDs, id)
	n.UpdatedAt = time.Now()
}

// Complete moves the negotiation to COMPLETED.
func (n *Negotiation) Complete() {
	n.TransitionTo(StateCompleted)
}

// Fail moves the negotiation to FAILED with a reason. The last good proposal
// is retained, never discarded.
func (n *Negotiation) Fail(reason string) {
	n.FailReason = reason
	n.TransitionTo(StateFailed)
}

// IsTerminal returns true once the negotiation reached COMPLETED or FAILED.
func (n *Negotiation) IsTerminal() bool {
	return n.State.IsTerminal()
}

// Snapshot returns a deep copy safe to hand to observers.
func (n *Negotiation) Snapshot() *Negotiation {
	out := *n
	out.ChildIDs = append([]string(nil), n.ChildIDs...)
	out.Candidates = append([]string(nil), n.Candidates...)
	out.Offers = append([]Offer(nil), n.Offers...)
	out.Proposals = make([]Proposal, len(n.Proposals))
	for i, p := range n.Proposals {
		out.Proposals[i] = p.Clone()
	}
	if n.Demand.Normalized != nil {
		nd := *n.Demand.Normalized
		nd.Signature = append([]string(nil), n.Demand.Normalized.Signature...)
		nd.Dimensions = append([]string(nil), n.Demand.Normalized.Dimensions...)
		out.Demand.Normalized = &nd
	}
	return &out
}
