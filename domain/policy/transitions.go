// Package policy provides domain models for negotiation policy enforcement.
package policy

import (
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// StateTransitions defines which lifecycle transitions are allowed.
//
// Thread Safety: StateTransitions is NOT safe for concurrent modification.
// Configure it fully before handing it to the engine and treat it as
// immutable thereafter; CanTransition is safe for concurrent reads.
type StateTransitions struct {
	allowed map[negotiation.State]map[negotiation.State]bool
}

// NewStateTransitions creates an empty transition table.
func NewStateTransitions() *StateTransitions {
	return &StateTransitions{
		allowed: make(map[negotiation.State]map[negotiation.State]bool),
	}
}

// DefaultTransitions returns the canonical negotiation transition table.
// FAILED is reachable from every non-terminal state.
func DefaultTransitions() *StateTransitions {
	t := NewStateTransitions()
	t.Allow(negotiation.StateCreated, negotiation.StateFormulating)
	t.Allow(negotiation.StateFormulating, negotiation.StateFormulated)
	t.Allow(negotiation.StateFormulated, negotiation.StateEncoding)
	t.Allow(negotiation.StateEncoding, negotiation.StateOffering)
	t.Allow(negotiation.StateOffering, negotiation.StateBarrierWaiting)
	t.Allow(negotiation.StateBarrierWaiting, negotiation.StateSynthesizing)
	t.Allow(negotiation.StateSynthesizing, negotiation.StateOffering) // next round
	t.Allow(negotiation.StateSynthesizing, negotiation.StateCompleted)
	for _, s := range negotiation.NonTerminalStates() {
		t.Allow(s, negotiation.StateFailed)
	}
	return t
}

// Allow permits a transition from one state to another.
func (t *StateTransitions) Allow(from, to negotiation.State) *StateTransitions {
	if t.allowed[from] == nil {
		t.allowed[from] = make(map[negotiation.State]bool)
	}
	t.allowed[from][to] = true
	return t
}

// CanTransition checks whether the transition is in the table.
func (t *StateTransitions) CanTransition(from, to negotiation.State) bool {
	targets, ok := t.allowed[from]
	if !ok {
		return false
	}
	return targets[to]
}

// AllowedFrom returns the valid next states from the given state.
func (t *StateTransitions) AllowedFrom(from negotiation.State) []negotiation.State {
	targets, ok := t.allowed[from]
	if !ok {
		return nil
	}
	out := make([]negotiation.State, 0, len(targets))
	for _, s := range negotiation.AllStates() {
		if targets[s] {
			out = append(out, s)
		}
	}
	return out
}
