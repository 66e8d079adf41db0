// Package negotiation provides the core domain model for the negotiation engine.
package negotiation

// State identifies a phase of the negotiation lifecycle.
// States are stable strings, not behavioral definitions.
type State string

// Canonical lifecycle states.
const (
	StateCreated        State = "created"         // Negotiation record exists
	StateFormulating    State = "formulating"     // Demand is being normalized
	StateFormulated     State = "formulated"      // Demand normalized, immutable from here on
	StateEncoding       State = "encoding"        // Demand text is being embedded
	StateOffering       State = "offering"        // Offer fan-out dispatched
	StateBarrierWaiting State = "barrier_waiting" // Waiting on all candidates or the deadline
	StateSynthesizing   State = "synthesizing"    // Offers are being aggregated
	StateCompleted      State = "completed"       // Terminal success (confirmed proposal)
	StateFailed         State = "failed"          // Terminal failure
)

// IsTerminal returns true if this is a terminal state.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsValid returns true if the state is a recognized canonical state.
func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateFormulating, StateFormulated, StateEncoding,
		StateOffering, StateBarrierWaiting, StateSynthesizing,
		StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// AllStates returns all canonical states.
func AllStates() []State {
	return []State{
		StateCreated,
		StateFormulating,
		StateFormulated,
		StateEncoding,
		StateOffering,
		StateBarrierWaiting,
		StateSynthesizing,
		StateCompleted,
		StateFailed,
	}
}

// NonTerminalStates returns all non-terminal states.
func NonTerminalStates() []State {
	return []State{
		StateCreated,
		StateFormulating,
		StateFormulated,
		StateEncoding,
		StateOffering,
		StateBarrierWaiting,
		StateSynthesizing,
	}
}
