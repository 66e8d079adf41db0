package negotiation

import "encoding/json"

// ChildStatus classifies how a sub-negotiation ended, as seen by its parent.
type ChildStatus string

const (
	ChildResolved ChildStatus = "resolved"
	ChildTimedOut ChildStatus = "timed_out"
	ChildFailed   ChildStatus = "failed"
)

// ChildOutcome is the typed result a sub-negotiation reports to its parent.
// Child failures never cross the parent boundary as errors; synthesis handles
// this value explicitly.
type ChildOutcome struct {
	// ChildID is the child negotiation's id.
	ChildID string `json:"child_id"`

	// Gap is the gap the child was spawned to resolve.
	Gap Gap `json:"gap"`

	// Status classifies the outcome.
	Status ChildStatus `json:"status"`

	// Result is the child's confirmed proposal serialized, set when resolved.
	Result json.RawMessage `json:"result,omitempty"`

	// Reason is the human-readable failure reason, set when failed.
	Reason string `json:"reason,omitempty"`
}

// Resolved returns true if the child produced a usable result.
func (c ChildOutcome) Resolved() bool {
	return c.Status == ChildResolved
}
