package negotiation

import "context"

// Store defines the interface for negotiation persistence: one record per
// negotiation keyed by id. Implementations may be in-memory, Redis, or any
// other backend.
type Store interface {
	// Save persists a new negotiation.
	Save(ctx context.Context, n *Negotiation) error

	// Get retrieves a negotiation snapshot by id.
	Get(ctx context.Context, id string) (*Negotiation, error)

	// Update replaces the stored record for an existing negotiation.
	Update(ctx context.Context, n *Negotiation) error

	// Delete removes a negotiation by id. Only terminal negotiations are
	// expected to be deleted.
	Delete(ctx context.Context, id string) error

	// List returns negotiations matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Negotiation, error)
}

// ListFilter specifies criteria for listing negotiations.
type ListFilter struct {
	// States filters by current state (empty means all).
	States []State

	// ParentID filters to children of one parent; empty means no filter,
	// Roots selects only parent-less negotiations.
	ParentID string
	Roots    bool

	// Limit is the maximum number of results (0 = no limit).
	Limit int
}
