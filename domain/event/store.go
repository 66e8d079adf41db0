package event

import "context"

// Subscriber streams new events for one negotiation.
type Subscriber interface {
	// Subscribe returns a channel that receives new events for a
	// negotiation. The channel is closed when the context is cancelled.
	Subscribe(ctx context.Context, negotiationID string) (<-chan Event, error)
}

// Store defines the interface for event persistence: an append-only log
// keyed by (negotiation id, sequence number). Every store is also a
// Subscriber over its own streams. Implementations may be in-memory,
// Redis, BadgerDB, or any other backend.
type Store interface {
	// Append persists one or more events atomically. Events are assigned
	// sequence numbers in order of appearance.
	Append(ctx context.Context, events ...Event) error

	// Load retrieves all events for a negotiation in sequence order.
	Load(ctx context.Context, negotiationID string) ([]Event, error)

	// LoadFrom retrieves events starting from a specific sequence number,
	// enabling incremental replay from a known checkpoint.
	LoadFrom(ctx context.Context, negotiationID string, fromSeq uint64) ([]Event, error)

	Subscriber
}

// QueryOptions configures event queries.
type QueryOptions struct {
	// Types filters to specific event types (empty means all).
	Types []Type

	// FromTime filters events after this Unix timestamp.
	FromTime int64

	// ToTime filters events before this Unix timestamp.
	ToTime int64

	// Limit is the maximum number of events to return (0 = no limit).
	Limit int

	// Offset is the number of events to skip.
	Offset int
}

// Querier is an optional interface for stores that support advanced queries.
type Querier interface {
	// Query retrieves events matching the given options.
	Query(ctx context.Context, negotiationID string, opts QueryOptions) ([]Event, error)

	// Count returns the number of events for a negotiation.
	Count(ctx context.Context, negotiationID string) (int64, error)

	// ListNegotiations returns all negotiation ids with events in the store.
	ListNegotiations(ctx context.Context) ([]string, error)
}
