package event

import "errors"

// Event log errors.
var (
	// ErrInvalidEvent indicates an event without a type.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrStoreClosed indicates an append to a closed store.
	ErrStoreClosed = errors.New("event store closed")
)
