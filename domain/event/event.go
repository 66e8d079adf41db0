// Package event provides domain types and interfaces for the append-only
// negotiation event log, the only externally observable state-change signal.
package event

import (
	"encoding/json"
	"time"
)

// Event is one record in a negotiation's event stream.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// NegotiationID is the negotiation this event belongs to.
	NegotiationID string `json:"negotiation_id"`

	// Type classifies the event.
	Type Type `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Payload contains the event-specific data.
	Payload json.RawMessage `json:"payload"`

	// Sequence is the ordering number within the negotiation's stream,
	// assigned by the store on append.
	Sequence uint64 `json:"sequence"`

	// Version is the event schema version for forward compatibility.
	Version int `json:"version,omitempty"`
}

// New creates a new event with the given type and payload.
func New(negotiationID string, eventType Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		NegotiationID: negotiationID,
		Type:          eventType,
		Timestamp:     time.Now(),
		Payload:       data,
		Version:       1,
	}, nil
}

// UnmarshalPayload decodes the event payload into the given value.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
