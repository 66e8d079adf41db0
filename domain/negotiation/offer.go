package negotiation

import (
	"encoding/json"
	"time"
)

// Offer is a single agent's response to a demand. Offers accumulate while the
// negotiation is in OFFERING and become read-only once the barrier releases.
type Offer struct {
	// AgentID identifies the offering agent.
	AgentID string `json:"agent_id"`

	// Content is the opaque offer body produced by the offer oracle.
	Content json.RawMessage `json:"content"`

	// Ready marks the offer as complete and usable by synthesis.
	Ready bool `json:"ready"`

	// ReceivedAt is when the offer crossed the collector.
	ReceivedAt time.Time `json:"received_at"`
}

// NewOffer creates a ready offer from an agent.
func NewOffer(agentID string, content json.RawMessage) Offer {
	return Offer{
		AgentID:    agentID,
		Content:    content,
		Ready:      true,
		ReceivedAt: time.Now(),
	}
}
