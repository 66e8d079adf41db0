package event

import (
	"encoding/json"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// Type classifies negotiation events.
type Type string

// Event types, in canonical stream order.
const (
	// TypeFormulationReady fires when the demand has been normalized.
	TypeFormulationReady Type = "formulation.ready"

	// TypeResonanceActivated fires when the cascade has produced candidates.
	TypeResonanceActivated Type = "resonance.activated"

	// TypeOfferReceived fires once per offer folded in before the barrier
	// released. Late offers are logged and counted, never written to the
	// stream: the terminal event stays last.
	TypeOfferReceived Type = "offer.received"

	// TypeBarrierComplete fires when the barrier releases.
	TypeBarrierComplete Type = "barrier.complete"

	// TypeCenterToolCall fires once per structured synthesis decision.
	TypeCenterToolCall Type = "center.tool_call"

	// TypePlanReady fires when a proposal is published for confirmation.
	TypePlanReady Type = "plan.ready"

	// TypeSubNegotiationStarted fires when a child negotiation is spawned.
	TypeSubNegotiationStarted Type = "sub_negotiation.started"

	// TypeNegotiationCompleted and TypeNegotiationFailed terminate a stream.
	TypeNegotiationCompleted Type = "negotiation.completed"
	TypeNegotiationFailed    Type = "negotiation.failed"
)

// FormulationReadyPayload contains data for formulation.ready events.
type FormulationReadyPayload struct {
	Text       string   `json:"text"`
	Signature  []string `json:"signature"`
	Dimensions []string `json:"dimensions"`
}

// ResonanceActivatedPayload contains data for resonance.activated events,
// including the per-tier elimination audit.
type ResonanceActivatedPayload struct {
	Candidates []string    `json:"candidates"`
	Tiers      []TierAudit `json:"tiers"`
	Population int         `json:"population"`
}

// TierAudit records one cascade tier's elimination counts.
type TierAudit struct {
	Tier       int  `json:"tier"`
	Input      int  `json:"input"`
	Survivors  int  `json:"survivors"`
	Eliminated int  `json:"eliminated"`
	Degraded   bool `json:"degraded,omitempty"`
}

// OfferReceivedPayload contains data for offer.received events.
type OfferReceivedPayload struct {
	AgentID string `json:"agent_id"`
	Round   int    `json:"round"`
}

// BarrierCompletePayload contains data for barrier.complete events.
type BarrierCompletePayload struct {
	Round      int           `json:"round"`
	Dispatched int           `json:"dispatched"`
	Responded  int           `json:"responded"`
	Declined   int           `json:"declined"`
	Errors     int           `json:"errors"`
	TimedOut   bool          `json:"timed_out"`
	Elapsed    time.Duration `json:"elapsed"`
}

// CenterToolCallPayload contains data for center.tool_call events.
type CenterToolCallPayload struct {
	Round     int             `json:"round"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// PlanReadyPayload contains data for plan.ready events.
type PlanReadyPayload struct {
	Round    int                  `json:"round"`
	Proposal negotiation.Proposal `json:"proposal"`
}

// SubNegotiationStartedPayload contains data for sub_negotiation.started events.
type SubNegotiationStartedPayload struct {
	ChildID string          `json:"child_id"`
	Depth   int             `json:"depth"`
	Gap     negotiation.Gap `json:"gap"`
}

// NegotiationCompletedPayload contains data for negotiation.completed events.
type NegotiationCompletedPayload struct {
	Round    int                  `json:"round"`
	Proposal negotiation.Proposal `json:"proposal"`
	Duration time.Duration        `json:"duration"`
}

// NegotiationFailedPayload contains data for negotiation.failed events. The
// last good proposal, if any, is carried so it is never lost to observers.
type NegotiationFailedPayload struct {
	State    negotiation.State     `json:"state"`
	Reason   string                `json:"reason"`
	Proposal *negotiation.Proposal `json:"proposal,omitempty"`
	Duration time.Duration         `json:"duration"`
}
