// Package oracle defines the contracts of the engine's external
// collaborators. Only input/output shapes are in scope here: the
// natural-language judgment itself lives outside the engine.
package oracle

import (
	"context"
	"encoding/json"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/hypervector"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// Formulation normalizes raw demand text into its machine-usable form.
type Formulation interface {
	// Formulate turns a raw demand into a normalized demand.
	Formulate(ctx context.Context, raw string, annotations map[string]any) (negotiation.NormalizedDemand, error)
}

// Encoder embeds text as a fixed-width hypervector. Encoding is
// deterministic per input.
type Encoder interface {
	// Encode returns the vector for the given text.
	Encode(ctx context.Context, text string) (hypervector.Vector, error)

	// Dimension returns the fixed vector width.
	Dimension() int
}

// Membership is the cheap first cascade tier. It must be superset-safe:
// it may keep agents a later tier would reject, but must never reject an
// agent a later tier would accept.
type Membership interface {
	// Test reports whether the profile can possibly match the signature.
	Test(ctx context.Context, profile agent.Profile, signature []string) (bool, error)
}

// Judge is the expensive final cascade tier: a precise accept/reject call,
// affordable only for the few candidates surviving the earlier tiers.
type Judge interface {
	// Accept reports whether the agent is worth engaging for this demand.
	Accept(ctx context.Context, profile agent.Profile, demand negotiation.Demand) (bool, error)
}

// Offer produces one agent's response to a demand.
type Offer interface {
	// Generate invokes the agent projection for one candidate.
	Generate(ctx context.Context, ref agent.Ref, demand negotiation.Demand) (OfferResult, error)
}

// OfferResult is the typed outcome of an offer call.
type OfferResult struct {
	// Offer is the produced offer, nil when declined.
	Offer *negotiation.Offer

	// Declined marks an explicit refusal (not an error).
	Declined bool
}

// Synthesis aggregates collected offers into a proposal.
type Synthesis interface {
	// Aggregate returns exactly one synthesis outcome.
	Aggregate(ctx context.Context, req SynthesisRequest) (SynthesisOutcome, error)
}

// SynthesisRequest carries everything the synthesis oracle sees.
type SynthesisRequest struct {
	// NegotiationID identifies the negotiation being synthesized.
	NegotiationID string

	// Demand is the formulated demand.
	Demand negotiation.Demand

	// Round is the current round number.
	Round int

	// Offers are the current round's collected offers (post-barrier,
	// read-only).
	Offers []negotiation.Offer

	// History holds prior rounds' proposals, oldest first.
	History []negotiation.Proposal

	// ChildOutcomes are sub-negotiation results to fold in, if any.
	ChildOutcomes []negotiation.ChildOutcome
}

// Decision classifies a synthesis outcome.
type Decision string

const (
	// DecisionProposal means a proposal is ready (possibly with gaps that
	// do not justify recursion).
	DecisionProposal Decision = "proposal"

	// DecisionNeedMoreInfo asks for another offer round.
	DecisionNeedMoreInfo Decision = "need_more_info"

	// DecisionTriggerSubNegotiation asks to resolve eligible gaps through
	// sub-negotiations before finalizing.
	DecisionTriggerSubNegotiation Decision = "trigger_sub_negotiation"

	// DecisionFailure means synthesis cannot produce a proposal at all.
	DecisionFailure Decision = "failure"
)

// SynthesisOutcome is the typed result of one aggregation call.
type SynthesisOutcome struct {
	// Decision selects exactly one of the outcome kinds.
	Decision Decision

	// Proposal is set for DecisionProposal and DecisionTriggerSubNegotiation.
	Proposal *negotiation.Proposal

	// Reason explains need_more_info and failure outcomes.
	Reason string

	// ToolCalls are the structured decisions the coordinator made while
	// aggregating; each becomes one center.tool_call event.
	ToolCalls []ToolCall
}

// ToolCall is one structured decision made by the synthesis coordinator,
// recorded for observability and replay.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ConfirmationDecision is the outcome of the explicit confirmation step.
type ConfirmationDecision string

const (
	ConfirmationConfirmed ConfirmationDecision = "confirmed"
	ConfirmationRejected  ConfirmationDecision = "rejected"
	ConfirmationTimedOut  ConfirmationDecision = "timed_out"
)

// ConfirmationSink resolves the explicit confirmation protocol step. The
// engine treats the caller's deadline as authoritative: an implementation
// blocked past it reports ConfirmationTimedOut.
type ConfirmationSink interface {
	// AwaitConfirmation blocks until the proposal is confirmed, rejected,
	// or the wait times out.
	AwaitConfirmation(ctx context.Context, negotiationID string, proposal negotiation.Proposal) (ConfirmationDecision, error)
}
