// Package oracle provides in-process oracle implementations: function
// adapters for tests, static stand-ins for demos, and a scripted synthesis
// coordinator for deterministic scenario runs.
package oracle

import (
	"context"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
)

// FormulationFunc adapts a function to the Formulation interface.
type FormulationFunc func(ctx context.Context, raw string, annotations map[string]any) (negotiation.NormalizedDemand, error)

// Formulate implements oracle.Formulation.
func (f FormulationFunc) Formulate(ctx context.Context, raw string, annotations map[string]any) (negotiation.NormalizedDemand, error) {
	return f(ctx, raw, annotations)
}

// MembershipFunc adapts a function to the Membership interface.
type MembershipFunc func(ctx context.Context, profile agent.Profile, signature []string) (bool, error)

// Test implements oracle.Membership.
func (f MembershipFunc) Test(ctx context.Context, profile agent.Profile, signature []string) (bool, error) {
	return f(ctx, profile, signature)
}

// JudgeFunc adapts a function to the Judge interface.
type JudgeFunc func(ctx context.Context, profile agent.Profile, demand negotiation.Demand) (bool, error)

// Accept implements oracle.Judge.
func (f JudgeFunc) Accept(ctx context.Context, profile agent.Profile, demand negotiation.Demand) (bool, error) {
	return f(ctx, profile, demand)
}

// OfferFunc adapts a function to the Offer interface.
type OfferFunc func(ctx context.Context, ref agent.Ref, demand negotiation.Demand) (oracle.OfferResult, error)

// Generate implements oracle.Offer.
func (f OfferFunc) Generate(ctx context.Context, ref agent.Ref, demand negotiation.Demand) (oracle.OfferResult, error) {
	return f(ctx, ref, demand)
}

// SynthesisFunc adapts a function to the Synthesis interface.
type SynthesisFunc func(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error)

// Aggregate implements oracle.Synthesis.
func (f SynthesisFunc) Aggregate(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
	return f(ctx, req)
}

// ConfirmationFunc adapts a function to the ConfirmationSink interface.
type ConfirmationFunc func(ctx context.Context, negotiationID string, proposal negotiation.Proposal) (oracle.ConfirmationDecision, error)

// AwaitConfirmation implements oracle.ConfirmationSink.
func (f ConfirmationFunc) AwaitConfirmation(ctx context.Context, negotiationID string, proposal negotiation.Proposal) (oracle.ConfirmationDecision, error) {
	return f(ctx, negotiationID, proposal)
}

// Interface compliance checks.
var (
	_ oracle.Formulation      = (FormulationFunc)(nil)
	_ oracle.Membership       = (MembershipFunc)(nil)
	_ oracle.Judge            = (JudgeFunc)(nil)
	_ oracle.Offer            = (OfferFunc)(nil)
	_ oracle.Synthesis        = (SynthesisFunc)(nil)
	_ oracle.ConfirmationSink = (ConfirmationFunc)(nil)
)
