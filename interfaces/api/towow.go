// Package api provides the public API for the Towow negotiation engine.
//
// Towow runs bounded multi-round negotiations between a demand and a
// population of agents: a formulation step normalizes the demand, a tiered
// resonance cascade selects candidates, offer rounds collect responses
// behind a barrier, and a synthesis step aggregates them into a proposal
// that is explicitly confirmed before the negotiation completes.
//
// # Quick Start
//
// Create an engine with an in-memory registry and scripted synthesis:
//
//	registry := api.NewRegistry(
//	    api.Profile{ID: "translator", Capabilities: []string{"translate", "french"}},
//	    api.Profile{ID: "designer", Capabilities: []string{"design", "layout"}},
//	)
//
//	synthesis := api.NewScriptedSynthesis(
//	    api.ScriptStep{ExpectRound: 1, Outcome: api.SynthesisOutcome{
//	        Decision: api.DecisionProposal,
//	        Proposal: &api.Proposal{Assignments: []api.Assignment{{AgentID: "translator", Role: "lead"}}},
//	    }},
//	)
//
//	engine, _ := api.New(
//	    api.WithRegistry(registry),
//	    api.WithOfferOracle(&api.StaticOffer{Content: json.RawMessage(`{"ok":true}`)}),
//	    api.WithSynthesis(synthesis),
//	)
//
//	id, _ := engine.Start(ctx, api.Demand{RawText: "translate the brochure to French"})
//	engine.SubmitConfirmation(id, true)
//	_ = engine.Wait(ctx, id)
//
// # Lifecycle
//
// A negotiation moves through a canonical state graph:
//
//   - StateCreated: accepted, not yet formulated
//   - StateFormulating / StateFormulated: demand normalization
//   - StateEncoding: hypervector encoding and candidate discovery
//   - StateOffering: offers fanned out to candidates
//   - StateBarrierWaiting: barrier holds until all answered or the deadline
//   - StateSynthesizing: offers aggregated into a proposal
//   - StateCompleted / StateFailed: terminal states
//
// Every lifecycle step appears on the negotiation's ordered event stream;
// FAILED is a domain outcome carrying a stable reason string, never a Go
// error.
package api

import (
	"context"

	"github.com/NatureBlueee/Towow-sub004/application"
	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/event"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	inforacle "github.com/NatureBlueee/Towow-sub004/infrastructure/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/storage/memory"
)

// Re-export core domain types for convenience.
type (
	// Negotiation is a snapshot of one negotiation's state.
	Negotiation = negotiation.Negotiation

	// State identifies a lifecycle state.
	State = negotiation.State

	// Demand is the raw input a negotiation starts from.
	Demand = negotiation.Demand

	// NormalizedDemand is the formulation oracle's output.
	NormalizedDemand = negotiation.NormalizedDemand

	// Offer is one agent's response to a demand.
	Offer = negotiation.Offer

	// Proposal is the synthesized assignment for one round.
	Proposal = negotiation.Proposal

	// Assignment binds an agent to a role in a proposal.
	Assignment = negotiation.Assignment

	// Gap is an uncovered requirement dimension of a proposal.
	Gap = negotiation.Gap

	// ChildOutcome is a sub-negotiation's typed result.
	ChildOutcome = negotiation.ChildOutcome

	// Profile describes one agent in the registry.
	Profile = agent.Profile

	// Ref identifies an agent.
	Ref = agent.Ref

	// Event is one entry of a negotiation's ordered stream.
	Event = event.Event

	// SynthesisOutcome is the synthesis oracle's typed result.
	SynthesisOutcome = oracle.SynthesisOutcome

	// SynthesisRequest carries everything the synthesis oracle sees.
	SynthesisRequest = oracle.SynthesisRequest

	// Decision classifies a synthesis outcome.
	Decision = oracle.Decision
)

// Re-export lifecycle states.
const (
	StateCreated        = negotiation.StateCreated
	StateFormulating    = negotiation.StateFormulating
	StateFormulated     = negotiation.StateFormulated
	StateEncoding       = negotiation.StateEncoding
	StateOffering       = negotiation.StateOffering
	StateBarrierWaiting = negotiation.StateBarrierWaiting
	StateSynthesizing   = negotiation.StateSynthesizing
	StateCompleted      = negotiation.StateCompleted
	StateFailed         = negotiation.StateFailed
)

// Re-export synthesis decisions.
const (
	DecisionProposal              = oracle.DecisionProposal
	DecisionNeedMoreInfo          = oracle.DecisionNeedMoreInfo
	DecisionTriggerSubNegotiation = oracle.DecisionTriggerSubNegotiation
	DecisionFailure               = oracle.DecisionFailure
)

// Re-export stable failure reasons.
const (
	ReasonRoundsExhausted = negotiation.ReasonRoundsExhausted
	ReasonDepthExhausted  = negotiation.ReasonDepthExhausted
	ReasonUnconfirmed     = negotiation.ReasonUnconfirmed
	ReasonRejected        = negotiation.ReasonRejected
	ReasonCancelled       = negotiation.ReasonCancelled
)

// Re-export common errors.
var (
	// ErrNotFound indicates the negotiation id is unknown.
	ErrNotFound = negotiation.ErrNotFound

	// ErrInvalidTransition indicates a rejected state transition.
	ErrInvalidTransition = negotiation.ErrInvalidTransition

	// ErrAgentNotFound indicates the agent id is not registered.
	ErrAgentNotFound = agent.ErrAgentNotFound
)

// Re-export test oracles for embedding in callers' tests and demos.
type (
	// ScriptStep is one expected round of a scripted synthesis.
	ScriptStep = inforacle.ScriptStep

	// StaticOffer answers every candidate with fixed content.
	StaticOffer = inforacle.StaticOffer
)

// NewScriptedSynthesis creates a synthesis oracle following a fixed script.
func NewScriptedSynthesis(steps ...inforacle.ScriptStep) *inforacle.ScriptedSynthesis {
	return inforacle.NewScriptedSynthesis(steps...)
}

// NewRegistry creates an in-memory agent registry seeded with profiles.
func NewRegistry(profiles ...agent.Profile) agent.Registry {
	return memory.NewAgentRegistry(profiles...)
}

// Option configures the engine.
type Option = application.Option

// Re-export engine options.
var (
	WithRegistry         = application.WithRegistry
	WithFormulation      = application.WithFormulation
	WithEncoder          = application.WithEncoder
	WithMembership       = application.WithMembership
	WithJudge            = application.WithJudge
	WithOfferOracle      = application.WithOfferOracle
	WithSynthesis        = application.WithSynthesis
	WithConfirmationSink = application.WithConfirmationSink
	WithBounds           = application.WithBounds
	WithCascadePolicy    = application.WithCascadePolicy
	WithRecursionPolicy  = application.WithRecursionPolicy
	WithNegotiationStore = application.WithNegotiationStore
	WithEventStore       = application.WithEventStore
	WithMetrics          = application.WithMetrics
	WithResilience       = application.WithResilience
)

// Engine is the main runtime for negotiations.
type Engine struct {
	engine *application.Engine
}

// New creates a new Engine with the provided options.
func New(opts ...Option) (*Engine, error) {
	engine, err := application.NewEngineWithOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{engine: engine}, nil
}

// Start begins a negotiation asynchronously and returns its id.
func (e *Engine) Start(ctx context.Context, demand Demand) (string, error) {
	return e.engine.Start(ctx, demand)
}

// Run executes a negotiation synchronously to its terminal state.
func (e *Engine) Run(ctx context.Context, demand Demand) (*Negotiation, error) {
	return e.engine.Run(ctx, demand)
}

// Get retrieves a negotiation snapshot by id.
func (e *Engine) Get(ctx context.Context, id string) (*Negotiation, error) {
	return e.engine.Get(ctx, id)
}

// Cancel aborts a running negotiation and its sub-negotiations.
func (e *Engine) Cancel(id string) error {
	return e.engine.Cancel(id)
}

// Wait blocks until the negotiation reaches a terminal state.
func (e *Engine) Wait(ctx context.Context, id string) error {
	return e.engine.Wait(ctx, id)
}

// SubmitConfirmation delivers a confirmation decision for a negotiation
// waiting on its proposal. Only effective with the default manual
// confirmation sink.
func (e *Engine) SubmitConfirmation(id string, confirmed bool) bool {
	return e.engine.SubmitConfirmation(id, confirmed)
}

// Events loads a negotiation's event stream in sequence order.
func (e *Engine) Events(ctx context.Context, id string) ([]Event, error) {
	return e.engine.Events(ctx, id)
}

// Subscribe returns a live event channel for a negotiation.
func (e *Engine) Subscribe(ctx context.Context, id string) (<-chan Event, error) {
	return e.engine.Subscribe(ctx, id)
}
