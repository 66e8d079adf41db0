// Package application provides the orchestration layer for negotiations:
// the engine drives each negotiation through its lifecycle as a single
// writer, emitting events and delegating judgment to injected oracles.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/event"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/domain/policy"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/cascade"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/encoder"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/logging"
	inforacle "github.com/NatureBlueee/Towow-sub004/infrastructure/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/resilience"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/statemachine"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/storage/memory"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/telemetry"
)

// Engine is the main orchestration service for negotiations.
type Engine struct {
	registry      agent.Registry
	formulation   oracle.Formulation
	membership    oracle.Membership
	judge         oracle.Judge
	offerOracle   oracle.Offer
	synthesis     oracle.Synthesis
	confirmations oracle.ConfirmationSink
	manual        *manualConfirmation

	store   negotiation.Store
	events  event.Store
	metrics telemetry.Metrics

	bounds          policy.Bounds
	cascadePolicy   policy.CascadePolicy
	recursionPolicy policy.RecursionPolicy

	cascade *cascade.Cascade

	formExec  *resilience.Executor[negotiation.NormalizedDemand]
	offerExec *resilience.Executor[oracle.OfferResult]
	synthExec *resilience.Executor[oracle.SynthesisOutcome]

	mu       sync.Mutex
	sessions map[string]*session
}

// session tracks one asynchronously running negotiation.
type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	Registry         agent.Registry
	Formulation      oracle.Formulation
	Encoder          oracle.Encoder
	Membership       oracle.Membership
	Judge            oracle.Judge
	OfferOracle      oracle.Offer
	Synthesis        oracle.Synthesis
	ConfirmationSink oracle.ConfirmationSink

	NegotiationStore negotiation.Store
	EventStore       event.Store
	Metrics          telemetry.Metrics

	Bounds          policy.Bounds
	CascadePolicy   policy.CascadePolicy
	RecursionPolicy policy.RecursionPolicy
	Resilience      resilience.Config
}

// NewEngine creates a new engine with the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Registry == nil {
		return nil, errors.New("agent registry is required")
	}
	if config.OfferOracle == nil {
		return nil, errors.New("offer oracle is required")
	}
	if config.Synthesis == nil {
		return nil, errors.New("synthesis oracle is required")
	}

	e := &Engine{
		registry:        config.Registry,
		formulation:     config.Formulation,
		membership:      config.Membership,
		judge:           config.Judge,
		offerOracle:     config.OfferOracle,
		synthesis:       config.Synthesis,
		confirmations:   config.ConfirmationSink,
		store:           config.NegotiationStore,
		events:          config.EventStore,
		metrics:         config.Metrics,
		bounds:          config.Bounds,
		cascadePolicy:   config.CascadePolicy,
		recursionPolicy: config.RecursionPolicy,
		sessions:        make(map[string]*session),
	}

	// Set defaults
	if e.formulation == nil {
		e.formulation = inforacle.NewStaticFormulation()
	}
	enc := config.Encoder
	if enc == nil {
		enc = encoder.NewHashEncoder(encoder.DefaultDimension)
	}
	if e.membership == nil {
		e.membership = cascade.NewSignatureFilter()
	}
	if e.store == nil {
		e.store = memory.NewNegotiationStore()
	}
	if e.events == nil {
		e.events = memory.NewEventStore()
	}
	if e.metrics == nil {
		e.metrics = &telemetry.NoopMetricsProvider{}
	}
	if e.bounds == (policy.Bounds{}) {
		e.bounds = policy.DefaultBounds()
	}
	if err := e.bounds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bounds: %w", err)
	}
	if e.cascadePolicy == (policy.CascadePolicy{}) {
		e.cascadePolicy = policy.DefaultCascadePolicy()
	}
	if e.recursionPolicy == (policy.RecursionPolicy{}) {
		e.recursionPolicy = policy.DefaultRecursionPolicy()
	}
	if e.confirmations == nil {
		e.manual = newManualConfirmation()
		e.confirmations = e.manual
	}

	resilienceCfg := config.Resilience
	if resilienceCfg == (resilience.Config{}) {
		resilienceCfg = resilience.DefaultConfig()
	}
	e.formExec = resilience.New[negotiation.NormalizedDemand](resilienceCfg)
	e.offerExec = resilience.New[oracle.OfferResult](resilienceCfg)
	e.synthExec = resilience.New[oracle.SynthesisOutcome](resilienceCfg)

	cascadeOpts := []cascade.Option{
		cascade.WithPolicy(e.cascadePolicy),
		cascade.WithTierTimeout(e.bounds.TierTimeout),
	}
	if e.judge != nil {
		cascadeOpts = append(cascadeOpts, cascade.WithJudge(e.judge))
	}
	e.cascade = cascade.New(e.registry, e.membership, enc, cascadeOpts...)

	return e, nil
}

// Start begins a negotiation asynchronously and returns its id. The
// negotiation runs to a terminal state in the background; observe it
// through Events, Get, and Wait.
func (e *Engine) Start(ctx context.Context, demand negotiation.Demand) (string, error) {
	n := negotiation.New(uuid.New().String(), demand)
	if err := e.store.Save(ctx, n); err != nil {
		return "", fmt.Errorf("save negotiation: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.sessions[n.ID] = s
	e.mu.Unlock()

	go func() {
		defer close(s.done)
		defer cancel()
		defer func() {
			e.mu.Lock()
			delete(e.sessions, n.ID)
			e.mu.Unlock()
		}()
		_, _ = e.run(runCtx, n)
	}()

	return n.ID, nil
}

// Run executes a negotiation synchronously to its terminal state. A FAILED
// negotiation is a domain outcome, not an error; errors report
// infrastructure problems only.
func (e *Engine) Run(ctx context.Context, demand negotiation.Demand) (*negotiation.Negotiation, error) {
	n := negotiation.New(uuid.New().String(), demand)
	if err := e.store.Save(ctx, n); err != nil {
		return nil, fmt.Errorf("save negotiation: %w", err)
	}
	return e.run(ctx, n)
}

// Get retrieves a negotiation snapshot by id.
func (e *Engine) Get(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	return e.store.Get(ctx, id)
}

// Cancel aborts a running negotiation. Cancellation cascades to its
// sub-negotiations, which run under the same session context.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()

	if !ok {
		return negotiation.ErrNotFound
	}
	s.cancel()
	return nil
}

// Wait blocks until the identified negotiation reaches a terminal state or
// the context dies.
func (e *Engine) Wait(ctx context.Context, id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()

	if !ok {
		// Not running: either unknown or already terminal.
		_, err := e.store.Get(ctx, id)
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

// SubmitConfirmation delivers an explicit confirmation decision for a
// negotiation waiting on its proposal. Redelivery after the decision was
// consumed reports false and changes nothing.
func (e *Engine) SubmitConfirmation(id string, confirmed bool) bool {
	if e.manual == nil {
		return false
	}
	return e.manual.Submit(id, confirmed)
}

// Events loads a negotiation's event stream in sequence order.
func (e *Engine) Events(ctx context.Context, id string) ([]event.Event, error) {
	return e.events.Load(ctx, id)
}

// Subscribe returns a live event channel for a negotiation.
func (e *Engine) Subscribe(ctx context.Context, id string) (<-chan event.Event, error) {
	return e.events.Subscribe(ctx, id)
}

// run drives one negotiation from CREATED to a terminal state. It is the
// aggregate's single writer: no other goroutine mutates n.
func (e *Engine) run(ctx context.Context, n *negotiation.Negotiation) (*negotiation.Negotiation, error) {
	start := time.Now()

	interp, err := statemachine.NewForNegotiation(n, e.bounds)
	if err != nil {
		return nil, err
	}

	e.metrics.RecordNegotiationStarted(ctx, n.Depth)
	e.metrics.IncrementActiveNegotiations(ctx)
	defer e.metrics.DecrementActiveNegotiations(ctx)

	logging.Info().
		Add(logging.NegotiationID(n.ID)).
		Add(logging.Depth(n.Depth)).
		Msg("negotiation started")

	// Formulation
	if err := e.transition(ctx, interp, n, negotiation.StateFormulating, ""); err != nil {
		return e.fail(ctx, interp, n, "invalid lifecycle state", start)
	}

	normalized, err := e.formExec.Do(ctx, func(ctx context.Context) (negotiation.NormalizedDemand, error) {
		return e.formulation.Formulate(ctx, n.Demand.RawText, n.Demand.Annotations)
	})
	if err != nil {
		return e.fail(ctx, interp, n, failReason(err, "formulation failed"), start)
	}
	_ = n.SetNormalized(normalized)

	e.emit(ctx, n.ID, event.TypeFormulationReady, event.FormulationReadyPayload{
		Text:       normalized.Text,
		Signature:  normalized.Signature,
		Dimensions: normalized.Dimensions,
	})

	if err := e.transition(ctx, interp, n, negotiation.StateFormulated, ""); err != nil {
		return e.fail(ctx, interp, n, "invalid lifecycle state", start)
	}

	// Encoding and candidate discovery
	if err := e.transition(ctx, interp, n, negotiation.StateEncoding, ""); err != nil {
		return e.fail(ctx, interp, n, "invalid lifecycle state", start)
	}

	cascadeStart := time.Now()
	discovery, err := e.cascade.Run(ctx, n.Demand)
	if err != nil {
		return e.fail(ctx, interp, n, failReason(err, "cascade failed"), start)
	}
	e.metrics.RecordCascadeDuration(ctx, time.Since(cascadeStart))
	for _, tier := range discovery.Tiers {
		e.metrics.RecordCascadeTier(ctx, tier.Tier, tier.Eliminated)
	}

	e.emit(ctx, n.ID, event.TypeResonanceActivated, event.ResonanceActivatedPayload{
		Candidates: refsToStrings(discovery.Candidates),
		Tiers:      discovery.Tiers,
		Population: discovery.Population,
	})

	// Round loop: offering, barrier, synthesis.
	var childOutcomes []negotiation.ChildOutcome
	for {
		if err := e.transition(ctx, interp, n, negotiation.StateOffering, ""); err != nil {
			return e.fail(ctx, interp, n, negotiation.ReasonRoundsExhausted, start)
		}
		n.BeginRound(refsToStrings(discovery.Candidates))
		e.persist(ctx, n)

		roundStart := time.Now()
		round := n.Round

		// The fan-out is dispatched while still OFFERING; BARRIER_WAITING
		// begins once every candidate call is in flight.
		pending := e.dispatchOffers(ctx, n, round, discovery.Candidates)

		if err := e.transition(ctx, interp, n, negotiation.StateBarrierWaiting, ""); err != nil {
			return e.fail(ctx, interp, n, "invalid lifecycle state", start)
		}

		barrier := pending.Await(ctx)
		for _, o := range barrier.Offers {
			n.RecordOffer(o)
		}
		if barrier.TimedOut {
			e.metrics.RecordBarrierTimeout(ctx, round)
		}
		e.metrics.RecordRoundDuration(ctx, time.Since(roundStart), round)

		e.emit(ctx, n.ID, event.TypeBarrierComplete, event.BarrierCompletePayload{
			Round:      round,
			Dispatched: barrier.Dispatched,
			Responded:  barrier.Responded,
			Declined:   barrier.Declined,
			Errors:     barrier.Errors,
			TimedOut:   barrier.TimedOut,
			Elapsed:    barrier.Elapsed,
		})

		if err := e.transition(ctx, interp, n, negotiation.StateSynthesizing, ""); err != nil {
			return e.fail(ctx, interp, n, "invalid lifecycle state", start)
		}
		e.persist(ctx, n)

		// Synthesis loop: sub-negotiation outcomes fold back into the same
		// round's aggregation instead of consuming a fresh round.
		childOutcomes = nil
		recursedThisRound := false

	synthesis:
		for {
			outcome, err := e.synthesize(ctx, n, childOutcomes)
			if err != nil {
				return e.fail(ctx, interp, n, failReason(err, "synthesis failed"), start)
			}

			switch outcome.Decision {
			case oracle.DecisionFailure:
				reason := outcome.Reason
				if reason == "" {
					reason = "synthesis declared failure"
				}
				return e.fail(ctx, interp, n, reason, start)

			case oracle.DecisionNeedMoreInfo:
				if !interp.CanTransition(negotiation.StateOffering) {
					return e.fail(ctx, interp, n, negotiation.ReasonRoundsExhausted, start)
				}
				logging.Debug().
					Add(logging.NegotiationID(n.ID)).
					Add(logging.Round(round)).
					Add(logging.Reason(outcome.Reason)).
					Msg("synthesis requested another round")
				break synthesis

			case oracle.DecisionProposal, oracle.DecisionTriggerSubNegotiation:
				if outcome.Proposal == nil {
					return e.fail(ctx, interp, n, "synthesis returned no proposal", start)
				}

				proposal := outcome.Proposal.Clone()
				proposal.Round = round
				if err := n.PublishProposal(proposal); err != nil {
					if !errors.Is(err, negotiation.ErrDuplicateProposal) {
						return e.fail(ctx, interp, n, "publish proposal: "+err.Error(), start)
					}
					// Re-synthesis over sub-negotiation outcomes refines the
					// same round's proposal; the refined version supersedes it.
					if err := n.SupersedeProposal(proposal); err != nil {
						return e.fail(ctx, interp, n, "supersede proposal: "+err.Error(), start)
					}
				}
				e.persist(ctx, n)

				if outcome.Decision == oracle.DecisionTriggerSubNegotiation && !recursedThisRound {
					gaps := e.eligibleGaps(proposal.Gaps)
					switch {
					case n.Depth >= e.bounds.MaxDepth:
						if len(proposal.Assignments) == 0 {
							// Hard cap reached with nothing standing without
							// the recursion.
							return e.fail(ctx, interp, n, negotiation.ReasonDepthExhausted, start)
						}
						// Depth exhausted: the proposal stands with its gap known.
						n.AnnotateKnownGap()
						logging.Warn().
							Add(logging.NegotiationID(n.ID)).
							Add(logging.Depth(n.Depth)).
							Msg("recursion depth exhausted, keeping proposal with known gap")
					case len(gaps) == 0:
						n.AnnotateKnownGap()
					default:
						childOutcomes = e.runChildren(ctx, n, gaps)
						if hasUnresolved(childOutcomes) {
							n.AnnotateKnownGap()
						}
						recursedThisRound = true
						e.persist(ctx, n)
						continue
					}
				}

				return e.finalize(ctx, interp, n, round, start)
			default:
				return e.fail(ctx, interp, n, "unknown synthesis decision", start)
			}
		}
	}
}

// dispatchOffers starts one fan-out round and observes each offer crossing
// the collector. Late offers are counted and logged, never written to the
// stream: the terminal event stays last. The observer only touches
// thread-safe collaborators; the aggregate is updated by the caller after
// the barrier releases.
func (e *Engine) dispatchOffers(ctx context.Context, n *negotiation.Negotiation, round int, candidates []agent.Ref) *pendingRound {
	onOffer := func(o negotiation.Offer, late bool) {
		e.metrics.RecordOfferReceived(ctx, round, late)
		if late {
			return
		}
		e.emit(ctx, n.ID, event.TypeOfferReceived, event.OfferReceivedPayload{
			AgentID: o.AgentID,
			Round:   round,
		})
	}

	c := newCollector(e.offerOracle, e.offerExec, e.bounds.BarrierDeadline, onOffer)
	return c.Dispatch(ctx, n.ID, n.Demand, candidates)
}

// synthesize invokes the synthesis oracle over the current round's offers
// and emits one center.tool_call event per structured decision.
func (e *Engine) synthesize(ctx context.Context, n *negotiation.Negotiation, childOutcomes []negotiation.ChildOutcome) (oracle.SynthesisOutcome, error) {
	req := oracle.SynthesisRequest{
		NegotiationID: n.ID,
		Demand:        n.Demand,
		Round:         n.Round,
		Offers:        append([]negotiation.Offer(nil), n.Offers...),
		History:       historyBefore(n, n.Round),
		ChildOutcomes: childOutcomes,
	}

	synthStart := time.Now()
	outcome, err := e.synthExec.Do(ctx, func(ctx context.Context) (oracle.SynthesisOutcome, error) {
		return e.synthesis.Aggregate(ctx, req)
	})
	if err != nil {
		return oracle.SynthesisOutcome{}, err
	}
	e.metrics.RecordSynthesisDuration(ctx, time.Since(synthStart), string(outcome.Decision))

	for _, call := range outcome.ToolCalls {
		e.emit(ctx, n.ID, event.TypeCenterToolCall, event.CenterToolCallPayload{
			Round:     n.Round,
			Name:      call.Name,
			Arguments: call.Arguments,
		})
	}

	return outcome, nil
}

// finalize publishes the proposal for confirmation and settles the
// negotiation on the decision.
func (e *Engine) finalize(ctx context.Context, interp *statemachine.Interpreter, n *negotiation.Negotiation, round int, start time.Time) (*negotiation.Negotiation, error) {
	proposal := n.CurrentProposal()
	if proposal == nil {
		return e.fail(ctx, interp, n, "no proposal to finalize", start)
	}

	if n.MarkProposalDistributed() {
		e.emit(ctx, n.ID, event.TypePlanReady, event.PlanReadyPayload{
			Round:    round,
			Proposal: *proposal,
		})
	}
	e.persist(ctx, n)

	confirmCtx, cancel := context.WithTimeout(ctx, e.bounds.ConfirmationTimeout)
	decision, err := e.confirmations.AwaitConfirmation(confirmCtx, n.ID, *proposal)
	cancel()
	if err != nil {
		return e.fail(ctx, interp, n, failReason(err, "confirmation failed"), start)
	}

	switch decision {
	case oracle.ConfirmationConfirmed:
		if err := e.transition(ctx, interp, n, negotiation.StateCompleted, ""); err != nil {
			return e.fail(ctx, interp, n, "invalid lifecycle state", start)
		}
		if n.MarkFinalizedNotified() {
			e.emit(ctx, n.ID, event.TypeNegotiationCompleted, event.NegotiationCompletedPayload{
				Round:    round,
				Proposal: *proposal,
				Duration: time.Since(start),
			})
		}
		e.metrics.RecordNegotiationCompleted(ctx, round, time.Since(start))
		e.persist(ctx, n)

		logging.Info().
			Add(logging.NegotiationID(n.ID)).
			Add(logging.Round(round)).
			Add(logging.Duration(time.Since(start))).
			Msg("negotiation completed")
		return n, nil

	case oracle.ConfirmationRejected:
		return e.fail(ctx, interp, n, negotiation.ReasonRejected, start)

	default:
		return e.fail(ctx, interp, n, negotiation.ReasonUnconfirmed, start)
	}
}

// fail settles the negotiation in FAILED with the given reason. The last
// good proposal, when one exists, rides along in the failure event.
func (e *Engine) fail(ctx context.Context, interp *statemachine.Interpreter, n *negotiation.Negotiation, reason string, start time.Time) (*negotiation.Negotiation, error) {
	if !n.IsTerminal() {
		if err := interp.Transition(negotiation.StateFailed, reason); err != nil {
			n.Fail(reason)
		}
	}

	e.emit(ctx, n.ID, event.TypeNegotiationFailed, event.NegotiationFailedPayload{
		State:    n.State,
		Reason:   reason,
		Proposal: n.CurrentProposal(),
		Duration: time.Since(start),
	})
	e.metrics.RecordNegotiationFailed(ctx, reason)
	e.persist(ctx, n)

	logging.Warn().
		Add(logging.NegotiationID(n.ID)).
		Add(logging.Reason(reason)).
		Add(logging.Duration(time.Since(start))).
		Msg("negotiation failed")
	return n, nil
}

// transition moves the machine and records the transition.
func (e *Engine) transition(ctx context.Context, interp *statemachine.Interpreter, n *negotiation.Negotiation, to negotiation.State, reason string) error {
	from := n.State
	if err := interp.Transition(to, reason); err != nil {
		return err
	}
	e.metrics.RecordStateTransition(ctx, string(from), string(to), n.ID)

	logging.Debug().
		Add(logging.NegotiationID(n.ID)).
		Add(logging.FromState(from)).
		Add(logging.ToState(to)).
		Msg("state transition")
	return nil
}

// eligibleGaps filters and caps the gaps worth a sub-negotiation.
func (e *Engine) eligibleGaps(gaps []negotiation.Gap) []negotiation.Gap {
	var out []negotiation.Gap
	for _, g := range gaps {
		if !e.recursionPolicy.ShouldRecurse(g) {
			continue
		}
		out = append(out, g)
		if len(out) >= e.bounds.MaxChildren {
			break
		}
	}
	return out
}

// persist best-effort updates the stored record; the aggregate in memory
// remains authoritative during the run.
func (e *Engine) persist(ctx context.Context, n *negotiation.Negotiation) {
	if err := e.store.Update(ctx, n.Snapshot()); err != nil {
		logging.Error().
			Add(logging.NegotiationID(n.ID)).
			Add(logging.ErrorField(err)).
			Msg("failed to persist negotiation")
	}
}

// emit appends one event to the negotiation's stream.
func (e *Engine) emit(ctx context.Context, negotiationID string, eventType event.Type, payload any) {
	evt, err := event.New(negotiationID, eventType, payload)
	if err != nil {
		logging.Error().
			Add(logging.NegotiationID(negotiationID)).
			Add(logging.ErrorField(err)).
			Msg("failed to build event")
		return
	}
	if err := e.events.Append(ctx, evt); err != nil {
		logging.Error().
			Add(logging.NegotiationID(negotiationID)).
			Add(logging.Str("event_type", string(eventType))).
			Add(logging.ErrorField(err)).
			Msg("failed to append event")
	}
}

// historyBefore returns proposals published before the given round.
func historyBefore(n *negotiation.Negotiation, round int) []negotiation.Proposal {
	var history []negotiation.Proposal
	for _, p := range n.Proposals {
		if p.Round < round {
			history = append(history, p.Clone())
		}
	}
	return history
}

func refsToStrings(refs []agent.Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = string(r)
	}
	return out
}

// failReason maps oracle errors to stable failure reasons.
func failReason(err error, fallback string) string {
	switch {
	case errors.Is(err, oracle.ErrUnavailable):
		return negotiation.ReasonOracleUnavailable
	case errors.Is(err, context.Canceled):
		return negotiation.ReasonCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return negotiation.ReasonCancelled
	default:
		if err != nil {
			return fallback + ": " + err.Error()
		}
		return fallback
	}
}

// marshalProposal serializes a proposal for a child outcome result.
func marshalProposal(p *negotiation.Proposal) json.RawMessage {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return data
}
