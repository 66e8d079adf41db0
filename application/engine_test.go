package application

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/event"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/domain/policy"
	infraoracle "github.com/NatureBlueee/Towow-sub004/infrastructure/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/resilience"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/storage/memory"
)

func fastBounds() policy.Bounds {
	return policy.Bounds{
		MaxRounds:           5,
		MaxDepth:            2,
		MaxChildren:         2,
		BarrierDeadline:     2 * time.Second,
		ConfirmationTimeout: 2 * time.Second,
		ChildTimeout:        5 * time.Second,
		TierTimeout:         time.Second,
	}
}

func fastResilience() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = 1
	cfg.RetryInitialDelay = time.Millisecond
	cfg.DefaultTimeout = 5 * time.Second
	return cfg
}

func testRegistry() *memory.AgentRegistry {
	return memory.NewAgentRegistry(
		agent.Profile{ID: "builder", Capabilities: []string{"go", "backend"}, Summary: "builds go services"},
		agent.Profile{ID: "designer", Capabilities: []string{"design", "frontend"}, Summary: "designs interfaces"},
	)
}

func proposalFor(round int, gaps ...negotiation.Gap) *negotiation.Proposal {
	return &negotiation.Proposal{
		Round: round,
		Assignments: []negotiation.Assignment{
			{AgentID: "builder", Role: "contributor", Contribution: json.RawMessage(`{"part":"backend"}`)},
		},
		Gaps:       gaps,
		Confidence: 0.9,
	}
}

func eventTypes(events []event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestEngine_Run_CompletesWithConfirmedProposal(t *testing.T) {
	synthesis := infraoracle.NewScriptedSynthesis(
		infraoracle.ScriptStep{ExpectRound: 1, Outcome: oracle.SynthesisOutcome{
			Decision: oracle.DecisionProposal,
			Proposal: proposalFor(1),
		}},
	)

	engine, err := NewEngine(EngineConfig{
		Registry:         testRegistry(),
		OfferOracle:      &infraoracle.StaticOffer{Content: json.RawMessage(`{"accepted":true}`)},
		Synthesis:        synthesis,
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           fastBounds(),
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "build a go backend"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateCompleted {
		t.Fatalf("State = %s (%s), want completed", n.State, n.FailReason)
	}
	if n.Round != 1 {
		t.Errorf("Round = %d, want 1", n.Round)
	}
	proposal := n.CurrentProposal()
	if proposal == nil || len(proposal.Assignments) != 1 {
		t.Fatalf("CurrentProposal() = %+v, want one assignment", proposal)
	}
	if !n.ProposalDistributed || !n.FinalizedNotified {
		t.Error("distribution and finalization flags should both be set")
	}
	if n.EndedAt.IsZero() {
		t.Error("EndedAt should be set on completion")
	}

	events, err := engine.Events(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}

	types := eventTypes(events)
	wantOrder := []event.Type{
		event.TypeFormulationReady,
		event.TypeResonanceActivated,
		event.TypeBarrierComplete,
		event.TypePlanReady,
		event.TypeNegotiationCompleted,
	}
	idx := 0
	for _, typ := range types {
		if idx < len(wantOrder) && typ == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Errorf("event stream %v missing ordered milestones %v", types, wantOrder)
	}

	// Sequences are contiguous from 1.
	for i, evt := range events {
		if evt.Sequence != uint64(i+1) {
			t.Errorf("event %d sequence = %d, want %d", i, evt.Sequence, i+1)
		}
	}
}

func TestEngine_Run_NeedMoreInfoRunsAnotherRound(t *testing.T) {
	synthesis := infraoracle.NewScriptedSynthesis(
		infraoracle.ScriptStep{ExpectRound: 1, Outcome: oracle.SynthesisOutcome{
			Decision: oracle.DecisionNeedMoreInfo,
			Reason:   "offers too thin",
		}},
		infraoracle.ScriptStep{ExpectRound: 2, Outcome: oracle.SynthesisOutcome{
			Decision: oracle.DecisionProposal,
			Proposal: proposalFor(2),
		}},
	)

	engine, err := NewEngine(EngineConfig{
		Registry:         testRegistry(),
		OfferOracle:      &infraoracle.StaticOffer{},
		Synthesis:        synthesis,
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           fastBounds(),
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "build something"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateCompleted {
		t.Fatalf("State = %s (%s), want completed", n.State, n.FailReason)
	}
	if n.Round != 2 {
		t.Errorf("Round = %d, want 2 (need_more_info consumes a round)", n.Round)
	}
	if !synthesis.IsComplete() {
		t.Error("both script steps should have been consumed")
	}
	if got := n.CurrentProposal(); got == nil || got.Round != 2 {
		t.Errorf("CurrentProposal() = %+v, want round 2", got)
	}
}

func TestEngine_Run_RoundsExhausted(t *testing.T) {
	bounds := fastBounds()
	bounds.MaxRounds = 2

	alwaysMoreInfo := infraoracle.SynthesisFunc(func(context.Context, oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
		return oracle.SynthesisOutcome{Decision: oracle.DecisionNeedMoreInfo, Reason: "never satisfied"}, nil
	})

	engine, err := NewEngine(EngineConfig{
		Registry:         testRegistry(),
		OfferOracle:      &infraoracle.StaticOffer{},
		Synthesis:        alwaysMoreInfo,
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           bounds,
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "impossible demand"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateFailed {
		t.Fatalf("State = %s, want failed", n.State)
	}
	if n.FailReason != negotiation.ReasonRoundsExhausted {
		t.Errorf("FailReason = %s, want %s", n.FailReason, negotiation.ReasonRoundsExhausted)
	}
	if n.Round != 2 {
		t.Errorf("Round = %d, want the bound 2", n.Round)
	}

	events, _ := engine.Events(context.Background(), n.ID)
	last := events[len(events)-1]
	if last.Type != event.TypeNegotiationFailed {
		t.Errorf("last event = %s, want negotiation.failed", last.Type)
	}
	var payload event.NegotiationFailedPayload
	if err := last.UnmarshalPayload(&payload); err != nil {
		t.Fatalf("UnmarshalPayload() error = %v", err)
	}
	if payload.Reason != negotiation.ReasonRoundsExhausted {
		t.Errorf("failure payload reason = %s, want %s", payload.Reason, negotiation.ReasonRoundsExhausted)
	}
}

func TestEngine_Run_SubNegotiationResolvesGap(t *testing.T) {
	gap := negotiation.Gap{
		Description:        "seo optimization",
		Importance:         0.8,
		Eligible:           true,
		SatisfactionUplift: 0.6,
		StakeholderBenefit: 0.6,
		CostBenefit:        1.5,
	}

	// The same oracle serves the parent and its children; the demand text
	// tells them apart.
	synthesis := infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
		if strings.Contains(req.Demand.RawText, "seo") {
			return oracle.SynthesisOutcome{
				Decision: oracle.DecisionProposal,
				Proposal: proposalFor(req.Round),
			}, nil
		}
		if len(req.ChildOutcomes) > 0 {
			return oracle.SynthesisOutcome{
				Decision: oracle.DecisionProposal,
				Proposal: proposalFor(req.Round),
			}, nil
		}
		return oracle.SynthesisOutcome{
			Decision: oracle.DecisionTriggerSubNegotiation,
			Proposal: proposalFor(req.Round, gap),
		}, nil
	})

	engine, err := NewEngine(EngineConfig{
		Registry:         testRegistry(),
		OfferOracle:      &infraoracle.StaticOffer{},
		Synthesis:        synthesis,
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           fastBounds(),
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "build a landing page"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateCompleted {
		t.Fatalf("State = %s (%s), want completed", n.State, n.FailReason)
	}
	if n.Round != 1 {
		t.Errorf("Round = %d, want 1 (sub-negotiations do not consume a round)", n.Round)
	}
	if len(n.ChildIDs) != 1 {
		t.Fatalf("ChildIDs = %v, want exactly one child", n.ChildIDs)
	}

	child, err := engine.Get(context.Background(), n.ChildIDs[0])
	if err != nil {
		t.Fatalf("Get(child) error = %v", err)
	}
	if child.State != negotiation.StateCompleted {
		t.Errorf("child State = %s (%s), want completed", child.State, child.FailReason)
	}
	if child.Depth != 1 || child.ParentID != n.ID {
		t.Errorf("child depth/parent = %d/%s, want 1/%s", child.Depth, child.ParentID, n.ID)
	}

	// The parent stream records the spawn.
	events, _ := engine.Events(context.Background(), n.ID)
	spawned := false
	for _, evt := range events {
		if evt.Type == event.TypeSubNegotiationStarted {
			spawned = true
			var payload event.SubNegotiationStartedPayload
			if err := evt.UnmarshalPayload(&payload); err != nil {
				t.Fatalf("UnmarshalPayload() error = %v", err)
			}
			if payload.ChildID != n.ChildIDs[0] || payload.Depth != 1 {
				t.Errorf("spawn payload = %+v, want child %s at depth 1", payload, n.ChildIDs[0])
			}
		}
	}
	if !spawned {
		t.Error("parent stream missing sub_negotiation.started")
	}
}

func TestEngine_Run_ChildResultFoldsIntoFinalProposal(t *testing.T) {
	gap := negotiation.Gap{
		Description:        "seo optimization",
		Importance:         0.8,
		Eligible:           true,
		SatisfactionUplift: 0.6,
		StakeholderBenefit: 0.6,
		CostBenefit:        1.5,
	}

	synthesis := infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
		if strings.Contains(req.Demand.RawText, "seo") {
			return oracle.SynthesisOutcome{
				Decision: oracle.DecisionProposal,
				Proposal: proposalFor(req.Round),
			}, nil
		}
		if len(req.ChildOutcomes) > 0 {
			// The refined proposal incorporates the child's resolution.
			return oracle.SynthesisOutcome{
				Decision: oracle.DecisionProposal,
				Proposal: &negotiation.Proposal{
					Round: req.Round,
					Assignments: []negotiation.Assignment{
						{AgentID: "builder", Role: "contributor", Contribution: json.RawMessage(`{"part":"backend"}`)},
						{AgentID: "seo-pro", Role: "specialist", Contribution: json.RawMessage(`{"part":"seo"}`)},
					},
					Confidence: 0.95,
				},
			}, nil
		}
		return oracle.SynthesisOutcome{
			Decision: oracle.DecisionTriggerSubNegotiation,
			Proposal: proposalFor(req.Round, gap),
		}, nil
	})

	engine, err := NewEngine(EngineConfig{
		Registry:         testRegistry(),
		OfferOracle:      &infraoracle.StaticOffer{},
		Synthesis:        synthesis,
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           fastBounds(),
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "build a landing page"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateCompleted {
		t.Fatalf("State = %s (%s), want completed", n.State, n.FailReason)
	}

	proposal := n.CurrentProposal()
	if proposal == nil {
		t.Fatal("CurrentProposal() = nil, want the refined proposal")
	}
	found := false
	for _, as := range proposal.Assignments {
		if as.AgentID == "seo-pro" {
			found = true
		}
	}
	if !found {
		t.Errorf("final proposal %+v does not incorporate the child's result", proposal.Assignments)
	}
	if len(n.Proposals) != 1 {
		t.Errorf("Proposals = %d, want 1 (the refined proposal supersedes in place)", len(n.Proposals))
	}

	// The confirmed proposal on the stream is the refined one too.
	events, _ := engine.Events(context.Background(), n.ID)
	for _, evt := range events {
		if evt.Type != event.TypeNegotiationCompleted {
			continue
		}
		var payload event.NegotiationCompletedPayload
		if err := evt.UnmarshalPayload(&payload); err != nil {
			t.Fatalf("UnmarshalPayload() error = %v", err)
		}
		if len(payload.Proposal.Assignments) != 2 {
			t.Errorf("completion payload has %d assignments, want the refined 2", len(payload.Proposal.Assignments))
		}
	}
}

func TestEngine_Run_DepthExhaustedKeepsProposalWithKnownGap(t *testing.T) {
	bounds := fastBounds()
	bounds.MaxDepth = 0

	gap := negotiation.Gap{
		Description:        "unreachable gap",
		Eligible:           true,
		SatisfactionUplift: 0.9,
		StakeholderBenefit: 0.9,
		CostBenefit:        2.0,
	}

	synthesis := infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
		return oracle.SynthesisOutcome{
			Decision: oracle.DecisionTriggerSubNegotiation,
			Proposal: proposalFor(req.Round, gap),
		}, nil
	})

	engine, err := NewEngine(EngineConfig{
		Registry:         testRegistry(),
		OfferOracle:      &infraoracle.StaticOffer{},
		Synthesis:        synthesis,
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           bounds,
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "demand"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateCompleted {
		t.Fatalf("State = %s (%s), want completed", n.State, n.FailReason)
	}
	if len(n.ChildIDs) != 0 {
		t.Errorf("ChildIDs = %v, want none at the depth bound", n.ChildIDs)
	}
	proposal := n.CurrentProposal()
	if proposal == nil || !proposal.KnownGap {
		t.Errorf("CurrentProposal() = %+v, want known-gap annotation", proposal)
	}
}

func TestEngine_Run_DepthExhaustedWithoutProposalFails(t *testing.T) {
	bounds := fastBounds()
	bounds.MaxDepth = 0

	gap := negotiation.Gap{
		Description:        "unreachable gap",
		Eligible:           true,
		SatisfactionUplift: 0.9,
		StakeholderBenefit: 0.9,
		CostBenefit:        2.0,
	}

	// Nothing stands without the recursion: the trigger carries no
	// assignments, only the gap.
	synthesis := infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
		return oracle.SynthesisOutcome{
			Decision: oracle.DecisionTriggerSubNegotiation,
			Proposal: &negotiation.Proposal{Round: req.Round, Gaps: []negotiation.Gap{gap}},
		}, nil
	})

	engine, err := NewEngine(EngineConfig{
		Registry:         testRegistry(),
		OfferOracle:      &infraoracle.StaticOffer{},
		Synthesis:        synthesis,
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           bounds,
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "demand"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateFailed {
		t.Fatalf("State = %s, want failed", n.State)
	}
	if n.FailReason != negotiation.ReasonDepthExhausted {
		t.Errorf("FailReason = %s, want %s", n.FailReason, negotiation.ReasonDepthExhausted)
	}
	if len(n.ChildIDs) != 0 {
		t.Errorf("ChildIDs = %v, want none at the depth bound", n.ChildIDs)
	}
}

func TestEngine_Run_LateOfferStaysOffTheStream(t *testing.T) {
	bounds := fastBounds()
	bounds.BarrierDeadline = 100 * time.Millisecond

	release := make(chan struct{})
	offerOracle := infraoracle.OfferFunc(func(ctx context.Context, ref agent.Ref, _ negotiation.Demand) (oracle.OfferResult, error) {
		if ref == "designer" {
			select {
			case <-release:
			case <-ctx.Done():
				return oracle.OfferResult{}, ctx.Err()
			}
		}
		o := negotiation.NewOffer(string(ref), json.RawMessage(`{"v":1}`))
		return oracle.OfferResult{Offer: &o}, nil
	})

	engine, err := NewEngine(EngineConfig{
		Registry:    testRegistry(),
		OfferOracle: offerOracle,
		Synthesis: infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
			return oracle.SynthesisOutcome{Decision: oracle.DecisionProposal, Proposal: proposalFor(req.Round)}, nil
		}),
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           bounds,
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "demand"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n.State != negotiation.StateCompleted {
		t.Fatalf("State = %s (%s), want completed", n.State, n.FailReason)
	}

	// Unblock the straggler after the negotiation terminated, then give the
	// drain a moment to see its answer.
	close(release)
	time.Sleep(200 * time.Millisecond)

	events, err := engine.Events(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if last := events[len(events)-1]; last.Type != event.TypeNegotiationCompleted {
		t.Errorf("last event = %s, want negotiation.completed (terminal stays last)", last.Type)
	}
	received := 0
	for _, evt := range events {
		if evt.Type == event.TypeOfferReceived {
			received++
			var payload event.OfferReceivedPayload
			if err := evt.UnmarshalPayload(&payload); err != nil {
				t.Fatalf("UnmarshalPayload() error = %v", err)
			}
			if payload.AgentID == "designer" {
				t.Error("late offer from designer must not reach the stream")
			}
		}
	}
	if received != 1 {
		t.Errorf("offer.received events = %d, want 1 (on-time offers only)", received)
	}
}

func TestEngine_Run_BoundsHoldUnderArbitraryDecisions(t *testing.T) {
	gap := negotiation.Gap{
		Description:        "some gap",
		Eligible:           true,
		SatisfactionUplift: 0.9,
		StakeholderBenefit: 0.9,
		CostBenefit:        2.0,
	}

	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 20; i++ {
		bounds := fastBounds()
		bounds.MaxRounds = 1 + rng.Intn(3)
		bounds.MaxDepth = rng.Intn(2)

		t.Run(fmt.Sprintf("run_%02d_rounds_%d_depth_%d", i, bounds.MaxRounds, bounds.MaxDepth), func(t *testing.T) {
			synthesis := infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
				switch rng.Intn(4) {
				case 0:
					return oracle.SynthesisOutcome{Decision: oracle.DecisionNeedMoreInfo, Reason: "thin"}, nil
				case 1:
					return oracle.SynthesisOutcome{
						Decision: oracle.DecisionTriggerSubNegotiation,
						Proposal: proposalFor(req.Round, gap),
					}, nil
				case 2:
					return oracle.SynthesisOutcome{Decision: oracle.DecisionFailure, Reason: "incompatible"}, nil
				default:
					return oracle.SynthesisOutcome{Decision: oracle.DecisionProposal, Proposal: proposalFor(req.Round)}, nil
				}
			})

			store := memory.NewNegotiationStore()
			engine, err := NewEngine(EngineConfig{
				Registry:         testRegistry(),
				OfferOracle:      &infraoracle.StaticOffer{DeclineAll: rng.Intn(4) == 0},
				Synthesis:        synthesis,
				ConfirmationSink: infraoracle.AutoConfirm{},
				Bounds:           bounds,
				Resilience:       fastResilience(),
				NegotiationStore: store,
			})
			if err != nil {
				t.Fatalf("NewEngine() error = %v", err)
			}

			n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "demand"})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !n.IsTerminal() {
				t.Fatalf("State = %s, want a terminal state", n.State)
			}

			// Every negotiation the run touched, children included, honors
			// the round and depth bounds and reached a terminal state.
			records, err := store.List(context.Background(), negotiation.ListFilter{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			for _, rec := range records {
				if rec.Round > bounds.MaxRounds {
					t.Errorf("%s Round = %d, exceeds bound %d", rec.ID, rec.Round, bounds.MaxRounds)
				}
				if rec.Depth > bounds.MaxDepth {
					t.Errorf("%s Depth = %d, exceeds bound %d", rec.ID, rec.Depth, bounds.MaxDepth)
				}
				if !rec.IsTerminal() {
					t.Errorf("%s State = %s, want terminal", rec.ID, rec.State)
				}
			}
		})
	}
}

func TestEngine_Run_RejectionFails(t *testing.T) {
	reject := infraoracle.ConfirmationFunc(func(context.Context, string, negotiation.Proposal) (oracle.ConfirmationDecision, error) {
		return oracle.ConfirmationRejected, nil
	})

	engine, err := NewEngine(EngineConfig{
		Registry: testRegistry(),
		OfferOracle: &infraoracle.StaticOffer{},
		Synthesis: infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
			return oracle.SynthesisOutcome{Decision: oracle.DecisionProposal, Proposal: proposalFor(req.Round)}, nil
		}),
		ConfirmationSink: reject,
		Bounds:           fastBounds(),
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "demand"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateFailed {
		t.Fatalf("State = %s, want failed", n.State)
	}
	if n.FailReason != negotiation.ReasonRejected {
		t.Errorf("FailReason = %s, want %s", n.FailReason, negotiation.ReasonRejected)
	}
	if n.CurrentProposal() == nil {
		t.Error("rejection must retain the last good proposal")
	}
}

func TestEngine_Run_ConfirmationTimeoutFails(t *testing.T) {
	bounds := fastBounds()
	bounds.ConfirmationTimeout = 100 * time.Millisecond

	engine, err := NewEngine(EngineConfig{
		Registry: testRegistry(),
		OfferOracle: &infraoracle.StaticOffer{},
		Synthesis: infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
			return oracle.SynthesisOutcome{Decision: oracle.DecisionProposal, Proposal: proposalFor(req.Round)}, nil
		}),
		ConfirmationSink: infraoracle.NeverConfirm{},
		Bounds:           bounds,
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "demand"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateFailed {
		t.Fatalf("State = %s, want failed", n.State)
	}
	if n.FailReason != negotiation.ReasonUnconfirmed {
		t.Errorf("FailReason = %s, want %s", n.FailReason, negotiation.ReasonUnconfirmed)
	}
}

func TestEngine_Run_SynthesisFailure(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		Registry: testRegistry(),
		OfferOracle: &infraoracle.StaticOffer{},
		Synthesis: infraoracle.SynthesisFunc(func(context.Context, oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
			return oracle.SynthesisOutcome{Decision: oracle.DecisionFailure, Reason: "offers incompatible"}, nil
		}),
		ConfirmationSink: infraoracle.AutoConfirm{},
		Bounds:           fastBounds(),
		Resilience:       fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	n, err := engine.Run(context.Background(), negotiation.Demand{RawText: "demand"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n.State != negotiation.StateFailed || n.FailReason != "offers incompatible" {
		t.Errorf("terminal = %s/%s, want failed/offers incompatible", n.State, n.FailReason)
	}
}

func TestEngine_StartAndManualConfirmation(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		Registry: testRegistry(),
		OfferOracle: &infraoracle.StaticOffer{},
		Synthesis: infraoracle.SynthesisFunc(func(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
			return oracle.SynthesisOutcome{Decision: oracle.DecisionProposal, Proposal: proposalFor(req.Round)}, nil
		}),
		// No sink: the engine installs its manual confirmation.
		Bounds:     fastBounds(),
		Resilience: fastResilience(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	id, err := engine.Start(context.Background(), negotiation.Demand{RawText: "demand"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Deliver the confirmation once the negotiation parks on its proposal.
	delivered := false
	for i := 0; i < 200; i++ {
		if engine.SubmitConfirmation(id, true) {
			delivered = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !delivered {
		t.Fatal("SubmitConfirmation() never found a waiting negotiation")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Wait(ctx, id); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	n, err := engine.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if n.State != negotiation.StateCompleted {
		t.Errorf("State = %s (%s), want completed", n.State, n.FailReason)
	}

	// Redelivery after consumption changes nothing.
	if engine.SubmitConfirmation(id, false) {
		t.Error("SubmitConfirmation() redelivery = true, want false")
	}
}

func TestEngine_CancelUnknown(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		Registry:    testRegistry(),
		OfferOracle: &infraoracle.StaticOffer{},
		Synthesis: infraoracle.SynthesisFunc(func(context.Context, oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
			return oracle.SynthesisOutcome{Decision: oracle.DecisionFailure}, nil
		}),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if err := engine.Cancel("no-such-negotiation"); err != negotiation.ErrNotFound {
		t.Errorf("Cancel() error = %v, want ErrNotFound", err)
	}
}

func TestNewEngine_RequiredDependencies(t *testing.T) {
	synthesis := infraoracle.SynthesisFunc(func(context.Context, oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
		return oracle.SynthesisOutcome{}, nil
	})
	offer := &infraoracle.StaticOffer{}

	tests := []struct {
		name   string
		config EngineConfig
	}{
		{"missing registry", EngineConfig{OfferOracle: offer, Synthesis: synthesis}},
		{"missing offer oracle", EngineConfig{Registry: testRegistry(), Synthesis: synthesis}},
		{"missing synthesis", EngineConfig{Registry: testRegistry(), OfferOracle: offer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.config); err == nil {
				t.Error("NewEngine() error = nil, want required-dependency error")
			}
		})
	}
}
