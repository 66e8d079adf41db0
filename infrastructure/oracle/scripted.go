package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
)

// ScriptStep defines an expected round and the outcome to return.
type ScriptStep struct {
	// ExpectRound asserts the synthesis request is for this round before
	// returning the outcome. Zero disables the assertion.
	ExpectRound int

	// Outcome is the synthesis outcome to return.
	Outcome oracle.SynthesisOutcome

	// Condition is an optional additional condition that must be true.
	Condition func(oracle.SynthesisRequest) bool
}

// ScriptedSynthesis executes a predefined outcome sequence for deterministic
// testing. It validates the round number before returning outcomes.
type ScriptedSynthesis struct {
	steps        []ScriptStep
	index        int
	onUnexpected func(oracle.SynthesisRequest) oracle.SynthesisOutcome
	mu           sync.Mutex
}

var _ oracle.Synthesis = (*ScriptedSynthesis)(nil)

// NewScriptedSynthesis creates a scripted synthesis with the given steps.
func NewScriptedSynthesis(steps ...ScriptStep) *ScriptedSynthesis {
	return &ScriptedSynthesis{
		steps: steps,
		index: 0,
		onUnexpected: func(_ oracle.SynthesisRequest) oracle.SynthesisOutcome {
			return oracle.SynthesisOutcome{
				Decision: oracle.DecisionFailure,
				Reason:   "script exhausted",
			}
		},
	}
}

// OnUnexpected sets the handler for calls past the end of the script.
func (s *ScriptedSynthesis) OnUnexpected(handler func(oracle.SynthesisRequest) oracle.SynthesisOutcome) *ScriptedSynthesis {
	s.onUnexpected = handler
	return s
}

// Aggregate returns the next outcome if the round matches expectations.
func (s *ScriptedSynthesis) Aggregate(_ context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.steps) {
		return s.onUnexpected(req), nil
	}

	step := s.steps[s.index]

	if step.ExpectRound != 0 && step.ExpectRound != req.Round {
		return oracle.SynthesisOutcome{}, &UnexpectedRoundError{
			Expected:  step.ExpectRound,
			Actual:    req.Round,
			StepIndex: s.index,
		}
	}

	if step.Condition != nil && !step.Condition(req) {
		return oracle.SynthesisOutcome{}, &ConditionFailedError{
			StepIndex: s.index,
			Round:     req.Round,
		}
	}

	s.index++
	return step.Outcome, nil
}

// Reset resets the script to the beginning.
func (s *ScriptedSynthesis) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}

// CurrentStep returns the current step index.
func (s *ScriptedSynthesis) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// IsComplete returns true if all steps have been executed.
func (s *ScriptedSynthesis) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index >= len(s.steps)
}

// UnexpectedRoundError indicates the script received an unexpected round.
type UnexpectedRoundError struct {
	Expected  int
	Actual    int
	StepIndex int
}

func (e *UnexpectedRoundError) Error() string {
	return fmt.Sprintf("unexpected round at step %d: expected %d, got %d", e.StepIndex, e.Expected, e.Actual)
}

// ConditionFailedError indicates a step condition was not met.
type ConditionFailedError struct {
	StepIndex int
	Round     int
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition failed at step %d in round %d", e.StepIndex, e.Round)
}
