// Package statemachine provides the statekit integration for the
// negotiation lifecycle.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/policy"
)

// Context carries the aggregate and its policies through the state machine.
type Context struct {
	Negotiation *negotiation.Negotiation
	Bounds      policy.Bounds
	Transitions *policy.StateTransitions
}

// NewContext creates a new machine context.
func NewContext(n *negotiation.Negotiation, bounds policy.Bounds) *Context {
	return &Context{
		Negotiation: n,
		Bounds:      bounds,
		Transitions: policy.DefaultTransitions(),
	}
}

// State IDs as StateID type for statekit.
const (
	stateCreated        statekit.StateID = statekit.StateID(negotiation.StateCreated)
	stateFormulating    statekit.StateID = statekit.StateID(negotiation.StateFormulating)
	stateFormulated     statekit.StateID = statekit.StateID(negotiation.StateFormulated)
	stateEncoding       statekit.StateID = statekit.StateID(negotiation.StateEncoding)
	stateOffering       statekit.StateID = statekit.StateID(negotiation.StateOffering)
	stateBarrierWaiting statekit.StateID = statekit.StateID(negotiation.StateBarrierWaiting)
	stateSynthesizing   statekit.StateID = statekit.StateID(negotiation.StateSynthesizing)
	stateCompleted      statekit.StateID = statekit.StateID(negotiation.StateCompleted)
	stateFailed         statekit.StateID = statekit.StateID(negotiation.StateFailed)
)

// NewNegotiationMachine creates the canonical negotiation statechart.
func NewNegotiationMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("negotiation").
		WithInitial(stateCreated).
		WithContext(&Context{}).
		// Register actions
		WithAction("applyTransition", applyTransition).
		// Register guards
		WithGuard("canTransition", guardCanTransition).
		WithGuard("roundAvailable", guardRoundAvailable).
		// Define states
		State(stateCreated).
			On("FORMULATE").Target(stateFormulating).Guard("canTransition").Do("applyTransition").
			On("FAIL").Target(stateFailed).Do("applyTransition").
			Done().
		State(stateFormulating).
			On("FORMULATED").Target(stateFormulated).Guard("canTransition").Do("applyTransition").
			On("FAIL").Target(stateFailed).Do("applyTransition").
			Done().
		State(stateFormulated).
			On("ENCODE").Target(stateEncoding).Guard("canTransition").Do("applyTransition").
			On("FAIL").Target(stateFailed).Do("applyTransition").
			Done().
		State(stateEncoding).
			On("OFFER").Target(stateOffering).Guard("canTransition").Do("applyTransition").
			On("FAIL").Target(stateFailed).Do("applyTransition").
			Done().
		State(stateOffering).
			On("BARRIER").Target(stateBarrierWaiting).Guard("canTransition").Do("applyTransition").
			On("FAIL").Target(stateFailed).Do("applyTransition").
			Done().
		State(stateBarrierWaiting).
			On("SYNTHESIZE").Target(stateSynthesizing).Guard("canTransition").Do("applyTransition").
			On("FAIL").Target(stateFailed).Do("applyTransition").
			Done().
		State(stateSynthesizing).
			On("OFFER").Target(stateOffering).Guard("canTransition").Guard("roundAvailable").Do("applyTransition").
			On("COMPLETE").Target(stateCompleted).Guard("canTransition").Do("applyTransition").
			On("FAIL").Target(stateFailed).Do("applyTransition").
			Done().
		State(stateCompleted).
			Final().
			Done().
		State(stateFailed).
			Final().
			Done().
		Build()
}

// EventForTransition returns the event type for a state transition.
func EventForTransition(to negotiation.State) statekit.EventType {
	switch to {
	case negotiation.StateFormulating:
		return "FORMULATE"
	case negotiation.StateFormulated:
		return "FORMULATED"
	case negotiation.StateEncoding:
		return "ENCODE"
	case negotiation.StateOffering:
		return "OFFER"
	case negotiation.StateBarrierWaiting:
		return "BARRIER"
	case negotiation.StateSynthesizing:
		return "SYNTHESIZE"
	case negotiation.StateCompleted:
		return "COMPLETE"
	case negotiation.StateFailed:
		return "FAIL"
	default:
		return statekit.EventType(to)
	}
}

// StateFromMachine converts the machine state ID to a domain State.
func StateFromMachine(stateID statekit.StateID) negotiation.State {
	return negotiation.State(stateID)
}
