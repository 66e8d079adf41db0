package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// guardCanTransition checks the transition against the policy table.
// In statekit, guards receive the context by value; with *Context as the
// context type the guard receives *Context directly.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil || ctx.Negotiation == nil || ctx.Transitions == nil {
		return false
	}

	fromState := ctx.Negotiation.State
	toState := targetState(event)
	return ctx.Transitions.CanTransition(fromState, toState)
}

// guardRoundAvailable gates the synthesizing→offering loop on the round
// bound: the next round must not exceed MaxRounds.
func guardRoundAvailable(ctx *Context, _ statekit.Event) bool {
	if ctx == nil || ctx.Negotiation == nil {
		return false
	}
	return ctx.Negotiation.Round < ctx.Bounds.MaxRounds
}

// targetState extracts the target state from an event.
func targetState(event statekit.Event) negotiation.State {
	if payload, ok := event.Payload.(TransitionPayload); ok {
		return payload.ToState
	}
	return stateFromEventType(event.Type)
}

// stateFromEventType derives the target state from an event type.
func stateFromEventType(eventType statekit.EventType) negotiation.State {
	switch eventType {
	case "FORMULATE":
		return negotiation.StateFormulating
	case "FORMULATED":
		return negotiation.StateFormulated
	case "ENCODE":
		return negotiation.StateEncoding
	case "OFFER":
		return negotiation.StateOffering
	case "BARRIER":
		return negotiation.StateBarrierWaiting
	case "SYNTHESIZE":
		return negotiation.StateSynthesizing
	case "COMPLETE":
		return negotiation.StateCompleted
	case "FAIL":
		return negotiation.StateFailed
	default:
		return negotiation.State(eventType)
	}
}
