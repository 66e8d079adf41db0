package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// applyTransition syncs the aggregate with the machine transition.
// In statekit, actions receive a pointer to the context. Since our context
// is *Context, actions receive **Context.
func applyTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Negotiation == nil {
		return
	}

	c := *ctx
	toState := targetState(event)
	if toState == "" {
		return
	}

	c.Negotiation.TransitionTo(toState)
}
