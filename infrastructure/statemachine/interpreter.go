package statemachine

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/policy"
)

// TransitionPayload carries additional data with a transition event.
type TransitionPayload struct {
	ToState negotiation.State
	Reason  string
}

// Interpreter wraps the statekit interpreter with negotiation-specific
// functionality. It is not safe for concurrent use; the engine serializes
// access per negotiation.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter for the negotiation state machine.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	// Update the context reference in the machine
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// NewForNegotiation builds a machine and interpreter bound to an aggregate,
// restoring the machine to the aggregate's state when it is not fresh.
func NewForNegotiation(n *negotiation.Negotiation, bounds policy.Bounds) (*Interpreter, error) {
	machine, err := NewNegotiationMachine()
	if err != nil {
		return nil, fmt.Errorf("build negotiation machine: %w", err)
	}

	interp := NewInterpreter(machine, NewContext(n, bounds))
	interp.Start()

	if n.State != negotiation.StateCreated {
		if err := interp.ResumeFrom(n.State); err != nil {
			return nil, err
		}
	}
	return interp, nil
}

// Start initializes the interpreter and enters the initial state.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// State returns the current state.
func (i *Interpreter) State() negotiation.State {
	state := i.interp.State()
	return negotiation.State(state.Value)
}

// Transition attempts to transition to the target state. The policy table
// decides admissibility; a rejected transition returns ErrInvalidTransition.
func (i *Interpreter) Transition(to negotiation.State, reason string) error {
	if i.IsTerminal() {
		return fmt.Errorf("%w: negotiation in state %s", negotiation.ErrTerminal, i.State())
	}
	if !i.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", negotiation.ErrInvalidTransition, i.State(), to)
	}

	event := statekit.Event{
		Type: EventForTransition(to),
		Payload: TransitionPayload{
			ToState: to,
			Reason:  reason,
		},
	}

	// Send the event (doesn't return error, uses guards for invalid events)
	i.interp.Send(event)

	if i.State() != to {
		return fmt.Errorf("%w: %s -> %s", negotiation.ErrInvalidTransition, i.ctx.Negotiation.State, to)
	}

	switch to {
	case negotiation.StateFailed:
		i.ctx.Negotiation.Fail(reason)
	case negotiation.StateCompleted:
		i.ctx.Negotiation.Complete()
	}
	return nil
}

// CanTransition checks if a transition to the target state is possible.
// The synthesizing→offering loop is additionally gated on the round bound.
func (i *Interpreter) CanTransition(to negotiation.State) bool {
	from := i.State()
	if from == negotiation.StateSynthesizing && to == negotiation.StateOffering {
		if i.ctx.Negotiation.Round >= i.ctx.Bounds.MaxRounds {
			return false
		}
	}
	return i.ctx.Transitions.CanTransition(from, to)
}

// IsTerminal returns true if the interpreter is in a terminal state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Context returns the interpreter context.
func (i *Interpreter) Context() *Context {
	return i.ctx
}

// Negotiation returns the aggregate driven by this interpreter.
func (i *Interpreter) Negotiation() *negotiation.Negotiation {
	return i.ctx.Negotiation
}

// Matches checks if the current state matches the given state ID.
func (i *Interpreter) Matches(state negotiation.State) bool {
	return i.interp.Matches(statekit.StateID(state))
}

// ResumeFrom restores the interpreter to a specific state.
// Used when resuming a negotiation loaded from the store.
func (i *Interpreter) ResumeFrom(state negotiation.State) error {
	snapshot := statekit.Snapshot[*Context]{
		MachineID:    "negotiation",
		CurrentState: statekit.StateID(string(state)),
		Context:      i.ctx,
		CreatedAt:    time.Now(),
	}

	if err := i.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}

	if i.ctx.Negotiation.State != state {
		i.ctx.Negotiation.TransitionTo(state)
	}
	return nil
}
