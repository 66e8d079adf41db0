package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/logging"
)

// runChildren spawns one sub-negotiation per eligible gap and waits for all
// of them. Children run the full lifecycle at depth+1 under their own
// timeout; a child's failure or timeout comes back as a typed outcome, never
// as an error crossing the parent boundary.
func (e *Engine) runChildren(ctx context.Context, parent *negotiation.Negotiation, gaps []negotiation.Gap) []negotiation.ChildOutcome {
	outcomes := make([]negotiation.ChildOutcome, len(gaps))

	type spawned struct {
		index int
		child *negotiation.Negotiation
	}
	children := make([]spawned, 0, len(gaps))

	for i, gap := range gaps {
		child := negotiation.NewChild(
			uuid.New().String(),
			negotiation.Demand{RawText: gap.Description},
			parent.ID,
			parent.Depth+1,
		)
		parent.AddChild(child.ID)

		if err := e.store.Save(ctx, child); err != nil {
			outcomes[i] = negotiation.ChildOutcome{
				ChildID: child.ID,
				Gap:     gap,
				Status:  negotiation.ChildFailed,
				Reason:  "save child: " + err.Error(),
			}
			continue
		}

		e.emit(ctx, parent.ID, event.TypeSubNegotiationStarted, event.SubNegotiationStartedPayload{
			ChildID: child.ID,
			Depth:   child.Depth,
			Gap:     gap,
		})
		e.metrics.RecordSubNegotiationSpawned(ctx, child.Depth)

		logging.Info().
			Add(logging.ParentID(parent.ID)).
			Add(logging.ChildID(child.ID)).
			Add(logging.Depth(child.Depth)).
			Msg("sub-negotiation started")

		children = append(children, spawned{index: i, child: child})
	}

	// Children run sequentially: the parent is blocked in its synthesis
	// phase either way, and sequential runs keep the event streams ordered.
	for _, s := range children {
		outcomes[s.index] = e.runChild(ctx, s.child, gaps[s.index])
	}

	return outcomes
}

// runChild drives one sub-negotiation to a terminal state under the child
// timeout and classifies the result for the parent's synthesis.
func (e *Engine) runChild(ctx context.Context, child *negotiation.Negotiation, gap negotiation.Gap) negotiation.ChildOutcome {
	childCtx, cancel := context.WithTimeout(ctx, e.bounds.ChildTimeout)
	defer cancel()

	done, err := e.run(childCtx, child)

	outcome := negotiation.ChildOutcome{
		ChildID: child.ID,
		Gap:     gap,
	}

	switch {
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(childCtx.Err(), context.DeadlineExceeded) {
			outcome.Status = negotiation.ChildTimedOut
		} else {
			outcome.Status = negotiation.ChildFailed
			outcome.Reason = err.Error()
		}

	case done.State == negotiation.StateCompleted:
		outcome.Status = negotiation.ChildResolved
		outcome.Result = marshalProposal(done.CurrentProposal())

	case childCtx.Err() != nil && errors.Is(childCtx.Err(), context.DeadlineExceeded):
		outcome.Status = negotiation.ChildTimedOut

	default:
		outcome.Status = negotiation.ChildFailed
		outcome.Reason = done.FailReason
	}

	logging.Info().
		Add(logging.ChildID(child.ID)).
		Add(logging.Str("status", string(outcome.Status))).
		Add(logging.Duration(time.Since(child.CreatedAt))).
		Msg("sub-negotiation finished")

	return outcome
}

// hasUnresolved reports whether any child came back without a usable result.
func hasUnresolved(outcomes []negotiation.ChildOutcome) bool {
	for _, o := range outcomes {
		if !o.Resolved() {
			return true
		}
	}
	return false
}
