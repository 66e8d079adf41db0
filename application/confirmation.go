package application

import (
	"context"
	"sync"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
)

// manualConfirmation is the default confirmation sink: it parks the waiting
// negotiation until SubmitConfirmation delivers a decision or the engine's
// confirmation deadline fires.
type manualConfirmation struct {
	mu      sync.Mutex
	waiters map[string]chan oracle.ConfirmationDecision
}

func newManualConfirmation() *manualConfirmation {
	return &manualConfirmation{
		waiters: make(map[string]chan oracle.ConfirmationDecision),
	}
}

var _ oracle.ConfirmationSink = (*manualConfirmation)(nil)

// AwaitConfirmation implements oracle.ConfirmationSink.
func (m *manualConfirmation) AwaitConfirmation(ctx context.Context, negotiationID string, _ negotiation.Proposal) (oracle.ConfirmationDecision, error) {
	ch := m.register(negotiationID)
	defer m.remove(negotiationID)

	select {
	case <-ctx.Done():
		return oracle.ConfirmationTimedOut, nil
	case decision := <-ch:
		return decision, nil
	}
}

// Submit delivers a decision to a waiting negotiation. It reports false when
// no negotiation is waiting, which covers both unknown ids and redelivery
// after the decision was already consumed.
func (m *manualConfirmation) Submit(negotiationID string, confirmed bool) bool {
	m.mu.Lock()
	ch, ok := m.waiters[negotiationID]
	if ok {
		// A waiter consumes its channel exactly once.
		delete(m.waiters, negotiationID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	decision := oracle.ConfirmationRejected
	if confirmed {
		decision = oracle.ConfirmationConfirmed
	}

	select {
	case ch <- decision:
		return true
	default:
		return false
	}
}

func (m *manualConfirmation) register(negotiationID string) chan oracle.ConfirmationDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan oracle.ConfirmationDecision, 1)
	m.waiters[negotiationID] = ch
	return ch
}

func (m *manualConfirmation) remove(negotiationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waiters, negotiationID)
}
