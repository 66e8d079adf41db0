package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

func newTestEventStore(t *testing.T) *EventStore {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.GCInterval = 0
	store, err := NewEventStore(cfg)
	if err != nil {
		t.Fatalf("NewEventStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	first, _ := event.New("neg-1", event.TypeFormulationReady, map[string]any{"text": "demand"})
	second, _ := event.New("neg-1", event.TypeResonanceActivated, map[string]any{})
	if err := store.Append(ctx, first, second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := store.Load(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Load() = %d events, want 2", len(events))
	}
	for i, e := range events {
		if e.Sequence != uint64(i+1) {
			t.Errorf("event %d sequence = %d, want %d", i, e.Sequence, i+1)
		}
	}
}

func TestEventStore_SequencesSurviveReopens(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	// Two separate appends must continue the same counter.
	a, _ := event.New("neg-1", event.TypeOfferReceived, map[string]any{})
	if err := store.Append(ctx, a); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	b, _ := event.New("neg-1", event.TypeOfferReceived, map[string]any{})
	if err := store.Append(ctx, b); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, _ := store.Load(ctx, "neg-1")
	if len(events) != 2 || events[1].Sequence != 2 {
		t.Errorf("events = %+v, want second event at sequence 2", events)
	}
}

func TestEventStore_AppendInvalid(t *testing.T) {
	store := newTestEventStore(t)

	err := store.Append(context.Background(), event.Event{Type: event.TypePlanReady})
	if !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append() error = %v, want ErrInvalidEvent", err)
	}
}

func TestEventStore_LoadFrom(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		evt, _ := event.New("neg-1", event.TypeOfferReceived, map[string]any{"i": i})
		if err := store.Append(ctx, evt); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	events, err := store.LoadFrom(ctx, "neg-1", 3)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if len(events) != 3 || events[0].Sequence != 3 {
		t.Errorf("LoadFrom(3) = %d events starting at %d, want 3 starting at 3", len(events), events[0].Sequence)
	}
}

func TestEventStore_Subscribe(t *testing.T) {
	store := newTestEventStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Subscribe(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	evt, _ := event.New("neg-1", event.TypePlanReady, map[string]any{})
	if err := store.Append(ctx, evt); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	select {
	case got := <-ch:
		if got.Type != event.TypePlanReady {
			t.Errorf("received type = %s, want plan.ready", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the appended event")
	}
}

func TestEventStore_QueryAndCount(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	for _, typ := range []event.Type{
		event.TypeOfferReceived,
		event.TypeOfferReceived,
		event.TypeBarrierComplete,
	} {
		evt, _ := event.New("neg-1", typ, map[string]any{})
		if err := store.Append(ctx, evt); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	offers, err := store.Query(ctx, "neg-1", event.QueryOptions{
		Types: []event.Type{event.TypeOfferReceived},
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(offers) != 2 {
		t.Errorf("Query(offer.received) = %d, want 2", len(offers))
	}

	count, err := store.Count(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	ids, err := store.ListNegotiations(ctx)
	if err != nil {
		t.Fatalf("ListNegotiations() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "neg-1" {
		t.Errorf("ListNegotiations() = %v, want [neg-1]", ids)
	}
}

func TestNegotiationStore_CRUD(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.GCInterval = 0
	store, err := NewNegotiationStore(cfg)
	if err != nil {
		t.Fatalf("NewNegotiationStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	n := negotiation.New("neg-1", negotiation.Demand{RawText: "demand"})
	if err := store.Save(ctx, n); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "neg-1" {
		t.Errorf("Get().ID = %s, want neg-1", got.ID)
	}

	n.TransitionTo(negotiation.StateFormulating)
	if err := store.Update(ctx, n); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	updated, _ := store.Get(ctx, "neg-1")
	if updated.State != negotiation.StateFormulating {
		t.Errorf("Update() state = %s, want formulating", updated.State)
	}

	if err := store.Delete(ctx, "neg-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "neg-1"); !errors.Is(err, negotiation.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}
