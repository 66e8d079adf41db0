package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
)

func mustEvent(t *testing.T, negotiationID string, eventType event.Type) event.Event {
	t.Helper()
	evt, err := event.New(negotiationID, eventType, map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("event.New() error = %v", err)
	}
	return evt
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	err := store.Append(ctx,
		mustEvent(t, "neg-1", event.TypeFormulationReady),
		mustEvent(t, "neg-1", event.TypeResonanceActivated),
		mustEvent(t, "neg-2", event.TypeFormulationReady),
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := store.Load(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Load() = %d events, want 2", len(events))
	}

	// Sequences are per stream, contiguous from 1.
	for i, e := range events {
		if e.Sequence != uint64(i+1) {
			t.Errorf("event %d Sequence = %d, want %d", i, e.Sequence, i+1)
		}
		if e.ID == "" {
			t.Errorf("event %d missing generated ID", i)
		}
	}

	other, _ := store.Load(ctx, "neg-2")
	if len(other) != 1 || other[0].Sequence != 1 {
		t.Errorf("neg-2 stream = %+v, want one event at sequence 1", other)
	}
}

func TestEventStore_AppendInvalid(t *testing.T) {
	store := NewEventStore()

	err := store.Append(context.Background(), event.Event{Type: event.TypePlanReady})
	if !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append() without negotiation id error = %v, want ErrInvalidEvent", err)
	}

	err = store.Append(context.Background(), event.Event{NegotiationID: "neg-1"})
	if !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append() without type error = %v, want ErrInvalidEvent", err)
	}
}

func TestEventStore_LoadFrom(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, mustEvent(t, "neg-1", event.TypeOfferReceived)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	events, err := store.LoadFrom(ctx, "neg-1", 3)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("LoadFrom(3) = %d events, want 3", len(events))
	}
	if events[0].Sequence != 3 {
		t.Errorf("first sequence = %d, want 3", events[0].Sequence)
	}
}

func TestEventStore_Subscribe(t *testing.T) {
	store := NewEventStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Subscribe(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := store.Append(ctx, mustEvent(t, "neg-1", event.TypePlanReady)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	select {
	case evt := <-ch:
		if evt.Type != event.TypePlanReady {
			t.Errorf("received type = %s, want plan.ready", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the appended event")
	}
}

func TestEventStore_Query(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Append(ctx,
		mustEvent(t, "neg-1", event.TypeOfferReceived),
		mustEvent(t, "neg-1", event.TypeOfferReceived),
		mustEvent(t, "neg-1", event.TypeBarrierComplete),
	); err != nil {
		t.Fatalf("Append() error = %v", err)
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

	limited, err := store.Query(ctx, "neg-1", event.QueryOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(limited) != 1 || limited[0].Sequence != 2 {
		t.Errorf("Query(limit 1, offset 1) = %+v, want the second event", limited)
	}

	count, err := store.Count(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}
