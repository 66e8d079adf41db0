package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
)

func newTestStore(t *testing.T) (*EventStore, *MockClient) {
	t.Helper()
	client := NewMockClient()
	store, err := NewEventStore(Config{Client: client})
	if err != nil {
		t.Fatalf("NewEventStore() error = %v", err)
	}
	return store, client
}

func TestNewEventStore_RequiresClient(t *testing.T) {
	if _, err := NewEventStore(Config{}); err == nil {
		t.Error("NewEventStore() without a client should error")
	}
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	evt, err := event.New("neg-1", event.TypeFormulationReady, map[string]any{"text": "demand"})
	if err != nil {
		t.Fatalf("event.New() error = %v", err)
	}
	second, _ := event.New("neg-1", event.TypeResonanceActivated, map[string]any{})

	if err := store.Append(ctx, evt, second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if client.MessageCount("towow.events.neg-1") != 2 {
		t.Errorf("published messages = %d, want 2", client.MessageCount("towow.events.neg-1"))
	}

	events, err := store.Load(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Load() = %d events, want 2", len(events))
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Errorf("sequences = %d, %d, want 1, 2", events[0].Sequence, events[1].Sequence)
	}
	if events[0].ID == "" {
		t.Error("Append() should assign an event id")
	}
}

func TestEventStore_AppendInvalid(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Append(context.Background(), event.Event{Type: event.TypePlanReady})
	if !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append() error = %v, want ErrInvalidEvent", err)
	}
}

func TestEventStore_LoadFrom(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		evt, _ := event.New("neg-1", event.TypeOfferReceived, map[string]any{"i": i})
		if err := store.Append(ctx, evt); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	events, err := store.LoadFrom(ctx, "neg-1", 3)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("LoadFrom(3) = %d events, want 2", len(events))
	}
	if events[0].Sequence != 3 {
		t.Errorf("first sequence = %d, want 3", events[0].Sequence)
	}
}

func TestEventStore_Subscribe(t *testing.T) {
	store, _ := newTestStore(t)
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
		t.Fatal("subscriber did not receive the published event")
	}
}

func TestEventStore_StreamsAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := event.New("neg-a", event.TypeFormulationReady, map[string]any{})
	b, _ := event.New("neg-b", event.TypeFormulationReady, map[string]any{})
	if err := store.Append(ctx, a, b); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	eventsA, _ := store.Load(ctx, "neg-a")
	eventsB, _ := store.Load(ctx, "neg-b")
	if len(eventsA) != 1 || len(eventsB) != 1 {
		t.Fatalf("streams = %d/%d events, want 1/1", len(eventsA), len(eventsB))
	}
	if eventsA[0].Sequence != 1 || eventsB[0].Sequence != 1 {
		t.Error("each stream should number sequences independently from 1")
	}
}
