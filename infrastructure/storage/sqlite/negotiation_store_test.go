package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

func newTestNegotiationStore(t *testing.T) *NegotiationStore {
	t.Helper()

	store, err := NewNegotiationStore(Config{InMemory: true, AutoMigrate: true})
	if err != nil {
		t.Fatalf("NewNegotiationStore() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestNegotiationStore_SaveAndGet(t *testing.T) {
	store := newTestNegotiationStore(t)
	ctx := context.Background()

	n := negotiation.New("neg-1", negotiation.Demand{RawText: "build a landing page"})
	if err := store.Save(ctx, n); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "neg-1" || got.State != negotiation.StateCreated {
		t.Errorf("Get() = %s/%s, want neg-1/created", got.ID, got.State)
	}
	if got.Demand.RawText != "build a landing page" {
		t.Errorf("Get() demand = %s, want the saved raw text", got.Demand.RawText)
	}
}

func TestNegotiationStore_Save_Duplicate(t *testing.T) {
	store := newTestNegotiationStore(t)
	ctx := context.Background()

	n := negotiation.New("neg-1", negotiation.Demand{RawText: "demand"})
	if err := store.Save(ctx, n); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, n); err == nil {
		t.Error("Save() duplicate error = nil, want already-exists error")
	}
}

func TestNegotiationStore_Get_NotFound(t *testing.T) {
	store := newTestNegotiationStore(t)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, negotiation.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNegotiationStore_Update(t *testing.T) {
	store := newTestNegotiationStore(t)
	ctx := context.Background()

	n := negotiation.New("neg-1", negotiation.Demand{RawText: "demand"})
	if err := store.Save(ctx, n); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	n.TransitionTo(negotiation.StateFormulating)
	if err := store.Update(ctx, n); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Get(ctx, "neg-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != negotiation.StateFormulating {
		t.Errorf("State after update = %s, want formulating", got.State)
	}

	missing := negotiation.New("missing", negotiation.Demand{RawText: "x"})
	if err := store.Update(ctx, missing); !errors.Is(err, negotiation.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNegotiationStore_Delete(t *testing.T) {
	store := newTestNegotiationStore(t)
	ctx := context.Background()

	n := negotiation.New("neg-1", negotiation.Demand{RawText: "demand"})
	if err := store.Save(ctx, n); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Delete(ctx, "neg-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "neg-1"); !errors.Is(err, negotiation.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "neg-1"); !errors.Is(err, negotiation.ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestNegotiationStore_List(t *testing.T) {
	store := newTestNegotiationStore(t)
	ctx := context.Background()

	root := negotiation.New("root-1", negotiation.Demand{RawText: "root demand"})
	if err := store.Save(ctx, root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	child := negotiation.NewChild("child-1", negotiation.Demand{RawText: "child demand"}, "root-1", 1)
	if err := store.Save(ctx, child); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	done := negotiation.New("done-1", negotiation.Demand{RawText: "done demand"})
	done.TransitionTo(negotiation.StateCompleted)
	if err := store.Save(ctx, done); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	all, err := store.List(ctx, negotiation.ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() = %d, want all 3", len(all))
	}

	roots, err := store.List(ctx, negotiation.ListFilter{Roots: true})
	if err != nil {
		t.Fatalf("List(roots) error = %v", err)
	}
	if len(roots) != 2 {
		t.Errorf("List(roots) = %d, want 2", len(roots))
	}

	children, err := store.List(ctx, negotiation.ListFilter{ParentID: "root-1"})
	if err != nil {
		t.Fatalf("List(parent) error = %v", err)
	}
	if len(children) != 1 || children[0].ID != "child-1" {
		t.Errorf("List(parent root-1) = %v, want [child-1]", children)
	}

	completed, err := store.List(ctx, negotiation.ListFilter{States: []negotiation.State{negotiation.StateCompleted}})
	if err != nil {
		t.Fatalf("List(states) error = %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "done-1" {
		t.Errorf("List(completed) = %v, want [done-1]", completed)
	}

	limited, err := store.List(ctx, negotiation.ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(limit 1) = %d, want 1", len(limited))
	}
}
