// Package memory provides in-memory storage implementations for tests,
// demos, and single-process deployments.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// negotiationEntry holds a serialized copy of a negotiation for storage.
// Serializing decouples stored state from the caller's aggregate.
type negotiationEntry struct {
	data []byte
}

// NegotiationStore is an in-memory implementation of negotiation.Store.
type NegotiationStore struct {
	negotiations map[string]*negotiationEntry
	mu           sync.RWMutex
}

// NewNegotiationStore creates a new in-memory negotiation store.
func NewNegotiationStore() *NegotiationStore {
	return &NegotiationStore{
		negotiations: make(map[string]*negotiationEntry),
	}
}

// Save persists a new negotiation.
func (s *NegotiationStore) Save(ctx context.Context, n *negotiation.Negotiation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.ID == "" {
		return negotiation.ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	s.negotiations[n.ID] = &negotiationEntry{data: data}
	return nil
}

// Get retrieves a negotiation by ID.
func (s *NegotiationStore) Get(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.negotiations[id]
	if !ok {
		return nil, negotiation.ErrNotFound
	}

	var n negotiation.Negotiation
	if err := json.Unmarshal(entry.data, &n); err != nil {
		return nil, err
	}

	return &n, nil
}

// Update replaces the stored record for an existing negotiation.
func (s *NegotiationStore) Update(ctx context.Context, n *negotiation.Negotiation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.negotiations[n.ID]; !exists {
		return negotiation.ErrNotFound
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	s.negotiations[n.ID] = &negotiationEntry{data: data}
	return nil
}

// Delete removes a negotiation by ID.
func (s *NegotiationStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.negotiations[id]; !exists {
		return negotiation.ErrNotFound
	}

	delete(s.negotiations, id)
	return nil
}

// List returns negotiations matching the filter.
func (s *NegotiationStore) List(ctx context.Context, filter negotiation.ListFilter) ([]*negotiation.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*negotiation.Negotiation
	for _, entry := range s.negotiations {
		var n negotiation.Negotiation
		if err := json.Unmarshal(entry.data, &n); err != nil {
			continue
		}

		if !matchesFilter(&n, filter) {
			continue
		}

		result = append(result, &n)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result, nil
}

// matchesFilter checks if a negotiation matches the filter criteria.
func matchesFilter(n *negotiation.Negotiation, filter negotiation.ListFilter) bool {
	if len(filter.States) > 0 {
		found := false
		for _, state := range filter.States {
			if n.State == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.Roots && n.ParentID != "" {
		return false
	}

	if filter.ParentID != "" && n.ParentID != filter.ParentID {
		return false
	}

	return true
}

// Clear removes all negotiations from the store.
func (s *NegotiationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiations = make(map[string]*negotiationEntry)
}

// Len returns the number of stored negotiations.
func (s *NegotiationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.negotiations)
}

// Ensure NegotiationStore implements negotiation.Store
var _ negotiation.Store = (*NegotiationStore)(nil)
