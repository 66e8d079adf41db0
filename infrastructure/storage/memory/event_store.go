package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
)

// EventStore is an in-memory implementation of event.Store.
type EventStore struct {
	events      map[string][]event.Event // negotiationID -> events
	subscribers map[string][]chan event.Event
	sequences   map[string]uint64 // negotiationID -> last assigned sequence
	mu          sync.RWMutex
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events:      make(map[string][]event.Event),
		subscribers: make(map[string][]chan event.Event),
		sequences:   make(map[string]uint64),
	}
}

// Append persists one or more events atomically.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Group events by negotiation ID
	byNegotiation := make(map[string][]event.Event)
	for _, e := range events {
		if e.NegotiationID == "" || e.Type == "" {
			return event.ErrInvalidEvent
		}
		byNegotiation[e.NegotiationID] = append(byNegotiation[e.NegotiationID], e)
	}

	for negotiationID, negEvents := range byNegotiation {
		seq := s.sequences[negotiationID]

		for i := range negEvents {
			if negEvents[i].ID == "" {
				negEvents[i].ID = uuid.New().String()
			}
			seq++
			negEvents[i].Sequence = seq
		}

		s.events[negotiationID] = append(s.events[negotiationID], negEvents...)
		s.sequences[negotiationID] = seq

		// Notify subscribers without blocking the append
		if subs, ok := s.subscribers[negotiationID]; ok {
			for _, sub := range subs {
				for _, e := range negEvents {
					select {
					case sub <- e:
					default:
					}
				}
			}
		}
	}

	return nil
}

// Load retrieves all events for a negotiation in sequence order.
func (s *EventStore) Load(ctx context.Context, negotiationID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.events[negotiationID]
	if !ok {
		return []event.Event{}, nil
	}

	result := make([]event.Event, len(events))
	copy(result, events)
	return result, nil
}

// LoadFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadFrom(ctx context.Context, negotiationID string, fromSeq uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.events[negotiationID]
	if !ok {
		return []event.Event{}, nil
	}

	var result []event.Event
	for _, e := range events {
		if e.Sequence >= fromSeq {
			result = append(result, e)
		}
	}

	return result, nil
}

// Subscribe returns a channel that receives new events for a negotiation.
func (s *EventStore) Subscribe(ctx context.Context, negotiationID string) (<-chan event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan event.Event, 100)
	s.subscribers[negotiationID] = append(s.subscribers[negotiationID], ch)

	go func() {
		<-ctx.Done()
		s.unsubscribe(negotiationID, ch)
	}()

	return ch, nil
}

// unsubscribe removes a subscriber channel.
func (s *EventStore) unsubscribe(negotiationID string, ch chan event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subscribers[negotiationID]
	for i, sub := range subs {
		if sub == ch {
			s.subscribers[negotiationID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(s.subscribers[negotiationID]) == 0 {
		delete(s.subscribers, negotiationID)
	}
}

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, negotiationID string, opts event.QueryOptions) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.events[negotiationID]
	if !ok {
		return []event.Event{}, nil
	}

	var result []event.Event
	for _, e := range events {
		if !matchesQuery(e, opts) {
			continue
		}
		result = append(result, e)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []event.Event{}, nil
		}
		result = result[opts.Offset:]
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// matchesQuery checks if an event matches the query options.
func matchesQuery(e event.Event, opts event.QueryOptions) bool {
	if len(opts.Types) > 0 {
		found := false
		for _, t := range opts.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	ts := e.Timestamp.Unix()
	if opts.FromTime > 0 && ts < opts.FromTime {
		return false
	}
	if opts.ToTime > 0 && ts > opts.ToTime {
		return false
	}

	return true
}

// Count returns the number of events for a negotiation.
func (s *EventStore) Count(ctx context.Context, negotiationID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.events[negotiationID])), nil
}

// ListNegotiations returns all negotiation ids with events in the store.
func (s *EventStore) ListNegotiations(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}

	return ids, nil
}

// Clear removes all events from the store.
func (s *EventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subs := range s.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}

	s.events = make(map[string][]event.Event)
	s.subscribers = make(map[string][]chan event.Event)
	s.sequences = make(map[string]uint64)
}

// Len returns the total number of events across all negotiations.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, events := range s.events {
		count += len(events)
	}
	return count
}

// Ensure EventStore implements event.Store and event.Querier
var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)
