package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
)

// EventStore is a PostgreSQL-backed implementation of event.Store.
type EventStore struct {
	pool        *pgxpool.Pool
	schema      string
	subscribers map[string][]chan event.Event
	mu          sync.RWMutex
}

// NewEventStore creates a new PostgreSQL event store on an existing pool.
func NewEventStore(pool *pgxpool.Pool, schema string) *EventStore {
	return &EventStore{
		pool:        pool,
		schema:      schemaOrDefault(schema),
		subscribers: make(map[string][]chan event.Event),
	}
}

// tableName returns the fully qualified table name.
func (s *EventStore) tableName() string {
	return fmt.Sprintf("%s.negotiation_events", s.schema)
}

// Append persists one or more events atomically. Sequence numbers are
// assigned inside the transaction, so concurrent appenders to the same
// stream never interleave.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		if events[i].NegotiationID == "" || events[i].Type == "" {
			return event.ErrInvalidEvent
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sequences := make(map[string]uint64)
	for _, e := range events {
		if _, ok := sequences[e.NegotiationID]; ok {
			continue
		}
		var maxSeq *uint64
		err := tx.QueryRow(ctx,
			fmt.Sprintf("SELECT MAX(sequence) FROM %s WHERE negotiation_id = $1", s.tableName()),
			e.NegotiationID,
		).Scan(&maxSeq)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return wrapError(err)
		}
		if maxSeq != nil {
			sequences[e.NegotiationID] = *maxSeq
		}
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, negotiation_id, type, timestamp, payload, sequence, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.tableName())

	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.New().String()
		}
		sequences[events[i].NegotiationID]++
		events[i].Sequence = sequences[events[i].NegotiationID]
		if events[i].Version == 0 {
			events[i].Version = 1
		}

		_, err := tx.Exec(ctx, insertQuery,
			events[i].ID,
			events[i].NegotiationID,
			string(events[i].Type),
			events[i].Timestamp,
			events[i].Payload,
			events[i].Sequence,
			events[i].Version,
		)
		if err != nil {
			return wrapError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError(err)
	}

	s.notifySubscribers(events)
	return nil
}

// Load retrieves all events for a negotiation in sequence order.
func (s *EventStore) Load(ctx context.Context, negotiationID string) ([]event.Event, error) {
	query := fmt.Sprintf(`
		SELECT id, negotiation_id, type, timestamp, payload, sequence, version
		FROM %s
		WHERE negotiation_id = $1
		ORDER BY sequence ASC
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, negotiationID)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LoadFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadFrom(ctx context.Context, negotiationID string, fromSeq uint64) ([]event.Event, error) {
	query := fmt.Sprintf(`
		SELECT id, negotiation_id, type, timestamp, payload, sequence, version
		FROM %s
		WHERE negotiation_id = $1 AND sequence >= $2
		ORDER BY sequence ASC
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, negotiationID, fromSeq)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Subscribe returns a channel that receives new events for a negotiation.
func (s *EventStore) Subscribe(ctx context.Context, negotiationID string) (<-chan event.Event, error) {
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

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, negotiationID string, opts event.QueryOptions) ([]event.Event, error) {
	query, args := s.buildQuerySQL(negotiationID, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Count returns the number of events for a negotiation.
func (s *EventStore) Count(ctx context.Context, negotiationID string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE negotiation_id = $1`, s.tableName())

	var count int64
	if err := s.pool.QueryRow(ctx, query, negotiationID).Scan(&count); err != nil {
		return 0, wrapError(err)
	}
	return count, nil
}

// ListNegotiations returns all negotiation ids with events in the store.
func (s *EventStore) ListNegotiations(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT negotiation_id FROM %s ORDER BY negotiation_id`, s.tableName())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapError(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// buildQuerySQL constructs the SELECT query for querying events.
func (s *EventStore) buildQuerySQL(negotiationID string, opts event.QueryOptions) (string, []any) {
	args := []any{negotiationID}
	argNum := 1
	conditions := []string{"negotiation_id = $1"}

	if len(opts.Types) > 0 {
		argNum++
		types := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		conditions = append(conditions, fmt.Sprintf("type = ANY($%d)", argNum))
	}

	if opts.FromTime > 0 {
		argNum++
		args = append(args, opts.FromTime)
		conditions = append(conditions, fmt.Sprintf("EXTRACT(EPOCH FROM timestamp) >= $%d", argNum))
	}
	if opts.ToTime > 0 {
		argNum++
		args = append(args, opts.ToTime)
		conditions = append(conditions, fmt.Sprintf("EXTRACT(EPOCH FROM timestamp) <= $%d", argNum))
	}

	query := fmt.Sprintf(`
		SELECT id, negotiation_id, type, timestamp, payload, sequence, version
		FROM %s
		WHERE %s
		ORDER BY sequence ASC
	`, s.tableName(), joinConditions(conditions))

	if opts.Limit > 0 {
		argNum++
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", argNum)
	}
	if opts.Offset > 0 {
		argNum++
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", argNum)
	}

	return query, args
}

// joinConditions joins SQL conditions with AND.
func joinConditions(conditions []string) string {
	result := ""
	for i, c := range conditions {
		if i > 0 {
			result += " AND "
		}
		result += c
	}
	return result
}

// scanEvents scans rows into Event structs.
func scanEvents(rows pgx.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var e event.Event
		var eventType string

		err := rows.Scan(
			&e.ID,
			&e.NegotiationID,
			&eventType,
			&e.Timestamp,
			&e.Payload,
			&e.Sequence,
			&e.Version,
		)
		if err != nil {
			return nil, err
		}

		e.Type = event.Type(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

// notifySubscribers sends events to all subscribers.
func (s *EventStore) notifySubscribers(events []event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range events {
		for _, ch := range s.subscribers[e.NegotiationID] {
			select {
			case ch <- e:
			default:
				// Channel full, skip
			}
		}
	}
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

// Ensure EventStore implements event.Store and event.Querier.
var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)
