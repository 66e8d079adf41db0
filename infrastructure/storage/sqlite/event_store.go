package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
)

// EventStore is a SQLite-backed implementation of event.Store.
type EventStore struct {
	db          *sql.DB
	ownsDB      bool
	subscribers map[string][]chan event.Event
	mu          sync.RWMutex
}

// NewEventStore creates a new SQLite event store with the given configuration.
func NewEventStore(cfg Config, opts ...Option) (*EventStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &EventStore{
		db:          db,
		ownsDB:      true,
		subscribers: make(map[string][]chan event.Event),
	}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewEventStoreFromDB creates an event store from an existing connection.
func NewEventStoreFromDB(db *sql.DB) (*EventStore, error) {
	s := &EventStore{
		db:          db,
		subscribers: make(map[string][]chan event.Event),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate creates the events table if it does not exist.
func (s *EventStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS negotiation_events (
			id             TEXT PRIMARY KEY,
			negotiation_id TEXT NOT NULL,
			type           TEXT NOT NULL,
			timestamp      INTEGER NOT NULL,
			payload        BLOB,
			sequence       INTEGER NOT NULL,
			version        INTEGER NOT NULL DEFAULT 1,
			UNIQUE (negotiation_id, sequence)
		);
		CREATE INDEX IF NOT EXISTS negotiation_events_stream_idx
			ON negotiation_events (negotiation_id, sequence);
	`)
	if err != nil {
		return fmt.Errorf("migrate events: %w", err)
	}
	return nil
}

// Append persists one or more events atomically.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		if events[i].NegotiationID == "" || events[i].Type == "" {
			return event.ErrInvalidEvent
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sequences := make(map[string]uint64)
	for _, e := range events {
		if _, ok := sequences[e.NegotiationID]; ok {
			continue
		}
		var maxSeq sql.NullInt64
		err := tx.QueryRowContext(ctx,
			"SELECT MAX(sequence) FROM negotiation_events WHERE negotiation_id = ?",
			e.NegotiationID,
		).Scan(&maxSeq)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if maxSeq.Valid {
			sequences[e.NegotiationID] = uint64(maxSeq.Int64)
		}
	}

	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.New().String()
		}
		sequences[events[i].NegotiationID]++
		events[i].Sequence = sequences[events[i].NegotiationID]
		if events[i].Version == 0 {
			events[i].Version = 1
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO negotiation_events (id, negotiation_id, type, timestamp, payload, sequence, version)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			events[i].ID,
			events[i].NegotiationID,
			string(events[i].Type),
			events[i].Timestamp.UnixNano(),
			[]byte(events[i].Payload),
			events[i].Sequence,
			events[i].Version,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.notifySubscribers(events)
	return nil
}

// Load retrieves all events for a negotiation in sequence order.
func (s *EventStore) Load(ctx context.Context, negotiationID string) ([]event.Event, error) {
	return s.selectEvents(ctx, `
		SELECT id, negotiation_id, type, timestamp, payload, sequence, version
		FROM negotiation_events
		WHERE negotiation_id = ?
		ORDER BY sequence ASC`, negotiationID)
}

// LoadFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadFrom(ctx context.Context, negotiationID string, fromSeq uint64) ([]event.Event, error) {
	return s.selectEvents(ctx, `
		SELECT id, negotiation_id, type, timestamp, payload, sequence, version
		FROM negotiation_events
		WHERE negotiation_id = ? AND sequence >= ?
		ORDER BY sequence ASC`, negotiationID, fromSeq)
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
	query := `
		SELECT id, negotiation_id, type, timestamp, payload, sequence, version
		FROM negotiation_events
		WHERE negotiation_id = ?`
	args := []any{negotiationID}

	if len(opts.Types) > 0 {
		placeholders := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if opts.FromTime > 0 {
		query += " AND timestamp >= ?"
		args = append(args, time.Unix(opts.FromTime, 0).UnixNano())
	}
	if opts.ToTime > 0 {
		query += " AND timestamp <= ?"
		args = append(args, time.Unix(opts.ToTime, 0).UnixNano())
	}

	query += " ORDER BY sequence ASC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit == 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	return s.selectEvents(ctx, query, args...)
}

// Count returns the number of events for a negotiation.
func (s *EventStore) Count(ctx context.Context, negotiationID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM negotiation_events WHERE negotiation_id = ?",
		negotiationID,
	).Scan(&count)
	return count, err
}

// ListNegotiations returns all negotiation ids with events in the store.
func (s *EventStore) ListNegotiations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT negotiation_id FROM negotiation_events ORDER BY negotiation_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database if this store opened it.
func (s *EventStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// selectEvents runs a query and scans the rows into events.
func (s *EventStore) selectEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		var eventType string
		var ts int64
		var payload []byte

		err := rows.Scan(&e.ID, &e.NegotiationID, &eventType, &ts, &payload, &e.Sequence, &e.Version)
		if err != nil {
			return nil, err
		}

		e.Type = event.Type(eventType)
		e.Timestamp = time.Unix(0, ts)
		e.Payload = payload
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
