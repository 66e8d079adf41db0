package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// NegotiationStore is a SQLite-backed implementation of negotiation.Store.
type NegotiationStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewNegotiationStore creates a new SQLite negotiation store.
func NewNegotiationStore(cfg Config, opts ...Option) (*NegotiationStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &NegotiationStore{db: db, ownsDB: true}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewNegotiationStoreFromDB creates a store from an existing connection.
func NewNegotiationStoreFromDB(db *sql.DB) (*NegotiationStore, error) {
	s := &NegotiationStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate creates the negotiations table if it does not exist.
func (s *NegotiationStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS negotiations (
			id         TEXT PRIMARY KEY,
			state      TEXT NOT NULL,
			parent_id  TEXT,
			data       BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS negotiations_parent_idx ON negotiations (parent_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate negotiations: %w", err)
	}
	return nil
}

// Save persists a new negotiation.
func (s *NegotiationStore) Save(ctx context.Context, n *negotiation.Negotiation) error {
	if n == nil || n.ID == "" {
		return negotiation.ErrInvalidState
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal negotiation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO negotiations (id, state, parent_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID,
		string(n.State),
		nullable(n.ParentID),
		data,
		n.CreatedAt.UnixNano(),
		n.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("negotiation %s already exists", n.ID)
		}
		return err
	}
	return nil
}

// Get retrieves a negotiation by id.
func (s *NegotiationStore) Get(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM negotiations WHERE id = ?", id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, negotiation.ErrNotFound
		}
		return nil, err
	}

	var n negotiation.Negotiation
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal negotiation: %w", err)
	}
	return &n, nil
}

// Update replaces the stored record for an existing negotiation.
func (s *NegotiationStore) Update(ctx context.Context, n *negotiation.Negotiation) error {
	if n == nil || n.ID == "" {
		return negotiation.ErrInvalidState
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal negotiation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE negotiations SET state = ?, parent_id = ?, data = ?, updated_at = ?
		WHERE id = ?`,
		string(n.State),
		nullable(n.ParentID),
		data,
		n.UpdatedAt.UnixNano(),
		n.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return negotiation.ErrNotFound
	}
	return nil
}

// Delete removes a negotiation by id.
func (s *NegotiationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM negotiations WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return negotiation.ErrNotFound
	}
	return nil
}

// List returns negotiations matching the filter.
func (s *NegotiationStore) List(ctx context.Context, filter negotiation.ListFilter) ([]*negotiation.Negotiation, error) {
	query := "SELECT data FROM negotiations"
	var conditions []string
	var args []any

	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, st := range filter.States {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "state IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Roots {
		conditions = append(conditions, "parent_id IS NULL")
	} else if filter.ParentID != "" {
		conditions = append(conditions, "parent_id = ?")
		args = append(args, filter.ParentID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*negotiation.Negotiation
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var n negotiation.Negotiation
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("unmarshal negotiation: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// Close closes the database if this store opened it.
func (s *NegotiationStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure NegotiationStore implements negotiation.Store.
var _ negotiation.Store = (*NegotiationStore)(nil)
