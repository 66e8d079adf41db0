package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// NegotiationStore is a PostgreSQL-backed implementation of negotiation.Store.
// The full aggregate is stored as JSONB; state and parent id are lifted into
// columns for filtering.
type NegotiationStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewNegotiationStore creates a new PostgreSQL negotiation store on an
// existing pool.
func NewNegotiationStore(pool *pgxpool.Pool, schema string) *NegotiationStore {
	return &NegotiationStore{
		pool:   pool,
		schema: schemaOrDefault(schema),
	}
}

// tableName returns the fully qualified table name.
func (s *NegotiationStore) tableName() string {
	return fmt.Sprintf("%s.negotiations", s.schema)
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

	query := fmt.Sprintf(`
		INSERT INTO %s (id, state, parent_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.tableName())

	_, err = s.pool.Exec(ctx, query,
		n.ID,
		string(n.State),
		nullable(n.ParentID),
		data,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("negotiation %s already exists", n.ID)
		}
		return wrapError(err)
	}
	return nil
}

// Get retrieves a negotiation by id.
func (s *NegotiationStore) Get(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.tableName())

	var data []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, negotiation.ErrNotFound
		}
		return nil, wrapError(err)
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

	query := fmt.Sprintf(`
		UPDATE %s SET state = $2, parent_id = $3, data = $4, updated_at = $5
		WHERE id = $1
	`, s.tableName())

	tag, err := s.pool.Exec(ctx, query,
		n.ID,
		string(n.State),
		nullable(n.ParentID),
		data,
		n.UpdatedAt,
	)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() == 0 {
		return negotiation.ErrNotFound
	}
	return nil
}

// Delete removes a negotiation by id.
func (s *NegotiationStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tableName())

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() == 0 {
		return negotiation.ErrNotFound
	}
	return nil
}

// List returns negotiations matching the filter.
func (s *NegotiationStore) List(ctx context.Context, filter negotiation.ListFilter) ([]*negotiation.Negotiation, error) {
	args := []any{}
	conditions := []string{}
	argNum := 0

	if len(filter.States) > 0 {
		argNum++
		states := make([]string, len(filter.States))
		for i, st := range filter.States {
			states[i] = string(st)
		}
		args = append(args, states)
		conditions = append(conditions, fmt.Sprintf("state = ANY($%d)", argNum))
	}
	if filter.Roots {
		conditions = append(conditions, "parent_id IS NULL")
	} else if filter.ParentID != "" {
		argNum++
		args = append(args, filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", argNum))
	}

	query := fmt.Sprintf(`SELECT data FROM %s`, s.tableName())
	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}
	query += " ORDER BY created_at ASC"

	if filter.Limit > 0 {
		argNum++
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", argNum)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var out []*negotiation.Negotiation
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, wrapError(err)
		}
		var n negotiation.Negotiation
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("unmarshal negotiation: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
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
