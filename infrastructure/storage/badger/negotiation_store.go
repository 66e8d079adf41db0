package badger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// NegotiationStore is a BadgerDB-backed implementation of negotiation.Store.
type NegotiationStore struct {
	db        *badger.DB
	keyPrefix string
	ownsDB    bool
}

// NewNegotiationStore creates a new BadgerDB negotiation store.
func NewNegotiationStore(cfg Config, opts ...Option) (*NegotiationStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	return &NegotiationStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		ownsDB:    true,
	}, nil
}

// NewNegotiationStoreFromDB creates a store from an existing database. The
// caller keeps ownership of the database handle.
func NewNegotiationStoreFromDB(db *badger.DB, keyPrefix string) *NegotiationStore {
	return &NegotiationStore{
		db:        db,
		keyPrefix: keyPrefix,
	}
}

func (s *NegotiationStore) recordKey(id string) []byte {
	return []byte(s.keyPrefix + "negotiation:" + id)
}

// Save persists a new negotiation.
func (s *NegotiationStore) Save(ctx context.Context, n *negotiation.Negotiation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.ID == "" {
		return negotiation.ErrInvalidState
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.recordKey(n.ID), data)
	})
}

// Get retrieves a negotiation by id.
func (s *NegotiationStore) Get(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var n negotiation.Negotiation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.recordKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return negotiation.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		})
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Update replaces the stored record for an existing negotiation.
func (s *NegotiationStore) Update(ctx context.Context, n *negotiation.Negotiation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(s.recordKey(n.ID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return negotiation.ErrNotFound
			}
			return err
		}
		return txn.Set(s.recordKey(n.ID), data)
	})
}

// Delete removes a negotiation by id.
func (s *NegotiationStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(s.recordKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return negotiation.ErrNotFound
			}
			return err
		}
		return txn.Delete(s.recordKey(id))
	})
}

// List returns negotiations matching the filter.
func (s *NegotiationStore) List(ctx context.Context, filter negotiation.ListFilter) ([]*negotiation.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(s.keyPrefix + "negotiation:")
	var result []*negotiation.Negotiation

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var n negotiation.Negotiation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			})
			if err != nil {
				continue
			}

			if !matchesFilter(&n, filter) {
				continue
			}

			result = append(result, &n)
			if filter.Limit > 0 && len(result) >= filter.Limit {
				return nil
			}
		}

		return nil
	})

	return result, err
}

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

// Close closes the database when this store owns it.
func (s *NegotiationStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Ensure NegotiationStore implements negotiation.Store
var _ negotiation.Store = (*NegotiationStore)(nil)
