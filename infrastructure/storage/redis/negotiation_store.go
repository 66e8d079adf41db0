package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// NegotiationStore is a Redis-backed implementation of negotiation.Store.
// Records are JSON blobs keyed by negotiation id, with a set index for
// listing.
type NegotiationStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewNegotiationStore creates a new Redis negotiation store.
func NewNegotiationStore(cfg Config, opts ...ConfigOption) (*NegotiationStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &NegotiationStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewNegotiationStoreFromClient creates a store from an existing client.
func NewNegotiationStoreFromClient(client *redis.Client, keyPrefix string) *NegotiationStore {
	return &NegotiationStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *NegotiationStore) recordKey(id string) string {
	return s.keyPrefix + "negotiation:" + id
}

func (s *NegotiationStore) indexKey() string {
	return s.keyPrefix + "negotiation_index"
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
		return fmt.Errorf("marshal negotiation: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(n.ID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), n.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save negotiation: %w", err)
	}
	return nil
}

// Get retrieves a negotiation by id.
func (s *NegotiationStore) Get(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, negotiation.ErrNotFound
		}
		return nil, fmt.Errorf("get negotiation: %w", err)
	}

	var n negotiation.Negotiation
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal negotiation: %w", err)
	}
	return &n, nil
}

// Update replaces the stored record for an existing negotiation.
func (s *NegotiationStore) Update(ctx context.Context, n *negotiation.Negotiation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exists, err := s.client.Exists(ctx, s.recordKey(n.ID)).Result()
	if err != nil {
		return fmt.Errorf("check negotiation: %w", err)
	}
	if exists == 0 {
		return negotiation.ErrNotFound
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal negotiation: %w", err)
	}

	if err := s.client.Set(ctx, s.recordKey(n.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("update negotiation: %w", err)
	}
	return nil
}

// Delete removes a negotiation by id.
func (s *NegotiationStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	removed, err := s.client.Del(ctx, s.recordKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete negotiation: %w", err)
	}
	if removed == 0 {
		return negotiation.ErrNotFound
	}
	return s.client.SRem(ctx, s.indexKey(), id).Err()
}

// List returns negotiations matching the filter.
func (s *NegotiationStore) List(ctx context.Context, filter negotiation.ListFilter) ([]*negotiation.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}

	var result []*negotiation.Negotiation
	for _, id := range ids {
		n, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, negotiation.ErrNotFound) {
				continue
			}
			return nil, err
		}

		if !matchesFilter(n, filter) {
			continue
		}

		result = append(result, n)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result, nil
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

// Close closes the Redis connection.
func (s *NegotiationStore) Close() error {
	return s.client.Close()
}

// Ensure NegotiationStore implements negotiation.Store
var _ negotiation.Store = (*NegotiationStore)(nil)
