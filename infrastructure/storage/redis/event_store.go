package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
)

// EventStore is a Redis-backed implementation of event.Store. Events live in
// one list per negotiation; sequences come from a per-negotiation counter so
// appends remain gap-free under concurrent writers. Live delivery rides on
// Redis pub/sub.
type EventStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewEventStore creates a new Redis event store with the given configuration.
func NewEventStore(cfg Config, opts ...ConfigOption) (*EventStore, error) {
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

	return &EventStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewEventStoreFromClient creates an event store from an existing client.
func NewEventStoreFromClient(client *redis.Client, keyPrefix string) *EventStore {
	return &EventStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *EventStore) eventsKey(negotiationID string) string {
	return s.keyPrefix + "events:" + negotiationID
}

func (s *EventStore) seqKey(negotiationID string) string {
	return s.keyPrefix + "seq:" + negotiationID
}

func (s *EventStore) channelKey(negotiationID string) string {
	return s.keyPrefix + "stream:" + negotiationID
}

func (s *EventStore) indexKey() string {
	return s.keyPrefix + "negotiations"
}

// Append persists one or more events atomically per negotiation.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	byNegotiation := make(map[string][]event.Event)
	for _, e := range events {
		if e.NegotiationID == "" || e.Type == "" {
			return event.ErrInvalidEvent
		}
		byNegotiation[e.NegotiationID] = append(byNegotiation[e.NegotiationID], e)
	}

	for negotiationID, negEvents := range byNegotiation {
		// Reserve a contiguous sequence block for the batch.
		end, err := s.client.IncrBy(ctx, s.seqKey(negotiationID), int64(len(negEvents))).Result()
		if err != nil {
			return fmt.Errorf("reserve sequences: %w", err)
		}
		seq := uint64(end) - uint64(len(negEvents)) // #nosec G115 -- counter starts at zero

		payloads := make([]interface{}, 0, len(negEvents))
		for i := range negEvents {
			if negEvents[i].ID == "" {
				negEvents[i].ID = uuid.New().String()
			}
			seq++
			negEvents[i].Sequence = seq

			data, err := json.Marshal(negEvents[i])
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
			payloads = append(payloads, data)
		}

		pipe := s.client.TxPipeline()
		pipe.RPush(ctx, s.eventsKey(negotiationID), payloads...)
		pipe.SAdd(ctx, s.indexKey(), negotiationID)
		for _, p := range payloads {
			pipe.Publish(ctx, s.channelKey(negotiationID), p)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("append events: %w", err)
		}
	}

	return nil
}

// Load retrieves all events for a negotiation in sequence order.
func (s *EventStore) Load(ctx context.Context, negotiationID string) ([]event.Event, error) {
	return s.loadRange(ctx, negotiationID, 0, -1)
}

// LoadFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadFrom(ctx context.Context, negotiationID string, fromSeq uint64) ([]event.Event, error) {
	events, err := s.loadRange(ctx, negotiationID, 0, -1)
	if err != nil {
		return nil, err
	}

	var result []event.Event
	for _, e := range events {
		if e.Sequence >= fromSeq {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *EventStore) loadRange(ctx context.Context, negotiationID string, start, stop int64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.client.LRange(ctx, s.eventsKey(negotiationID), start, stop).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []event.Event{}, nil
		}
		return nil, fmt.Errorf("load events: %w", err)
	}

	result := make([]event.Event, 0, len(raw))
	for _, item := range raw {
		var e event.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		result = append(result, e)
	}
	return result, nil
}

// Subscribe returns a channel that receives new events for a negotiation.
func (s *EventStore) Subscribe(ctx context.Context, negotiationID string) (<-chan event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pubsub := s.client.Subscribe(ctx, s.channelKey(negotiationID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan event.Event, 100)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var e event.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	}()

	return out, nil
}

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, negotiationID string, opts event.QueryOptions) ([]event.Event, error) {
	events, err := s.Load(ctx, negotiationID)
	if err != nil {
		return nil, err
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

	n, err := s.client.LLen(ctx, s.eventsKey(negotiationID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ListNegotiations returns all negotiation ids with events in the store.
func (s *EventStore) ListNegotiations(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	return ids, nil
}

// Close closes the Redis connection.
func (s *EventStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *EventStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure EventStore implements event.Store and event.Querier
var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)
