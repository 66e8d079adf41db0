// Package nats provides a NATS JetStream-backed event store. The JetStream
// client is an interface so deployments can wire any NATS client library and
// tests can run against the in-process mock.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/NatureBlueee/Towow-sub004/domain/event"
)

// Client defines the JetStream operations the store needs.
type Client interface {
	// Publish publishes a message to a subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe subscribes to a subject with a durable consumer.
	Subscribe(ctx context.Context, subject string, handler func([]byte) error) (Subscription, error)

	// GetMessages retrieves all messages from a stream for a subject.
	GetMessages(ctx context.Context, subject string) ([][]byte, error)

	// GetMessagesFrom retrieves messages from a specific sequence.
	GetMessagesFrom(ctx context.Context, subject string, fromSeq uint64) ([][]byte, error)

	// Close closes the client connection.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops the subscription.
	Unsubscribe() error
}

// EventStore implements event.Store over NATS JetStream subjects, one
// subject per negotiation stream.
type EventStore struct {
	client        Client
	subjectPrefix string
	mu            sync.RWMutex
	sequences     map[string]*uint64
}

// Config holds configuration for the NATS event store.
type Config struct {
	// Client is the JetStream client to use.
	Client Client

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix string
}

// NewEventStore creates a new NATS event store.
func NewEventStore(cfg Config) (*EventStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("nats client is required")
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "towow.events"
	}

	return &EventStore{
		client:        cfg.Client,
		subjectPrefix: prefix,
		sequences:     make(map[string]*uint64),
	}, nil
}

// Append persists one or more events.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	for i := range events {
		if events[i].NegotiationID == "" || events[i].Type == "" {
			return event.ErrInvalidEvent
		}

		seq := s.nextSequence(events[i].NegotiationID)
		events[i].Sequence = seq
		if events[i].ID == "" {
			events[i].ID = fmt.Sprintf("%s-%d", events[i].NegotiationID, seq)
		}
		if events[i].Version == 0 {
			events[i].Version = 1
		}

		data, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		subject := s.subject(events[i].NegotiationID)
		if err := s.client.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
	}

	return nil
}

// Load retrieves all events for a negotiation in sequence order.
func (s *EventStore) Load(ctx context.Context, negotiationID string) ([]event.Event, error) {
	messages, err := s.client.GetMessages(ctx, s.subject(negotiationID))
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return decodeMessages(messages, 0)
}

// LoadFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadFrom(ctx context.Context, negotiationID string, fromSeq uint64) ([]event.Event, error) {
	messages, err := s.client.GetMessagesFrom(ctx, s.subject(negotiationID), fromSeq)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return decodeMessages(messages, fromSeq)
}

// Subscribe returns a channel that receives new events for a negotiation.
func (s *EventStore) Subscribe(ctx context.Context, negotiationID string) (<-chan event.Event, error) {
	ch := make(chan event.Event, 100)

	sub, err := s.client.Subscribe(ctx, s.subject(negotiationID), func(data []byte) error {
		var evt event.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			return err
		}

		select {
		case ch <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		close(ch)
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		close(ch)
	}()

	return ch, nil
}

// Close closes the underlying client.
func (s *EventStore) Close() error {
	return s.client.Close()
}

// subject constructs the NATS subject for a negotiation stream.
func (s *EventStore) subject(negotiationID string) string {
	return s.subjectPrefix + "." + negotiationID
}

// nextSequence returns the next sequence number for a stream.
func (s *EventStore) nextSequence(negotiationID string) uint64 {
	s.mu.Lock()
	seq, ok := s.sequences[negotiationID]
	if !ok {
		var newSeq uint64
		s.sequences[negotiationID] = &newSeq
		seq = &newSeq
	}
	s.mu.Unlock()

	return atomic.AddUint64(seq, 1)
}

// decodeMessages unmarshals raw messages, dropping anything below fromSeq.
func decodeMessages(messages [][]byte, fromSeq uint64) ([]event.Event, error) {
	events := make([]event.Event, 0, len(messages))
	for _, data := range messages {
		var evt event.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		if evt.Sequence >= fromSeq {
			events = append(events, evt)
		}
	}
	return events, nil
}

// Ensure EventStore implements event.Store.
var _ event.Store = (*EventStore)(nil)

// MockClient is an in-process Client for tests.
type MockClient struct {
	mu       sync.RWMutex
	messages map[string][][]byte
	subs     map[string][]func([]byte) error
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		messages: make(map[string][][]byte),
		subs:     make(map[string][]func([]byte) error),
	}
}

// Publish implements Client.
func (c *MockClient) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.Lock()
	c.messages[subject] = append(c.messages[subject], data)
	handlers := append([]func([]byte) error(nil), c.subs[subject]...)
	c.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(data); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe implements Client.
func (c *MockClient) Subscribe(_ context.Context, subject string, handler func([]byte) error) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs[subject] = append(c.subs[subject], handler)

	return &mockSubscription{
		client:  c,
		subject: subject,
		handler: handler,
	}, nil
}

// GetMessages implements Client.
func (c *MockClient) GetMessages(_ context.Context, subject string) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result, nil
}

// GetMessagesFrom implements Client. The store filters by sequence.
func (c *MockClient) GetMessagesFrom(ctx context.Context, subject string, _ uint64) ([][]byte, error) {
	return c.GetMessages(ctx, subject)
}

// Close implements Client.
func (c *MockClient) Close() error {
	return nil
}

// MessageCount returns the number of messages for a subject.
func (c *MockClient) MessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// Ensure MockClient implements Client.
var _ Client = (*MockClient)(nil)

type mockSubscription struct {
	client  *MockClient
	subject string
	handler func([]byte) error
}

func (s *mockSubscription) Unsubscribe() error {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	handlers := s.client.subs[s.subject]
	for i, h := range handlers {
		if fmt.Sprintf("%p", h) == fmt.Sprintf("%p", s.handler) {
			s.client.subs[s.subject] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	return nil
}
