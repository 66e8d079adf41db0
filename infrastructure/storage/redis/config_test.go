package redis

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Address != "localhost:6379" {
		t.Errorf("Address = %s, want localhost:6379", cfg.Address)
	}
	if cfg.Password != "" {
		t.Errorf("Password = %s, want empty", cfg.Password)
	}
	if cfg.DB != 0 {
		t.Errorf("DB = %d, want 0", cfg.DB)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want %v", cfg.DialTimeout, 5*time.Second)
	}
	if cfg.ReadTimeout != 3*time.Second {
		t.Errorf("ReadTimeout = %v, want %v", cfg.ReadTimeout, 3*time.Second)
	}
	if cfg.WriteTimeout != 3*time.Second {
		t.Errorf("WriteTimeout = %v, want %v", cfg.WriteTimeout, 3*time.Second)
	}
	if cfg.PoolSize != 10 {
		t.Errorf("PoolSize = %d, want 10", cfg.PoolSize)
	}
	if cfg.MinIdleConns != 2 {
		t.Errorf("MinIdleConns = %d, want 2", cfg.MinIdleConns)
	}
	if cfg.KeyPrefix != "towow:" {
		t.Errorf("KeyPrefix = %s, want towow:", cfg.KeyPrefix)
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	opts := []ConfigOption{
		WithAddress("redis.prod.example.com:6380"),
		WithPassword("production-secret"),
		WithDB(3),
		WithKeyPrefix("prod:towow:"),
		WithPoolSize(25),
		WithTimeouts(10*time.Second, 5*time.Second, 5*time.Second),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Address != "redis.prod.example.com:6380" {
		t.Errorf("Address = %s, want redis.prod.example.com:6380", cfg.Address)
	}
	if cfg.Password != "production-secret" {
		t.Errorf("Password = %s, want production-secret", cfg.Password)
	}
	if cfg.DB != 3 {
		t.Errorf("DB = %d, want 3", cfg.DB)
	}
	if cfg.KeyPrefix != "prod:towow:" {
		t.Errorf("KeyPrefix = %s, want prod:towow:", cfg.KeyPrefix)
	}
	if cfg.PoolSize != 25 {
		t.Errorf("PoolSize = %d, want 25", cfg.PoolSize)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Errorf("DialTimeout = %v, want 10s", cfg.DialTimeout)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 5*time.Second {
		t.Errorf("WriteTimeout = %v, want 5s", cfg.WriteTimeout)
	}
}

func TestConfigOption_OverrideOrder(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	opts := []ConfigOption{
		WithAddress("first.example.com:6379"),
		WithAddress("second.example.com:6379"),
		WithAddress("final.example.com:6379"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Last option wins.
	if cfg.Address != "final.example.com:6379" {
		t.Errorf("Address = %s, want final.example.com:6379", cfg.Address)
	}
}

func TestEventStore_Keys(t *testing.T) {
	t.Parallel()

	s := NewEventStoreFromClient(nil, "towow:")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"events key", s.eventsKey("neg-1"), "towow:events:neg-1"},
		{"sequence key", s.seqKey("neg-1"), "towow:seq:neg-1"},
		{"channel key", s.channelKey("neg-1"), "towow:stream:neg-1"},
		{"index key", s.indexKey(), "towow:negotiations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("key = %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestEventStore_Keys_EmptyPrefix(t *testing.T) {
	t.Parallel()

	s := NewEventStoreFromClient(nil, "")

	if got := s.eventsKey("neg-1"); got != "events:neg-1" {
		t.Errorf("eventsKey() = %s, want events:neg-1", got)
	}
	if got := s.indexKey(); got != "negotiations" {
		t.Errorf("indexKey() = %s, want negotiations", got)
	}
}

func TestNegotiationStore_Keys(t *testing.T) {
	t.Parallel()

	s := NewNegotiationStoreFromClient(nil, "towow:")

	if got := s.recordKey("neg-1"); got != "towow:negotiation:neg-1" {
		t.Errorf("recordKey() = %s, want towow:negotiation:neg-1", got)
	}
	if got := s.indexKey(); got != "towow:negotiation_index" {
		t.Errorf("indexKey() = %s, want towow:negotiation_index", got)
	}
}
