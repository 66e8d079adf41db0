package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/NatureBlueee/Towow-sub004/infrastructure/config"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/storage/badger"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/storage/redis"
	"github.com/NatureBlueee/Towow-sub004/interfaces/api"
)

// buildStores constructs the configured persistence backend and returns the
// engine options wiring it in, plus the resources to close after the run.
// The memory backend needs neither: it is the engine's default.
func buildStores(cfg *config.Config) ([]api.Option, []io.Closer, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return nil, nil, nil

	case "redis":
		rc := redis.DefaultConfig()
		if cfg.Storage.Redis.Address != "" {
			rc.Address = cfg.Storage.Redis.Address
		}
		rc.Password = cfg.Storage.Redis.Password
		rc.DB = cfg.Storage.Redis.DB
		if cfg.Storage.Redis.KeyPrefix != "" {
			rc.KeyPrefix = cfg.Storage.Redis.KeyPrefix
		}

		negStore, err := redis.NewNegotiationStore(rc)
		if err != nil {
			return nil, nil, fmt.Errorf("redis negotiation store: %w", err)
		}
		evtStore, err := redis.NewEventStore(rc)
		if err != nil {
			_ = negStore.Close()
			return nil, nil, fmt.Errorf("redis event store: %w", err)
		}
		opts := []api.Option{
			api.WithNegotiationStore(negStore),
			api.WithEventStore(evtStore),
		}
		return opts, []io.Closer{negStore, evtStore}, nil

	case "badger":
		bc := badger.DefaultConfig()
		bc.Dir = cfg.Storage.Badger.Dir
		bc.InMemory = cfg.Storage.Badger.InMemory
		bc.SyncWrites = cfg.Storage.Badger.SyncWrites
		bc.KeyPrefix = cfg.Storage.Badger.KeyPrefix

		// Each store owns its database, so on disk they get separate
		// directories under the configured root.
		negCfg, evtCfg := bc, bc
		if !bc.InMemory {
			negCfg.Dir = filepath.Join(bc.Dir, "negotiations")
			evtCfg.Dir = filepath.Join(bc.Dir, "events")
		}

		negStore, err := badger.NewNegotiationStore(negCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("badger negotiation store: %w", err)
		}
		evtStore, err := badger.NewEventStore(evtCfg)
		if err != nil {
			_ = negStore.Close()
			return nil, nil, fmt.Errorf("badger event store: %w", err)
		}
		opts := []api.Option{
			api.WithNegotiationStore(negStore),
			api.WithEventStore(evtStore),
		}
		return opts, []io.Closer{negStore, evtStore}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
