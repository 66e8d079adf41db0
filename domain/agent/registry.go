package agent

import (
	"context"
	"errors"
)

// Registry errors.
var (
	// ErrAgentNotFound indicates an unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")
)

// Registry is the external "all known agents" data source the cascade
// queries per invocation. It is injected, never owned or cached by the
// engine.
type Registry interface {
	// List returns the full agent population.
	List(ctx context.Context) ([]Profile, error)

	// Get returns one agent's profile.
	Get(ctx context.Context, id Ref) (Profile, error)
}
