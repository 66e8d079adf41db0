package memory

import (
	"context"
	"sync"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
)

// AgentRegistry is an in-memory implementation of agent.Registry backed by a
// static profile list. The cascade reads it fresh on every run, so updates
// between rounds are visible to the next round.
type AgentRegistry struct {
	profiles map[agent.Ref]agent.Profile
	order    []agent.Ref
	mu       sync.RWMutex
}

// NewAgentRegistry creates a registry seeded with the given profiles.
func NewAgentRegistry(profiles ...agent.Profile) *AgentRegistry {
	r := &AgentRegistry{
		profiles: make(map[agent.Ref]agent.Profile),
	}
	for _, p := range profiles {
		r.register(p)
	}
	return r
}

// Register adds or replaces a profile.
func (r *AgentRegistry) Register(p agent.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(p)
}

func (r *AgentRegistry) register(p agent.Profile) {
	if _, exists := r.profiles[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.profiles[p.ID] = p
}

// Deregister removes a profile.
func (r *AgentRegistry) Deregister(id agent.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[id]; !exists {
		return
	}
	delete(r.profiles, id)
	for i, ref := range r.order {
		if ref == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns all profiles in registration order.
func (r *AgentRegistry) List(ctx context.Context) ([]agent.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]agent.Profile, 0, len(r.order))
	for _, ref := range r.order {
		result = append(result, r.profiles[ref])
	}
	return result, nil
}

// Get retrieves a profile by id.
func (r *AgentRegistry) Get(ctx context.Context, id agent.Ref) (agent.Profile, error) {
	if err := ctx.Err(); err != nil {
		return agent.Profile{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return agent.Profile{}, agent.ErrAgentNotFound
	}
	return p, nil
}

// Len returns the number of registered profiles.
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Ensure AgentRegistry implements agent.Registry
var _ agent.Registry = (*AgentRegistry)(nil)
