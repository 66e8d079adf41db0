package application

import (
	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/event"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/domain/policy"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/resilience"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/telemetry"
)

// Option configures the engine.
type Option func(*EngineConfig)

// WithRegistry sets the agent registry.
func WithRegistry(r agent.Registry) Option {
	return func(c *EngineConfig) {
		c.Registry = r
	}
}

// WithFormulation sets the formulation oracle.
func WithFormulation(f oracle.Formulation) Option {
	return func(c *EngineConfig) {
		c.Formulation = f
	}
}

// WithEncoder sets the hypervector encoder.
func WithEncoder(e oracle.Encoder) Option {
	return func(c *EngineConfig) {
		c.Encoder = e
	}
}

// WithMembership sets the first-tier membership filter.
func WithMembership(m oracle.Membership) Option {
	return func(c *EngineConfig) {
		c.Membership = m
	}
}

// WithJudge wires the optional final cascade tier.
func WithJudge(j oracle.Judge) Option {
	return func(c *EngineConfig) {
		c.Judge = j
	}
}

// WithOfferOracle sets the offer oracle.
func WithOfferOracle(o oracle.Offer) Option {
	return func(c *EngineConfig) {
		c.OfferOracle = o
	}
}

// WithSynthesis sets the synthesis oracle.
func WithSynthesis(s oracle.Synthesis) Option {
	return func(c *EngineConfig) {
		c.Synthesis = s
	}
}

// WithConfirmationSink replaces the default manual confirmation sink. With a
// custom sink, SubmitConfirmation on the engine becomes a no-op.
func WithConfirmationSink(s oracle.ConfirmationSink) Option {
	return func(c *EngineConfig) {
		c.ConfirmationSink = s
	}
}

// WithBounds sets the engine bounds.
func WithBounds(b policy.Bounds) Option {
	return func(c *EngineConfig) {
		c.Bounds = b
	}
}

// WithCascadePolicy sets the cascade keep policy.
func WithCascadePolicy(p policy.CascadePolicy) Option {
	return func(c *EngineConfig) {
		c.CascadePolicy = p
	}
}

// WithRecursionPolicy sets the recursion thresholds.
func WithRecursionPolicy(p policy.RecursionPolicy) Option {
	return func(c *EngineConfig) {
		c.RecursionPolicy = p
	}
}

// WithNegotiationStore sets the negotiation store.
func WithNegotiationStore(s negotiation.Store) Option {
	return func(c *EngineConfig) {
		c.NegotiationStore = s
	}
}

// WithEventStore sets the event store.
func WithEventStore(s event.Store) Option {
	return func(c *EngineConfig) {
		c.EventStore = s
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *EngineConfig) {
		c.Metrics = m
	}
}

// WithResilience sets the oracle executor configuration.
func WithResilience(cfg resilience.Config) Option {
	return func(c *EngineConfig) {
		c.Resilience = cfg
	}
}

// NewEngineWithOptions creates an engine using functional options.
func NewEngineWithOptions(opts ...Option) (*Engine, error) {
	config := EngineConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	return NewEngine(config)
}
