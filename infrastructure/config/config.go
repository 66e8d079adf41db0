// Package config provides configuration loading and parsing for the
// negotiation engine.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/policy"
)

// Configuration errors.
var (
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidFormat     = errors.New("invalid config format")
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrValidationFailed  = errors.New("config validation failed")
	ErrMissingEnvVar     = errors.New("missing environment variable")
)

// Config is the root engine configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine" json:"engine"`
	Cascade    CascadeConfig    `yaml:"cascade" json:"cascade"`
	Recursion  RecursionConfig  `yaml:"recursion" json:"recursion"`
	Resilience ResilienceConfig `yaml:"resilience" json:"resilience"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
}

// EngineConfig holds the hard bounds of every negotiation.
type EngineConfig struct {
	MaxRounds           int           `yaml:"max_rounds" json:"max_rounds"`
	MaxDepth            int           `yaml:"max_depth" json:"max_depth"`
	MaxChildren         int           `yaml:"max_children" json:"max_children"`
	BarrierDeadline     time.Duration `yaml:"barrier_deadline" json:"barrier_deadline"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout" json:"confirmation_timeout"`
	ChildTimeout        time.Duration `yaml:"child_timeout" json:"child_timeout"`
	TierTimeout         time.Duration `yaml:"tier_timeout" json:"tier_timeout"`
}

// CascadeConfig tunes the similarity tier's adaptive cut.
type CascadeConfig struct {
	KeepRatio float64 `yaml:"keep_ratio" json:"keep_ratio"`
	MinKeep   int     `yaml:"min_keep" json:"min_keep"`
	MaxKeep   int     `yaml:"max_keep" json:"max_keep"`
	Dimension int     `yaml:"dimension" json:"dimension"`
}

// RecursionConfig tunes when a gap justifies a sub-negotiation.
type RecursionConfig struct {
	MinSatisfactionUplift float64 `yaml:"min_satisfaction_uplift" json:"min_satisfaction_uplift"`
	MinStakeholderBenefit float64 `yaml:"min_stakeholder_benefit" json:"min_stakeholder_benefit"`
	MinCostBenefit        float64 `yaml:"min_cost_benefit" json:"min_cost_benefit"`
}

// ResilienceConfig tunes oracle call protection.
type ResilienceConfig struct {
	MaxConcurrent           int           `yaml:"max_concurrent" json:"max_concurrent"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout" json:"circuit_breaker_timeout"`
	RetryMaxAttempts        int           `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryInitialDelay       time.Duration `yaml:"retry_initial_delay" json:"retry_initial_delay"`
	RetryBackoffMultiplier  float64       `yaml:"retry_backoff_multiplier" json:"retry_backoff_multiplier"`
	DefaultTimeout          time.Duration `yaml:"default_timeout" json:"default_timeout"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of "memory", "redis", "badger".
	Backend string `yaml:"backend" json:"backend"`

	Redis  RedisConfig  `yaml:"redis" json:"redis"`
	Badger BadgerConfig `yaml:"badger" json:"badger"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address   string `yaml:"address" json:"address"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// BadgerConfig holds BadgerDB settings.
type BadgerConfig struct {
	Dir        string `yaml:"dir" json:"dir"`
	InMemory   bool   `yaml:"in_memory" json:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes" json:"sync_writes"`
	KeyPrefix  string `yaml:"key_prefix" json:"key_prefix"`
}

// Default returns a configuration mirroring the policy defaults.
func Default() *Config {
	bounds := policy.DefaultBounds()
	cascade := policy.DefaultCascadePolicy()
	recursion := policy.DefaultRecursionPolicy()

	return &Config{
		Engine: EngineConfig{
			MaxRounds:           bounds.MaxRounds,
			MaxDepth:            bounds.MaxDepth,
			MaxChildren:         bounds.MaxChildren,
			BarrierDeadline:     bounds.BarrierDeadline,
			ConfirmationTimeout: bounds.ConfirmationTimeout,
			ChildTimeout:        bounds.ChildTimeout,
			TierTimeout:         bounds.TierTimeout,
		},
		Cascade: CascadeConfig{
			KeepRatio: cascade.KeepRatio,
			MinKeep:   cascade.MinKeep,
			MaxKeep:   cascade.MaxKeep,
			Dimension: 256,
		},
		Recursion: RecursionConfig{
			MinSatisfactionUplift: recursion.MinSatisfactionUplift,
			MinStakeholderBenefit: recursion.MinStakeholderBenefit,
			MinCostBenefit:        recursion.MinCostBenefit,
		},
		Resilience: ResilienceConfig{
			MaxConcurrent:           10,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
			RetryMaxAttempts:        3,
			RetryInitialDelay:       100 * time.Millisecond,
			RetryBackoffMultiplier:  2.0,
			DefaultTimeout:          30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Bounds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if c.Cascade.KeepRatio <= 0 || c.Cascade.KeepRatio > 1 {
		return fmt.Errorf("%w: cascade keep_ratio must be in (0, 1]", ErrValidationFailed)
	}
	if c.Cascade.MinKeep < 1 {
		return fmt.Errorf("%w: cascade min_keep must be at least 1", ErrValidationFailed)
	}
	if c.Cascade.MaxKeep < c.Cascade.MinKeep {
		return fmt.Errorf("%w: cascade max_keep must be >= min_keep", ErrValidationFailed)
	}

	switch c.Storage.Backend {
	case "", "memory", "redis", "badger":
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrValidationFailed, c.Storage.Backend)
	}

	return nil
}

// Bounds converts the engine section to a policy.Bounds.
func (c *Config) Bounds() policy.Bounds {
	return policy.Bounds{
		MaxRounds:           c.Engine.MaxRounds,
		MaxDepth:            c.Engine.MaxDepth,
		MaxChildren:         c.Engine.MaxChildren,
		BarrierDeadline:     c.Engine.BarrierDeadline,
		ConfirmationTimeout: c.Engine.ConfirmationTimeout,
		ChildTimeout:        c.Engine.ChildTimeout,
		TierTimeout:         c.Engine.TierTimeout,
	}
}

// CascadePolicy converts the cascade section to a policy.CascadePolicy.
func (c *Config) CascadePolicy() policy.CascadePolicy {
	return policy.CascadePolicy{
		KeepRatio: c.Cascade.KeepRatio,
		MinKeep:   c.Cascade.MinKeep,
		MaxKeep:   c.Cascade.MaxKeep,
	}
}

// RecursionPolicy converts the recursion section to a policy.RecursionPolicy.
func (c *Config) RecursionPolicy() policy.RecursionPolicy {
	return policy.RecursionPolicy{
		MinSatisfactionUplift: c.Recursion.MinSatisfactionUplift,
		MinStakeholderBenefit: c.Recursion.MinStakeholderBenefit,
		MinCostBenefit:        c.Recursion.MinCostBenefit,
	}
}
