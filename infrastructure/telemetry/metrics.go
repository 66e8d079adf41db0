// Package telemetry provides observability infrastructure including
// OpenTelemetry metrics support for the negotiation engine.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	negotiationsStarted   metric.Int64Counter
	negotiationsCompleted metric.Int64Counter
	negotiationsFailed    metric.Int64Counter
	offersReceived        metric.Int64Counter
	lateOffers            metric.Int64Counter
	barrierTimeouts       metric.Int64Counter
	cascadeEliminations   metric.Int64Counter
	subNegotiations       metric.Int64Counter
	stateTransitions      metric.Int64Counter
	errors                metric.Int64Counter

	// Histograms
	roundDuration     metric.Float64Histogram
	synthesisDuration metric.Float64Histogram
	cascadeDuration   metric.Float64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	activeNegotiations metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter.
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Attributes are default attributes to attach to all metrics.
	Attributes []attribute.KeyValue
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/NatureBlueee/Towow-sub004",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config = DefaultMetricsConfig()
	}

	provider := otel.GetMeterProvider()
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

// initInstruments initializes all metric instruments.
func (mp *MetricsProvider) initInstruments() error {
	var err error

	mp.negotiationsStarted, err = mp.meter.Int64Counter(
		"negotiation.started",
		metric.WithDescription("Number of negotiations started"),
		metric.WithUnit("{negotiation}"),
	)
	if err != nil {
		return err
	}

	mp.negotiationsCompleted, err = mp.meter.Int64Counter(
		"negotiation.completed",
		metric.WithDescription("Number of negotiations completed"),
		metric.WithUnit("{negotiation}"),
	)
	if err != nil {
		return err
	}

	mp.negotiationsFailed, err = mp.meter.Int64Counter(
		"negotiation.failed",
		metric.WithDescription("Number of negotiations failed"),
		metric.WithUnit("{negotiation}"),
	)
	if err != nil {
		return err
	}

	mp.offersReceived, err = mp.meter.Int64Counter(
		"negotiation.offers.received",
		metric.WithDescription("Number of offers collected"),
		metric.WithUnit("{offer}"),
	)
	if err != nil {
		return err
	}

	mp.lateOffers, err = mp.meter.Int64Counter(
		"negotiation.offers.late",
		metric.WithDescription("Number of offers discarded for arriving after the barrier"),
		metric.WithUnit("{offer}"),
	)
	if err != nil {
		return err
	}

	mp.barrierTimeouts, err = mp.meter.Int64Counter(
		"negotiation.barrier.timeouts",
		metric.WithDescription("Number of barrier waits released by deadline"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		return err
	}

	mp.cascadeEliminations, err = mp.meter.Int64Counter(
		"negotiation.cascade.eliminations",
		metric.WithDescription("Number of agents eliminated by cascade tiers"),
		metric.WithUnit("{agent}"),
	)
	if err != nil {
		return err
	}

	mp.subNegotiations, err = mp.meter.Int64Counter(
		"negotiation.children.spawned",
		metric.WithDescription("Number of sub-negotiations spawned"),
		metric.WithUnit("{negotiation}"),
	)
	if err != nil {
		return err
	}

	mp.stateTransitions, err = mp.meter.Int64Counter(
		"negotiation.state.transitions",
		metric.WithDescription("Number of state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	mp.errors, err = mp.meter.Int64Counter(
		"negotiation.errors",
		metric.WithDescription("Number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	mp.roundDuration, err = mp.meter.Float64Histogram(
		"negotiation.round.duration",
		metric.WithDescription("Duration of offer rounds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.synthesisDuration, err = mp.meter.Float64Histogram(
		"negotiation.synthesis.duration",
		metric.WithDescription("Duration of synthesis calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.cascadeDuration, err = mp.meter.Float64Histogram(
		"negotiation.cascade.duration",
		metric.WithDescription("Duration of cascade runs"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.activeNegotiations, err = mp.meter.Int64UpDownCounter(
		"negotiation.active",
		metric.WithDescription("Number of active negotiations"),
		metric.WithUnit("{negotiation}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordNegotiationStarted records the start of a negotiation.
func (mp *MetricsProvider) RecordNegotiationStarted(ctx context.Context, depth int) {
	mp.negotiationsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("negotiation.depth", depth),
	))
}

// RecordNegotiationCompleted records a completed negotiation.
func (mp *MetricsProvider) RecordNegotiationCompleted(ctx context.Context, rounds int, duration time.Duration) {
	mp.negotiationsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("negotiation.rounds", rounds),
	))
}

// RecordNegotiationFailed records a failed negotiation.
func (mp *MetricsProvider) RecordNegotiationFailed(ctx context.Context, reason string) {
	mp.negotiationsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("failure.reason", reason),
	))
}

// RecordOfferReceived records one collected offer.
func (mp *MetricsProvider) RecordOfferReceived(ctx context.Context, round int, late bool) {
	attrs := []attribute.KeyValue{
		attribute.Int("negotiation.round", round),
	}
	if late {
		mp.lateOffers.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	mp.offersReceived.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBarrierTimeout records a barrier released by deadline.
func (mp *MetricsProvider) RecordBarrierTimeout(ctx context.Context, round int) {
	mp.barrierTimeouts.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("negotiation.round", round),
	))
}

// RecordCascadeTier records one cascade tier's elimination count.
func (mp *MetricsProvider) RecordCascadeTier(ctx context.Context, tier int, eliminated int) {
	mp.cascadeEliminations.Add(ctx, int64(eliminated), metric.WithAttributes(
		attribute.Int("cascade.tier", tier),
	))
}

// RecordSubNegotiationSpawned records a spawned child negotiation.
func (mp *MetricsProvider) RecordSubNegotiationSpawned(ctx context.Context, depth int) {
	mp.subNegotiations.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("negotiation.depth", depth),
	))
}

// RecordStateTransition records a state transition.
func (mp *MetricsProvider) RecordStateTransition(ctx context.Context, fromState, toState string, negotiationID string) {
	mp.stateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state.from", fromState),
		attribute.String("state.to", toState),
		attribute.String("negotiation.id", negotiationID),
	))
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.type", errorType),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRoundDuration records the duration of one offer round.
func (mp *MetricsProvider) RecordRoundDuration(ctx context.Context, duration time.Duration, round int) {
	mp.roundDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.Int("negotiation.round", round),
	))
}

// RecordSynthesisDuration records the duration of one synthesis call.
func (mp *MetricsProvider) RecordSynthesisDuration(ctx context.Context, duration time.Duration, decision string) {
	mp.synthesisDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("synthesis.decision", decision),
	))
}

// RecordCascadeDuration records the duration of one cascade run.
func (mp *MetricsProvider) RecordCascadeDuration(ctx context.Context, duration time.Duration) {
	mp.cascadeDuration.Record(ctx, float64(duration.Milliseconds()))
}

// IncrementActiveNegotiations increments the active negotiations counter.
func (mp *MetricsProvider) IncrementActiveNegotiations(ctx context.Context) {
	mp.activeNegotiations.Add(ctx, 1)
}

// DecrementActiveNegotiations decrements the active negotiations counter.
func (mp *MetricsProvider) DecrementActiveNegotiations(ctx context.Context) {
	mp.activeNegotiations.Add(ctx, -1)
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordNegotiationStarted is a no-op.
func (n *NoopMetricsProvider) RecordNegotiationStarted(ctx context.Context, depth int) {}

// RecordNegotiationCompleted is a no-op.
func (n *NoopMetricsProvider) RecordNegotiationCompleted(ctx context.Context, rounds int, duration time.Duration) {
}

// RecordNegotiationFailed is a no-op.
func (n *NoopMetricsProvider) RecordNegotiationFailed(ctx context.Context, reason string) {}

// RecordOfferReceived is a no-op.
func (n *NoopMetricsProvider) RecordOfferReceived(ctx context.Context, round int, late bool) {}

// RecordBarrierTimeout is a no-op.
func (n *NoopMetricsProvider) RecordBarrierTimeout(ctx context.Context, round int) {}

// RecordCascadeTier is a no-op.
func (n *NoopMetricsProvider) RecordCascadeTier(ctx context.Context, tier int, eliminated int) {}

// RecordSubNegotiationSpawned is a no-op.
func (n *NoopMetricsProvider) RecordSubNegotiationSpawned(ctx context.Context, depth int) {}

// RecordStateTransition is a no-op.
func (n *NoopMetricsProvider) RecordStateTransition(ctx context.Context, fromState, toState string, negotiationID string) {
}

// RecordError is a no-op.
func (n *NoopMetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
}

// RecordRoundDuration is a no-op.
func (n *NoopMetricsProvider) RecordRoundDuration(ctx context.Context, duration time.Duration, round int) {
}

// RecordSynthesisDuration is a no-op.
func (n *NoopMetricsProvider) RecordSynthesisDuration(ctx context.Context, duration time.Duration, decision string) {
}

// RecordCascadeDuration is a no-op.
func (n *NoopMetricsProvider) RecordCascadeDuration(ctx context.Context, duration time.Duration) {}

// IncrementActiveNegotiations is a no-op.
func (n *NoopMetricsProvider) IncrementActiveNegotiations(ctx context.Context) {}

// DecrementActiveNegotiations is a no-op.
func (n *NoopMetricsProvider) DecrementActiveNegotiations(ctx context.Context) {}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordNegotiationStarted(ctx context.Context, depth int)
	RecordNegotiationCompleted(ctx context.Context, rounds int, duration time.Duration)
	RecordNegotiationFailed(ctx context.Context, reason string)
	RecordOfferReceived(ctx context.Context, round int, late bool)
	RecordBarrierTimeout(ctx context.Context, round int)
	RecordCascadeTier(ctx context.Context, tier int, eliminated int)
	RecordSubNegotiationSpawned(ctx context.Context, depth int)
	RecordStateTransition(ctx context.Context, fromState, toState string, negotiationID string)
	RecordError(ctx context.Context, errorType string, details map[string]string)
	RecordRoundDuration(ctx context.Context, duration time.Duration, round int)
	RecordSynthesisDuration(ctx context.Context, duration time.Duration, decision string)
	RecordCascadeDuration(ctx context.Context, duration time.Duration)
	IncrementActiveNegotiations(ctx context.Context)
	DecrementActiveNegotiations(ctx context.Context)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = (*NoopMetricsProvider)(nil)
)
