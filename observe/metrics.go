package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies a cache lookup for metrics purposes.
type Outcome string

const (
	// OutcomeHit is a live entry returned from the store.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss is an absent or expired entry; a computation follows.
	OutcomeMiss Outcome = "miss"
	// OutcomeJoin is a follower attaching to an in-flight computation.
	OutcomeJoin Outcome = "join"
)

// Metrics records cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; never block the cache's hot path.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one lookup with its outcome.
	RecordLookup(ctx context.Context, cache string, outcome Outcome)

	// RecordEvictions records n entries removed by capacity or expiry.
	RecordEvictions(ctx context.Context, cache string, n int64)

	// RecordCompute records one computation with duration and error status.
	RecordCompute(ctx context.Context, cache string, duration time.Duration, err error)
}

// metricsImpl is the OpenTelemetry implementation of Metrics.
type metricsImpl struct {
	lookups      metric.Int64Counter
	evictions    metric.Int64Counter
	computeErrs  metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"memo.lookups",
		metric.WithDescription("Total number of cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"memo.evictions",
		metric.WithDescription("Total number of entries evicted by capacity or expiry"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	computeErrs, err := meter.Int64Counter(
		"memo.compute.errors",
		metric.WithDescription("Total number of failed computations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"memo.compute.duration_ms",
		metric.WithDescription("Computation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		evictions:    evictions,
		computeErrs:  computeErrs,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, cache string, outcome Outcome) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.name", cache),
		attribute.String("outcome", string(outcome)),
	))
}

func (m *metricsImpl) RecordEvictions(ctx context.Context, cache string, n int64) {
	m.evictions.Add(ctx, n, metric.WithAttributes(
		attribute.String("cache.name", cache),
	))
}

func (m *metricsImpl) RecordCompute(ctx context.Context, cache string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("cache.name", cache))
	if err != nil {
		m.computeErrs.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// nopMetrics records nothing.
type nopMetrics struct{}

// NewNopMetrics returns a Metrics that records nothing.
func NewNopMetrics() Metrics {
	return nopMetrics{}
}

func (nopMetrics) RecordLookup(context.Context, string, Outcome)               {}
func (nopMetrics) RecordEvictions(context.Context, string, int64)              {}
func (nopMetrics) RecordCompute(context.Context, string, time.Duration, error) {}

var _ Metrics = (*metricsImpl)(nil)
var _ Metrics = nopMetrics{}
