package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records engine measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one documentation lookup and its cache state
	// (miss, hit_fresh, hit_stale, unavailable).
	RecordLookup(ctx context.Context, state string)

	// RecordFetch records one upstream fetch with duration and error class
	// (empty on success).
	RecordFetch(ctx context.Context, duration time.Duration, errClass string)

	// RecordRefresh records one background refresh outcome
	// (ok, dropped, failed).
	RecordRefresh(ctx context.Context, outcome string)

	// RecordQueueDepth records the refresh queue depth after a change.
	RecordQueueDepth(ctx context.Context, depth int)

	// RecordTruncation records that context assembly truncated or dropped
	// artifacts for an agent.
	RecordTruncation(ctx context.Context, agentID string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	lookupCount   metric.Int64Counter
	fetchCount    metric.Int64Counter
	fetchDuration metric.Float64Histogram
	refreshCount  metric.Int64Counter
	queueDepth    metric.Int64Gauge
	truncations   metric.Int64Counter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	lookupCount, err := meter.Int64Counter(
		"docs.lookup.total",
		metric.WithDescription("Total number of documentation lookups by cache state"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	fetchCount, err := meter.Int64Counter(
		"docs.fetch.total",
		metric.WithDescription("Total number of upstream fetches by error class"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"docs.fetch.duration_ms",
		metric.WithDescription("Upstream fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	refreshCount, err := meter.Int64Counter(
		"docs.refresh.total",
		metric.WithDescription("Total number of background refresh tasks by outcome"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Gauge(
		"docs.refresh.queue_depth",
		metric.WithDescription("Current depth of the refresh queue"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	truncations, err := meter.Int64Counter(
		"docs.context.truncations",
		metric.WithDescription("Context assemblies that truncated or dropped artifacts"),
		metric.WithUnit("{assembly}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookupCount:   lookupCount,
		fetchCount:    fetchCount,
		fetchDuration: fetchDuration,
		refreshCount:  refreshCount,
		queueDepth:    queueDepth,
		truncations:   truncations,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, state string) {
	m.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

func (m *metricsImpl) RecordFetch(ctx context.Context, duration time.Duration, errClass string) {
	opt := metric.WithAttributes(attribute.String("error", errClass))
	m.fetchCount.Add(ctx, 1, opt)
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRefresh(ctx context.Context, outcome string) {
	m.refreshCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metricsImpl) RecordQueueDepth(ctx context.Context, depth int) {
	m.queueDepth.Record(ctx, int64(depth))
}

func (m *metricsImpl) RecordTruncation(ctx context.Context, agentID string) {
	m.truncations.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentID)))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordLookup(ctx context.Context, state string)                           {}
func (m *noopMetrics) RecordFetch(ctx context.Context, duration time.Duration, errClass string) {}
func (m *noopMetrics) RecordRefresh(ctx context.Context, outcome string)                        {}
func (m *noopMetrics) RecordQueueDepth(ctx context.Context, depth int)                          {}
func (m *noopMetrics) RecordTruncation(ctx context.Context, agentID string)                     {}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = (*noopMetrics)(nil)
)
