// Package observe provides application-wide observability primitives for
// loomgraph: OpenTelemetry metrics, distributed tracing, and structured
// logging helpers tied together through trace context.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all loomgraph metrics.
const meterName = "github.com/arlobrandt/loomgraph"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// StageDuration tracks the latency of a single StagedAgent stage. Use
	// with attributes: attribute.String("stage", "segment"|"relate"|"decide"),
	// attribute.String("status", "ok"|"error").
	StageDuration metric.Float64Histogram

	// CycleDuration tracks end-to-end ChunkProcessor.Process latency.
	CycleDuration metric.Float64Histogram

	// ProjectionDuration tracks MarkdownProjector.Project latency.
	ProjectionDuration metric.Float64Histogram

	// RewriteDuration tracks a single background node rewrite's latency.
	RewriteDuration metric.Float64Histogram

	// --- Counters ---

	// NodesCreated counts CREATE decisions applied by MutationApplier.
	NodesCreated metric.Int64Counter

	// NodesAppended counts APPEND decisions applied by MutationApplier.
	NodesAppended metric.Int64Counter

	// DecisionsSkipped counts decisions dropped because resolve_name_to_id
	// found no match. Use with attribute: attribute.String("reason", ...).
	DecisionsSkipped metric.Int64Counter

	// RewritesCompleted counts successful background node rewrites.
	RewritesCompleted metric.Int64Counter

	// RewritesFailed counts background rewrites dropped after failure.
	RewritesFailed metric.Int64Counter

	// FuzzyMatches counts name resolutions won by fuzzy match rather than
	// an exact or case-insensitive match.
	FuzzyMatches metric.Int64Counter

	// --- Error counters ---

	// LLMErrors counts failed call_structured invocations. Use with
	// attribute: attribute.String("stage", ...).
	LLMErrors metric.Int64Counter

	// --- Gauges ---

	// DirtyNodes tracks the number of node ids currently pending projection.
	DirtyNodes metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries, in seconds.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("loomgraph.stage.duration",
		metric.WithDescription("Latency of a single StagedAgent stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CycleDuration, err = m.Float64Histogram("loomgraph.cycle.duration",
		metric.WithDescription("Latency of a full ChunkProcessor.Process cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProjectionDuration, err = m.Float64Histogram("loomgraph.projection.duration",
		metric.WithDescription("Latency of MarkdownProjector.Project."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RewriteDuration, err = m.Float64Histogram("loomgraph.rewrite.duration",
		metric.WithDescription("Latency of a single background node rewrite."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.NodesCreated, err = m.Int64Counter("loomgraph.nodes.created",
		metric.WithDescription("Total nodes created by MutationApplier."),
	); err != nil {
		return nil, err
	}
	if met.NodesAppended, err = m.Int64Counter("loomgraph.nodes.appended",
		metric.WithDescription("Total append mutations applied."),
	); err != nil {
		return nil, err
	}
	if met.DecisionsSkipped, err = m.Int64Counter("loomgraph.decisions.skipped",
		metric.WithDescription("Total decisions dropped due to name resolution misses."),
	); err != nil {
		return nil, err
	}
	if met.RewritesCompleted, err = m.Int64Counter("loomgraph.rewrites.completed",
		metric.WithDescription("Total successful background node rewrites."),
	); err != nil {
		return nil, err
	}
	if met.RewritesFailed, err = m.Int64Counter("loomgraph.rewrites.failed",
		metric.WithDescription("Total background rewrites dropped after failure."),
	); err != nil {
		return nil, err
	}
	if met.FuzzyMatches, err = m.Int64Counter("loomgraph.fuzzy_matches",
		metric.WithDescription("Total name resolutions won by fuzzy match."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.LLMErrors, err = m.Int64Counter("loomgraph.llm.errors",
		metric.WithDescription("Total call_structured failures by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.DirtyNodes, err = m.Int64UpDownCounter("loomgraph.dirty_nodes",
		metric.WithDescription("Number of node ids currently pending projection."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records a stage's duration and, on failure, increments
// LLMErrors for that stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.LLMErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordDecisionSkipped increments DecisionsSkipped with the given reason.
func (m *Metrics) RecordDecisionSkipped(ctx context.Context, reason string) {
	m.DecisionsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
