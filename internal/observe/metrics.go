// Package observe provides application-wide observability primitives for
// Lorevault: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Lorevault metrics.
const meterName = "github.com/lorevault/lorevault"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per knowledge-core stage ---

	// IngestDuration tracks full session-ingestion latency.
	IngestDuration metric.Float64Histogram

	// EmbedDuration tracks embedding provider call latency.
	EmbedDuration metric.Float64Histogram

	// RetrievalDuration tracks knowledge search latency.
	RetrievalDuration metric.Float64Histogram

	// SyncDuration tracks per-entity bio sync latency.
	SyncDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// FragmentsWritten counts knowledge fragments inserted. Use with attributes:
	//   attribute.String("model", ...), attribute.String("origin", "ingest"|"sync")
	FragmentsWritten metric.Int64Counter

	// EntitiesSynced counts completed entity syncs. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	EntitiesSynced metric.Int64Counter

	// MergePrompts counts identity-merge prompt resolutions. Use with attribute:
	//   attribute.String("state", ...)
	MergePrompts metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// PendingMerges tracks the number of unresolved identity-merge prompts.
	PendingMerges metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Ingestion
// of a long session can take tens of seconds, so the tail is generous.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.IngestDuration, err = m.Float64Histogram("lorevault.ingest.duration",
		metric.WithDescription("Latency of full session ingestion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("lorevault.embed.duration",
		metric.WithDescription("Latency of embedding provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrievalDuration, err = m.Float64Histogram("lorevault.retrieval.duration",
		metric.WithDescription("Latency of knowledge searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SyncDuration, err = m.Float64Histogram("lorevault.sync.duration",
		metric.WithDescription("Latency of per-entity bio syncs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("lorevault.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.FragmentsWritten, err = m.Int64Counter("lorevault.fragments.written",
		metric.WithDescription("Total knowledge fragments inserted by model and origin."),
	); err != nil {
		return nil, err
	}
	if met.EntitiesSynced, err = m.Int64Counter("lorevault.entities.synced",
		metric.WithDescription("Total entity sync completions by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.MergePrompts, err = m.Int64Counter("lorevault.merge.prompts",
		metric.WithDescription("Total identity-merge prompt resolutions by state."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("lorevault.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PendingMerges, err = m.Int64UpDownCounter("lorevault.pending_merges",
		metric.WithDescription("Number of unresolved identity-merge prompts."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lorevault.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFragments records fragment insertions for one model.
func (m *Metrics) RecordFragments(ctx context.Context, model, origin string, n int64) {
	m.FragmentsWritten.Add(ctx, n,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("origin", origin),
		),
	)
}

// RecordEntitySynced records one entity sync completion.
func (m *Metrics) RecordEntitySynced(ctx context.Context, kind, status string) {
	m.EntitiesSynced.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordMergeResolution records one identity-merge prompt resolution.
func (m *Metrics) RecordMergeResolution(ctx context.Context, state string) {
	m.MergePrompts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}
