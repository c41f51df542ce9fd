// Package observe provides application-wide observability primitives for
// Elsie: OpenTelemetry metrics with a Prometheus exporter bridge and a small
// scrape endpoint.
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

// meterName is the instrumentation scope name used for all Elsie metrics.
const meterName = "github.com/daedalus-fleet/elsie"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SearchDuration tracks wiki search latency.
	SearchDuration metric.Float64Histogram

	// CrawlDuration tracks per-page crawl latency (fetch + process + store).
	CrawlDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// --- Counters ---

	// IngestPages counts crawled pages. Use with attribute:
	//   attribute.String("outcome", "new"|"updated"|"unchanged"|"failed")
	IngestPages metric.Int64Counter

	// Decisions counts router decisions. Use with attributes:
	//   attribute.String("response_type", ...), attribute.String("directive", ...)
	Decisions metric.Int64Counter

	// LLMTokens counts consumed tokens. Use with attribute:
	//   attribute.String("kind", "prompt"|"completion")
	LLMTokens metric.Int64Counter

	// LLMErrors counts failed LLM calls.
	LLMErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRoleplaySessions tracks the number of channels currently in an
	// active roleplay session.
	ActiveRoleplaySessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Searches
// land in the low buckets, crawls and LLM calls in the upper ones.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SearchDuration, err = m.Float64Histogram("elsie.search.duration",
		metric.WithDescription("Latency of wiki knowledge searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CrawlDuration, err = m.Float64Histogram("elsie.crawl.duration",
		metric.WithDescription("Latency of crawling a single wiki page."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("elsie.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.IngestPages, err = m.Int64Counter("elsie.ingest.pages",
		metric.WithDescription("Total crawled pages by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Decisions, err = m.Int64Counter("elsie.router.decisions",
		metric.WithDescription("Total router decisions by response type and directive."),
	); err != nil {
		return nil, err
	}
	if met.LLMTokens, err = m.Int64Counter("elsie.llm.tokens",
		metric.WithDescription("Total LLM tokens by kind."),
	); err != nil {
		return nil, err
	}
	if met.LLMErrors, err = m.Int64Counter("elsie.llm.errors",
		metric.WithDescription("Total failed LLM completions."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRoleplaySessions, err = m.Int64UpDownCounter("elsie.roleplay.active_sessions",
		metric.WithDescription("Number of channels with an active roleplay session."),
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

// RecordIngestPage records one crawled page with its outcome.
func (m *Metrics) RecordIngestPage(ctx context.Context, outcome string) {
	m.IngestPages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordDecision records one router decision with the standard attribute set.
func (m *Metrics) RecordDecision(ctx context.Context, responseType, directive string) {
	m.Decisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("response_type", responseType),
			attribute.String("directive", directive),
		),
	)
}

// RecordLLMCall records a completed LLM call: its latency and token usage.
func (m *Metrics) RecordLLMCall(ctx context.Context, seconds float64, promptTokens, completionTokens int) {
	m.LLMDuration.Record(ctx, seconds)
	if promptTokens > 0 {
		m.LLMTokens.Add(ctx, int64(promptTokens),
			metric.WithAttributes(attribute.String("kind", "prompt")))
	}
	if completionTokens > 0 {
		m.LLMTokens.Add(ctx, int64(completionTokens),
			metric.WithAttributes(attribute.String("kind", "completion")))
	}
}
