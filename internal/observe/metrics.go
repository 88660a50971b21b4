// Package observe provides the service's OpenTelemetry metrics and tracing.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// Prometheus scraping by the exporter bridge set up in [InitProvider]. Tests
// should build a private [Metrics] with [NewMetrics] and a ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/nikhilbhutani/fluencycoach"

// Metrics holds every metric instrument of the service. All fields are safe
// for concurrent use.
type Metrics struct {
	// Latency histograms per collaborator.
	STTDuration      metric.Float64Histogram
	LLMDuration      metric.Float64Histogram
	TTSDuration      metric.Float64Histogram
	AnalysisDuration metric.Float64Histogram

	// Analyses counts finished analyses by status and rating.
	Analyses metric.Int64Counter

	// ConfidenceScore is the distribution of reported confidence scores.
	ConfidenceScore metric.Float64Histogram

	// ProviderErrors counts collaborator failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// ClassifierFallbacks counts analyses scored with lexicon-only fillers
	// because the LLM classifier failed.
	ClassifierFallbacks metric.Int64Counter

	// CacheLookups counts report cache lookups by result (hit, miss, error).
	CacheLookups metric.Int64Counter

	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80,
}

var scoreBuckets = []float64{10, 20, 30, 40, 55, 70, 85, 100}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.STTDuration, "fluencycoach.stt.duration", "Latency of speech-to-text transcription."},
		{&met.LLMDuration, "fluencycoach.llm.duration", "Latency of LLM calls (classifier, relevance, improver)."},
		{&met.TTSDuration, "fluencycoach.tts.duration", "Latency of text-to-speech synthesis."},
		{&met.AnalysisDuration, "fluencycoach.analysis.duration", "End-to-end latency of one recording analysis."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	if met.ConfidenceScore, err = m.Float64Histogram("fluencycoach.confidence_score",
		metric.WithDescription("Reported confidence scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Analyses, err = m.Int64Counter("fluencycoach.analyses",
		metric.WithDescription("Finished analyses by status and rating."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("fluencycoach.provider.errors",
		metric.WithDescription("Collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierFallbacks, err = m.Int64Counter("fluencycoach.classifier.fallbacks",
		metric.WithDescription("Analyses that fell back to lexicon-only filler detection."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("fluencycoach.cache.lookups",
		metric.WithDescription("Report cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("fluencycoach.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide Metrics on the global MeterProvider.
// Call it after InitProvider.
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

// RecordAnalysis records one finished analysis. rating is empty on failure.
func (m *Metrics) RecordAnalysis(ctx context.Context, status, rating string, confidence, seconds float64) {
	m.Analyses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("rating", rating),
	))
	m.AnalysisDuration.Record(ctx, seconds)
	if status == "ok" {
		m.ConfidenceScore.Record(ctx, confidence)
	}
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) RecordCacheLookup(ctx context.Context, result string) {
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
