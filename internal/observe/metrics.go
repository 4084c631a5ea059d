// Package observe holds the application's OpenTelemetry metric instruments,
// the Prometheus exporter bridge and instrumented wrappers around the
// speech and language providers.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider] to
// avoid cross-test pollution.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/NguyenNhat4/Speak-english-with-AI"

// Metrics holds all metric instruments. The OTel types handle their own
// synchronisation.
type Metrics struct {
	// STTDuration tracks speech recognition latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks language model latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks time until a synthesis stream starts.
	TTSDuration metric.Float64Histogram

	// HTTPRequestDuration tracks request handling time. Attributes:
	//   attribute.String("method", ...), attribute.String("route", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram

	// ProviderErrors counts failed provider calls. Attributes:
	//   attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Transcriptions counts transcription outcomes. Attributes:
	//   attribute.String("outcome", "ok"|"empty"|"error")
	Transcriptions metric.Int64Counter

	// FeedbackJobs counts feedback job attempts by result. Attributes:
	//   attribute.String("result", "done"|"retry"|"dead")
	FeedbackJobs metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates all instruments on the given provider
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("speakai.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("speakai.llm.duration",
		metric.WithDescription("Latency of language model generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("speakai.tts.duration",
		metric.WithDescription("Time until a speech synthesis stream starts."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("speakai.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderErrors, err = m.Int64Counter("speakai.provider.errors",
		metric.WithDescription("Failed calls to speech and language providers."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("speakai.transcriptions",
		metric.WithDescription("Transcription outcomes."),
	); err != nil {
		return nil, err
	}
	if met.FeedbackJobs, err = m.Int64Counter("speakai.feedback.jobs",
		metric.WithDescription("Feedback job attempts by result."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordTranscription counts one transcription outcome
func (m *Metrics) RecordTranscription(ctx context.Context, outcome string) {
	m.Transcriptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordFeedbackJob counts one feedback job attempt
func (m *Metrics) RecordFeedbackJob(ctx context.Context, result string) {
	m.FeedbackJobs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
