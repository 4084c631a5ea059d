package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

type instrumentedLLM struct {
	next    repositories.LargeLanguageModel
	metrics *Metrics
}

// InstrumentLLM records latency and failures of every Generate call
func InstrumentLLM(next repositories.LargeLanguageModel, m *Metrics) repositories.LargeLanguageModel {
	return &instrumentedLLM{next: next, metrics: m}
}

func (i *instrumentedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := i.next.Generate(ctx, prompt)
	i.metrics.observe(ctx, i.metrics.LLMDuration, "llm", start, err)
	return text, err
}

type instrumentedSTT struct {
	next    repositories.SpeechToText
	metrics *Metrics
}

// InstrumentSTT records latency and failures of every recognition call
func InstrumentSTT(next repositories.SpeechToText, m *Metrics) repositories.SpeechToText {
	return &instrumentedSTT{next: next, metrics: m}
}

func (i *instrumentedSTT) TranscribeAudio(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error) {
	start := time.Now()
	text, err := i.next.TranscribeAudio(ctx, audio, config)
	i.metrics.observe(ctx, i.metrics.STTDuration, "stt", start, err)
	return text, err
}

type instrumentedTTS struct {
	next    repositories.TextToSpeech
	metrics *Metrics
}

// InstrumentTTS records time to first byte availability and failures of
// synthesis calls
func InstrumentTTS(next repositories.TextToSpeech, m *Metrics) repositories.TextToSpeech {
	return &instrumentedTTS{next: next, metrics: m}
}

func (i *instrumentedTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (*repositories.SpeechStream, error) {
	start := time.Now()
	stream, err := i.next.Synthesize(ctx, req)
	i.metrics.observe(ctx, i.metrics.TTSDuration, "tts", start, err)
	return stream, err
}

func (m *Metrics) observe(ctx context.Context, h metric.Float64Histogram, kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
	h.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("status", status)))
}
