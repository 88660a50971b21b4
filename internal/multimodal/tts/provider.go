package tts

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nikhilbhutani/fluencycoach/internal/observe"
)

// DefaultVoice is used when a request names none.
const DefaultVoice = "alloy"

// SynthesisRequest holds the parameters for text-to-speech generation.
type SynthesisRequest struct {
	Input string  `json:"input"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string // "audio/mpeg" (OpenAI) or "audio/wav" (Piper)
	Format      string // "mp3" or "wav"
	Voice       string
}

// TTSProvider is the interface for text-to-speech backends.
type TTSProvider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}

// Instrument records latency, failures and a span for every synthesis on m.
func Instrument(p TTSProvider, m *observe.Metrics) TTSProvider {
	return &instrumented{TTSProvider: p, metrics: m}
}

type instrumented struct {
	TTSProvider
	metrics *observe.Metrics
}

func (i *instrumented) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	ctx, span := observe.StartSpan(ctx, "tts.Synthesize")
	span.SetAttributes(
		attribute.String("tts.provider", i.Name()),
		attribute.Int("tts.input_chars", len(req.Input)),
	)
	start := time.Now()
	res, err := i.TTSProvider.Synthesize(ctx, req)
	i.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		i.metrics.RecordProviderError(ctx, i.Name(), "synthesize")
	}
	observe.EndSpan(span, err)
	return res, err
}
