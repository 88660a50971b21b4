package stt

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

// OpenAISTTConfig holds configuration for the OpenAI STT backend.
type OpenAISTTConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "whisper-1"
	Timeout time.Duration
}

// OpenAISTT transcribes audio using OpenAI's Whisper API (or a compatible
// endpoint) with word-level timestamps.
type OpenAISTT struct {
	cfg    OpenAISTTConfig
	client *openai.Client
}

// NewOpenAISTT creates an OpenAISTT with sensible defaults applied.
func NewOpenAISTT(cfg OpenAISTTConfig) *OpenAISTT {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAISTT{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

func (o *OpenAISTT) Name() string { return "openai-whisper" }

func (o *OpenAISTT) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	req = withDefaults(req)
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       o.cfg.Model,
		Reader:      req.Audio,
		FilePath:    req.Filename,
		Prompt:      req.Prompt,
		Temperature: float32(req.Temperature),
		Language:    req.Language,
		Format:      openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	words := make([]fluency.Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, fluency.Word{Text: w.Word, Start: w.Start, End: w.End})
	}

	duration := resp.Duration
	if duration <= 0 {
		for _, s := range resp.Segments {
			duration = max(duration, s.End)
		}
	}

	return &TranscriptionResponse{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: duration,
		Words:    normalizeWords(words),
	}, nil
}
