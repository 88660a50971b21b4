package stt

import (
	"context"
	"io"
	"strings"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

// DisfluencyPrompt nudges Whisper-family models to keep hesitation sounds
// they would otherwise clean up.
const DisfluencyPrompt = "Umm, let me think, uh, like, hmm... Okay, so, er, I was um, you know, " +
	"saying that, ah, this is a verbatim transcription that keeps every um, uh, er and hmm exactly as spoken."

// DefaultTemperature keeps decoding close to literal.
const DefaultTemperature = 0.2

// TranscriptionRequest holds the parameters for audio transcription.
type TranscriptionRequest struct {
	Audio    io.Reader `json:"-"`
	Filename string    `json:"filename"`
	// Language is an ISO-639-1 hint. Empty lets the backend detect it.
	Language    string  `json:"language,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// TranscriptionResponse holds the transcription result.
type TranscriptionResponse struct {
	Text     string         `json:"text"`
	Language string         `json:"language"`
	Duration float64        `json:"duration"`
	Words    []fluency.Word `json:"words"`
}

// STTProvider is the interface for speech-to-text backends.
type STTProvider interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
	Name() string
}

// IsEnglish reports whether a detected language is English. Backends report
// either the ISO code or the lower-case name; an empty value is accepted.
func IsEnglish(language string) bool {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "en", "english":
		return true
	}
	return false
}

func withDefaults(req TranscriptionRequest) TranscriptionRequest {
	if req.Prompt == "" {
		req.Prompt = DisfluencyPrompt
	}
	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}
	if req.Filename == "" {
		req.Filename = "audio.mp3"
	}
	return req
}

// normalizeWords trims tokens, drops empty ones and clamps timestamps that
// drift backwards across segment boundaries.
func normalizeWords(words []fluency.Word) []fluency.Word {
	out := make([]fluency.Word, 0, len(words))
	var lastEnd float64
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" {
			continue
		}
		if w.Start < lastEnd {
			w.Start = lastEnd
		}
		if w.End < w.Start {
			w.End = w.Start
		}
		lastEnd = w.End
		out = append(out, w)
	}
	return out
}
