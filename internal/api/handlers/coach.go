package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/fluencycoach/internal/coach"
	"github.com/nikhilbhutani/fluencycoach/internal/multimodal/tts"
)

type Improver interface {
	Improve(ctx context.Context, text string, ch coach.Challenge) (string, error)
}

type CoachHandler struct {
	improver Improver
	tts      tts.TTSProvider
}

func NewCoachHandler(improver Improver, ttsProvider tts.TTSProvider) *CoachHandler {
	return &CoachHandler{improver: improver, tts: ttsProvider}
}

type improveRequest struct {
	Text string `json:"text"`
	coach.Challenge
	Speak bool   `json:"speak"`
	Voice string `json:"voice,omitempty"`
}

type speech struct {
	AudioContent string `json:"audio_content"`
	AudioFormat  string `json:"audio_format"`
	Voice        string `json:"voice"`
}

type improveResponse struct {
	Text         string  `json:"text"`
	ImprovedText string  `json:"improved_text"`
	TTSSpeech    *speech `json:"tts_speech,omitempty"`
}

// Improve rewrites a transcript without fillers and, on request, reads the
// result aloud.
func (h *CoachHandler) Improve(w http.ResponseWriter, r *http.Request) {
	var req improveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}

	improved, err := h.improver.Improve(r.Context(), req.Text, req.Challenge)
	if err != nil {
		slog.ErrorContext(r.Context(), "improve text", "error", err)
		writeError(w, http.StatusBadGateway, "failed to improve text")
		return
	}

	resp := improveResponse{Text: req.Text, ImprovedText: improved}
	if req.Speak && h.tts != nil {
		// Speech is best effort; the improved text is still returned.
		out, err := h.tts.Synthesize(r.Context(), tts.SynthesisRequest{Input: improved, Voice: req.Voice})
		if err != nil {
			slog.WarnContext(r.Context(), "synthesize improved text", "provider", h.tts.Name(), "error", err)
		} else {
			resp.TTSSpeech = &speech{
				AudioContent: base64.StdEncoding.EncodeToString(out.Audio),
				AudioFormat:  out.Format,
				Voice:        out.Voice,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Speak converts text to audio.
func (h *CoachHandler) Speak(w http.ResponseWriter, r *http.Request) {
	if h.tts == nil {
		writeError(w, http.StatusServiceUnavailable, "text-to-speech is not configured")
		return
	}

	var req tts.SynthesisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "input required")
		return
	}
	if req.Speed != 0 && (req.Speed < 0.25 || req.Speed > 4) {
		writeError(w, http.StatusBadRequest, "speed must be between 0.25 and 4.0")
		return
	}

	out, err := h.tts.Synthesize(r.Context(), req)
	if err != nil {
		slog.ErrorContext(r.Context(), "synthesize speech", "provider", h.tts.Name(), "error", err)
		writeError(w, http.StatusBadGateway, "failed to synthesize speech")
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("X-Voice", out.Voice)
	w.WriteHeader(http.StatusOK)
	w.Write(out.Audio)
}
