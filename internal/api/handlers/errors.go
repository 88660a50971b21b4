package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

// statusFor maps analysis errors to HTTP statuses. Anything unrecognised
// came from an upstream provider.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, analysis.ErrEmptyAudio):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrUnsupportedLanguage),
		errors.Is(err, analysis.ErrOffTopic),
		errors.Is(err, fluency.ErrMalformedTimeline):
		return http.StatusUnprocessableEntity
	case errors.Is(err, assessment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, analysis.ErrOffTopic):
		msg = analysis.ErrOffTopic.Error()
	case errors.Is(err, analysis.ErrUnsupportedLanguage):
		msg = "Only English audio is supported. Please record your answer in English."
	case status == http.StatusBadGateway:
		slog.ErrorContext(r.Context(), "analysis failed", "error", err)
		msg = "error processing audio: " + err.Error()
	}
	writeError(w, status, msg)
}
