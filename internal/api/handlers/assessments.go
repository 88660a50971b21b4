package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/auth"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
)

type AssessmentReader interface {
	Get(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*models.Assessment, error)
	List(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]models.Assessment, error)
}

type AssessmentHandler struct {
	store AssessmentReader
}

func NewAssessmentHandler(store AssessmentReader) *AssessmentHandler {
	return &AssessmentHandler{store: store}
}

func (h *AssessmentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, err := h.store.List(r.Context(), auth.UserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		slog.ErrorContext(r.Context(), "list assessments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": items,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assessment ID")
		return
	}

	a, err := h.store.Get(r.Context(), id, auth.UserIDFromContext(r.Context()))
	if errors.Is(err, assessment.ErrNotFound) {
		writeError(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "get assessment", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get assessment")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}
