package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/auth"
	"github.com/nikhilbhutani/fluencycoach/internal/coach"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
	"github.com/nikhilbhutani/fluencycoach/internal/queue"
	"github.com/nikhilbhutani/fluencycoach/internal/storage"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true,
	".flac": true, ".webm": true, ".aac": true, ".mp4": true,
}

type Analyzer interface {
	AnalyzeAudio(ctx context.Context, req analysis.AudioRequest) (*analysis.Result, error)
	AnalyzeTranscript(ctx context.Context, req analysis.TranscriptRequest) (*fluency.Report, error)
}

type Enqueuer interface {
	EnqueueAnalysisRun(ctx context.Context, payload queue.AnalysisRunPayload) error
}

type AssessmentCreator interface {
	Create(ctx context.Context, a *models.Assessment) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

// AsyncDeps enables the background upload endpoint.
type AsyncDeps struct {
	Store   AssessmentCreator
	Objects storage.Storage
	Bucket  string
	Queue   Enqueuer
}

type TranscribeHandler struct {
	analyzer Analyzer
	maxBytes int64
	async    *AsyncDeps
}

func NewTranscribeHandler(a Analyzer, maxBytes int64, async *AsyncDeps) *TranscribeHandler {
	return &TranscribeHandler{analyzer: a, maxBytes: maxBytes, async: async}
}

type upload struct {
	audio       []byte
	filename    string
	contentType string
	challenge   coach.Challenge
}

// Transcribe scores an uploaded recording and returns the report.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	up, status, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	res, err := h.analyzer.AnalyzeAudio(r.Context(), analysis.AudioRequest{
		Audio:     up.audio,
		Filename:  up.filename,
		Challenge: up.challenge,
		UserID:    auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}

	if res.AssessmentID != nil {
		w.Header().Set("X-Assessment-ID", res.AssessmentID.String())
	}
	cacheState := "miss"
	if res.Cached {
		cacheState = "hit"
	}
	w.Header().Set("X-Report-Cache", cacheState)
	writeJSON(w, http.StatusOK, res.Report)
}

// TranscribeAsync stores the recording, records a pending assessment and
// queues it for a worker.
func (h *TranscribeHandler) TranscribeAsync(w http.ResponseWriter, r *http.Request) {
	if h.async == nil {
		writeError(w, http.StatusServiceUnavailable, "background analysis is not configured")
		return
	}

	up, status, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	ctx := r.Context()
	userID := auth.UserIDFromContext(ctx)
	id := uuid.New()
	a := &models.Assessment{
		ID:          id,
		UserID:      userID,
		Status:      models.AssessmentPending,
		Title:       up.challenge.Title,
		Level:       up.challenge.Level,
		Category:    up.challenge.Category,
		AudioDigest: analysis.Digest(up.audio),
		StoragePath: storage.RecordingPath(userID, id, up.filename),
		Filename:    up.filename,
	}

	if err := h.async.Objects.Upload(ctx, h.async.Bucket, a.StoragePath, bytes.NewReader(up.audio), up.contentType); err != nil {
		slog.ErrorContext(ctx, "failed to store recording", "error", err)
		writeError(w, http.StatusBadGateway, "failed to store recording")
		return
	}
	if err := h.async.Store.Create(ctx, a); err != nil {
		slog.ErrorContext(ctx, "failed to create assessment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create assessment")
		return
	}
	if err := h.async.Queue.EnqueueAnalysisRun(ctx, queue.AnalysisRunPayload{AssessmentID: id.String()}); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue analysis", "assessment_id", id, "error", err)
		if ferr := h.async.Store.Fail(ctx, id, "could not queue analysis"); ferr != nil {
			slog.ErrorContext(ctx, "failed to mark assessment failed", "assessment_id", id, "error", ferr)
		}
		writeError(w, http.StatusServiceUnavailable, "failed to queue analysis")
		return
	}

	w.Header().Set("Location", "/api/v1/assessments/"+id.String())
	writeJSON(w, http.StatusAccepted, map[string]string{
		"assessment_id": id.String(),
		"status":        a.Status,
	})
}

func (h *TranscribeHandler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, h.tooLarge()
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("file is required")
	}
	defer file.Close()

	if !isAudio(header) {
		return nil, http.StatusBadRequest, fmt.Errorf(
			"unsupported audio format %q; supported formats: MP3, WAV, M4A, OGG, FLAC, WebM, AAC",
			header.Header.Get("Content-Type"))
	}
	if header.Size > h.maxBytes {
		return nil, http.StatusRequestEntityTooLarge, h.tooLarge()
	}

	audio, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("read file: %w", err)
	}
	if int64(len(audio)) > h.maxBytes {
		return nil, http.StatusRequestEntityTooLarge, h.tooLarge()
	}
	if len(audio) == 0 {
		return nil, http.StatusBadRequest, analysis.ErrEmptyAudio
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &upload{
		audio:       audio,
		filename:    filepath.Base(header.Filename),
		contentType: contentType,
		challenge: coach.Challenge{
			Title:    strings.TrimSpace(r.FormValue("title")),
			Level:    strings.TrimSpace(r.FormValue("level")),
			Category: strings.TrimSpace(r.FormValue("category")),
		},
	}, 0, nil
}

func (h *TranscribeHandler) tooLarge() error {
	return fmt.Errorf("file too large; maximum size is %d MB", h.maxBytes>>20)
}

// isAudio accepts any audio/* content type. Without a specific content type
// the file extension decides.
func isAudio(header *multipart.FileHeader) bool {
	ct := strings.ToLower(header.Header.Get("Content-Type"))
	if ct != "" && ct != "application/octet-stream" {
		return strings.HasPrefix(ct, "audio/")
	}
	return audioExtensions[strings.ToLower(filepath.Ext(header.Filename))]
}

// Analyze scores a transcript supplied as JSON.
func (h *TranscribeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.TranscriptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Words) == 0 {
		writeError(w, http.StatusBadRequest, "text or words required")
		return
	}

	report, err := h.analyzer.AnalyzeTranscript(r.Context(), req)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
