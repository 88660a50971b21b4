package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/coach"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
	"github.com/nikhilbhutani/fluencycoach/internal/observe"
	"github.com/nikhilbhutani/fluencycoach/internal/queue"
	"github.com/nikhilbhutani/fluencycoach/internal/storage"
)

type Analyzer interface {
	AnalyzeAudio(ctx context.Context, req analysis.AudioRequest) (*analysis.Result, error)
}

type AssessmentStore interface {
	Lookup(ctx context.Context, id uuid.UUID) (*models.Assessment, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

// AnalysisWorker scores recordings uploaded through the async endpoint.
type AnalysisWorker struct {
	analyzer Analyzer
	store    AssessmentStore
	storage  storage.Storage
	bucket   string
	logger   *slog.Logger
}

func NewAnalysisWorker(a Analyzer, store AssessmentStore, objects storage.Storage, bucket string, logger *slog.Logger) *AnalysisWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisWorker{
		analyzer: a,
		store:    store,
		storage:  objects,
		bucket:   bucket,
		logger:   logger,
	}
}

func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	ctx, span := observe.StartSpan(ctx, "worker.AnalysisRun")
	defer func() { observe.EndSpan(span, err) }()

	var payload queue.AnalysisRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	id, err := uuid.Parse(payload.AssessmentID)
	if err != nil {
		return fmt.Errorf("parse assessment ID: %w: %w", err, asynq.SkipRetry)
	}

	span.SetAttributes(attribute.String("assessment.id", id.String()))
	log := observe.WithTrace(ctx, w.logger).With("assessment_id", id)
	log.Info("processing recording")

	a, err := w.store.Lookup(ctx, id)
	if errors.Is(err, assessment.ErrNotFound) {
		return fmt.Errorf("assessment %s: %w: %w", id, err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("lookup assessment: %w", err)
	}
	if a.Status == models.AssessmentCompleted {
		log.Info("assessment already completed")
		return nil
	}

	if err := w.store.MarkProcessing(ctx, id); err != nil {
		return fmt.Errorf("update status to processing: %w", err)
	}

	audio, err := w.download(ctx, a.StoragePath)
	if err != nil {
		return w.fail(ctx, log, id, err)
	}

	res, err := w.analyzer.AnalyzeAudio(ctx, analysis.AudioRequest{
		Audio:        audio,
		Filename:     a.Filename,
		Challenge:    coach.Challenge{Level: a.Level, Category: a.Category, Title: a.Title},
		UserID:       a.UserID,
		AssessmentID: &id,
	})
	if err != nil {
		return w.fail(ctx, log, id, err)
	}

	log.Info("recording analysed",
		"confidence_score", res.Report.ConfidenceScore,
		"overall_rating", res.Report.OverallRating,
		"cached", res.Cached,
	)
	return nil
}

func (w *AnalysisWorker) download(ctx context.Context, path string) ([]byte, error) {
	rc, err := w.storage.Download(ctx, w.bucket, path)
	if err != nil {
		return nil, fmt.Errorf("download recording: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return data, nil
}

// fail marks the assessment failed when err will not go away on retry, or
// when this is the last attempt. Otherwise the task is retried.
func (w *AnalysisWorker) fail(ctx context.Context, log *slog.Logger, id uuid.UUID, err error) error {
	permanent := Permanent(err)
	if !permanent && !lastAttempt(ctx) {
		log.Warn("analysis failed, will retry", "error", err)
		return err
	}

	log.Error("analysis failed", "error", err)
	if ferr := w.store.Fail(ctx, id, err.Error()); ferr != nil {
		log.Error("failed to mark assessment failed", "error", ferr)
	}
	if permanent {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// Permanent reports whether err is a property of the recording itself.
func Permanent(err error) bool {
	return errors.Is(err, analysis.ErrOffTopic) ||
		errors.Is(err, analysis.ErrUnsupportedLanguage) ||
		errors.Is(err, analysis.ErrEmptyAudio) ||
		errors.Is(err, fluency.ErrMalformedTimeline)
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
