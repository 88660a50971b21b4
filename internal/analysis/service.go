// Package analysis runs one fluency assessment end to end: transcription,
// filler classification, the optional relevance check and scoring, with the
// report cached and recorded when those backends are configured.
package analysis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/fluencycoach/internal/cache"
	"github.com/nikhilbhutani/fluencycoach/internal/classifier"
	"github.com/nikhilbhutani/fluencycoach/internal/coach"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
	"github.com/nikhilbhutani/fluencycoach/internal/multimodal/stt"
	"github.com/nikhilbhutani/fluencycoach/internal/observe"
)

var (
	ErrUnsupportedLanguage = errors.New("only English audio is supported")
	ErrOffTopic            = errors.New(coach.OffTopicMessage)
	ErrEmptyAudio          = errors.New("audio is empty")
)

// RelevanceJudge decides whether an answer addresses a challenge title.
type RelevanceJudge interface {
	Relevant(ctx context.Context, title, answer string) bool
}

type ReportCache interface {
	Key(audio []byte, title string) string
	Get(ctx context.Context, key string) (*fluency.Report, error)
	Put(ctx context.Context, key string, r *fluency.Report) error
}

// Recorder persists finished assessments.
type Recorder interface {
	Create(ctx context.Context, a *models.Assessment) error
	Complete(ctx context.Context, id uuid.UUID, r *fluency.Report) error
}

type Service struct {
	engine     *fluency.Engine
	stt        stt.STTProvider
	classifier fluency.FillerClassifier
	fallback   *classifier.Lexicon
	relevance  RelevanceJudge
	cache      ReportCache
	recorder   Recorder
	metrics    *observe.Metrics
	logger     *slog.Logger
	language   string
}

type Option func(*Service)

// WithClassifier sets the primary filler classifier. Without one, fillers
// come from the hesitation lexicon alone.
func WithClassifier(c fluency.FillerClassifier) Option {
	return func(s *Service) { s.classifier = c }
}

func WithRelevance(r RelevanceJudge) Option { return func(s *Service) { s.relevance = r } }

func WithCache(c ReportCache) Option { return func(s *Service) { s.cache = c } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

func WithMetrics(m *observe.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithLanguageHint passes a language hint to the STT backend. The default is
// none, so the backend detects the language.
func WithLanguageHint(lang string) Option { return func(s *Service) { s.language = lang } }

func NewService(engine *fluency.Engine, transcriber stt.STTProvider, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		stt:      transcriber,
		fallback: classifier.NewLexicon(engine.Config().HesitationLexicon...),
		metrics:  observe.DefaultMetrics(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.classifier == nil {
		s.classifier = s.fallback
	}
	return s
}

// Policy is the scoring policy reports are produced under.
func (s *Service) Policy() fluency.Config { return s.engine.Config() }

type AudioRequest struct {
	Audio     []byte
	Filename  string
	Challenge coach.Challenge
	UserID    *uuid.UUID
	// AssessmentID names an existing assessment to complete. When nil a new
	// completed assessment is recorded.
	AssessmentID *uuid.UUID
}

type Result struct {
	Report       *fluency.Report `json:"report"`
	Language     string          `json:"language,omitempty"`
	Cached       bool            `json:"cached"`
	AssessmentID *uuid.UUID      `json:"assessment_id,omitempty"`
}

// AnalyzeAudio transcribes and scores one recording.
func (s *Service) AnalyzeAudio(ctx context.Context, req AudioRequest) (res *Result, err error) {
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}

	ctx, span := observe.StartSpan(ctx, "analysis.AnalyzeAudio")
	start := time.Now()
	defer func() {
		observe.EndSpan(span, err)
		if err != nil {
			s.metrics.RecordAnalysis(ctx, "error", "", 0, time.Since(start).Seconds())
		}
	}()

	key := ""
	if s.cache != nil {
		key = s.cache.Key(req.Audio, req.Challenge.Title)
		if r, ok := s.lookup(ctx, key); ok {
			res = &Result{Report: r, Cached: true}
			if err := s.record(ctx, req, res); err != nil {
				return nil, err
			}
			s.metrics.RecordAnalysis(ctx, "cached", r.OverallRating, r.ConfidenceScore, time.Since(start).Seconds())
			return res, nil
		}
	}

	tr, err := s.transcribe(ctx, req)
	if err != nil {
		return nil, err
	}

	var fillers []fluency.FillerSpan
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fillers = s.classify(gctx, tr.Text)
		return nil
	})
	if s.relevance != nil && req.Challenge.Title != "" {
		g.Go(func() error {
			llmStart := time.Now()
			relevant := s.relevance.Relevant(gctx, req.Challenge.Title, tr.Text)
			s.metrics.LLMDuration.Record(ctx, time.Since(llmStart).Seconds())
			if !relevant {
				return ErrOffTopic
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report, err := s.engine.Analyze(fluency.Input{
		Text:            tr.Text,
		Words:           tr.Words,
		DurationSeconds: tr.Duration,
		Fillers:         fillers,
	})
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := s.cache.Put(ctx, key, report); err != nil {
			observe.WithTrace(ctx, s.logger).Warn("failed to cache report", "error", err)
		}
	}

	res = &Result{Report: report, Language: tr.Language}
	if err := s.record(ctx, req, res); err != nil {
		return nil, err
	}
	s.metrics.RecordAnalysis(ctx, "ok", report.OverallRating, report.ConfidenceScore, time.Since(start).Seconds())
	return res, nil
}

// TranscriptRequest scores a transcript produced elsewhere.
type TranscriptRequest struct {
	Text            string               `json:"text"`
	Words           []fluency.Word       `json:"words"`
	DurationSeconds float64              `json:"duration_seconds"`
	Fillers         []fluency.FillerSpan `json:"fillers"`
	// Classify adds the classifier's spans to Fillers.
	Classify bool     `json:"classify"`
	Fluency  *float64 `json:"fluency_score,omitempty"`
}

func (s *Service) AnalyzeTranscript(ctx context.Context, req TranscriptRequest) (*fluency.Report, error) {
	fillers := req.Fillers
	if req.Classify && req.Text != "" {
		fillers = append(append([]fluency.FillerSpan{}, fillers...), s.classify(ctx, req.Text)...)
	}
	return s.engine.Analyze(fluency.Input{
		Text:            req.Text,
		Words:           req.Words,
		DurationSeconds: req.DurationSeconds,
		Fillers:         fillers,
		Fluency:         req.Fluency,
	})
}

func (s *Service) lookup(ctx context.Context, key string) (*fluency.Report, bool) {
	r, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		s.metrics.RecordCacheLookup(ctx, "hit")
		return r, true
	case errors.Is(err, cache.ErrMiss):
		s.metrics.RecordCacheLookup(ctx, "miss")
	default:
		s.metrics.RecordCacheLookup(ctx, "error")
		observe.WithTrace(ctx, s.logger).Warn("report cache lookup failed", "error", err)
	}
	return nil, false
}

func (s *Service) transcribe(ctx context.Context, req AudioRequest) (*stt.TranscriptionResponse, error) {
	ctx, span := observe.StartSpan(ctx, "stt.Transcribe")
	start := time.Now()
	tr, err := s.stt.Transcribe(ctx, stt.TranscriptionRequest{
		Audio:    bytes.NewReader(req.Audio),
		Filename: req.Filename,
		Language: s.language,
	})
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	observe.EndSpan(span, err)
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.stt.Name(), "transcribe")
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if !stt.IsEnglish(tr.Language) {
		return nil, fmt.Errorf("%w: detected %q", ErrUnsupportedLanguage, tr.Language)
	}
	return tr, nil
}

// classify never fails: a classifier error degrades to lexicon-only spans.
func (s *Service) classify(ctx context.Context, text string) []fluency.FillerSpan {
	start := time.Now()
	spans, err := s.classifier.ClassifyFillers(ctx, text)
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil {
		return spans
	}
	observe.WithTrace(ctx, s.logger).Warn("filler classification failed, falling back to lexicon", "error", err)
	s.metrics.ClassifierFallbacks.Add(ctx, 1)
	s.metrics.RecordProviderError(ctx, "classifier", "classify")
	return s.fallback.Find(text)
}

// record persists the outcome. Completing an existing assessment must
// succeed; a new history entry is best effort.
func (s *Service) record(ctx context.Context, req AudioRequest, res *Result) error {
	if s.recorder == nil {
		return nil
	}
	if req.AssessmentID != nil {
		if err := s.recorder.Complete(ctx, *req.AssessmentID, res.Report); err != nil {
			return fmt.Errorf("complete assessment %s: %w", *req.AssessmentID, err)
		}
		res.AssessmentID = req.AssessmentID
		return nil
	}

	confidence := res.Report.ConfidenceScore
	a := &models.Assessment{
		UserID:          req.UserID,
		Status:          models.AssessmentCompleted,
		Title:           req.Challenge.Title,
		Level:           req.Challenge.Level,
		Category:        req.Challenge.Category,
		AudioDigest:     Digest(req.Audio),
		Filename:        req.Filename,
		ConfidenceScore: &confidence,
		OverallRating:   res.Report.OverallRating,
		Report:          res.Report,
	}
	if err := s.recorder.Create(ctx, a); err != nil {
		observe.WithTrace(ctx, s.logger).Warn("failed to record assessment", "error", err)
		return nil
	}
	res.AssessmentID = &a.ID
	return nil
}

// Digest is the hex SHA-256 of audio.
func Digest(audio []byte) string {
	sum := sha256.Sum256(audio)
	return hex.EncodeToString(sum[:])
}
