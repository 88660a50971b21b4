// Package fluency scores the delivery of a transcribed recording.
//
// An [Engine] turns a transcript with word timing and a list of filler spans
// from an external classifier into a [Report]: pauses, hesitations, speaking
// rate, four dimension scores, a fluency score, a weighted confidence score,
// a rating and recommendations. The engine performs no I/O, keeps no state
// between calls and is safe for concurrent use.
package fluency

import (
	"context"
	"log/slog"
	"math"

	"github.com/nikhilbhutani/fluencycoach/pkg/wordcount"
)

// FillerClassifier locates filler words and phrases in transcript text. The
// judgment is semantic and comes from outside the engine.
type FillerClassifier interface {
	ClassifyFillers(ctx context.Context, text string) ([]FillerSpan, error)
}

// Input is everything one analysis needs.
type Input struct {
	Text  string
	Words []Word
	// DurationSeconds is the provider-reported audio length. It is only used
	// when Words is empty; otherwise the timeline's span is the duration.
	DurationSeconds float64
	Fillers         []FillerSpan
	// Fluency overrides the configured fluency policy when non-nil.
	Fluency *float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for skipped spans and degenerate input.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine is an immutable, validated scoring policy.
type Engine struct {
	cfg     Config
	lexicon Lexicon
	logger  *slog.Logger
}

// New validates cfg and returns an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()
	e := &Engine{
		cfg:     cfg,
		lexicon: NewLexicon(cfg.HesitationLexicon...),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config returns a copy of the engine's scoring policy.
func (e *Engine) Config() Config { return e.cfg.Clone() }

// Analyze scores in. It returns a complete Report or, when the word timing is
// malformed, a *MalformedTimelineError and no report.
func (e *Engine) Analyze(in Input) (*Report, error) {
	tl, err := NewTimeline(in.Words)
	if err != nil {
		return nil, err
	}

	rec := Reconcile(in.Text, in.Fillers, e.logger)

	var (
		tokens   []string
		duration float64
		pauses   PauseStats
	)
	if tl.WordCount() > 0 {
		for w := range tl.Words() {
			tokens = append(tokens, w.Text)
		}
		duration = tl.Duration()
		pauses = AnalyzePauses(tl, e.cfg.PauseThresholdSeconds)
	} else {
		tokens = wordcount.Tokens(in.Text)
		if in.DurationSeconds > 0 && !math.IsInf(in.DurationSeconds, 0) {
			duration = in.DurationSeconds
		}
		pauses = PauseStats{Durations: []float64{}}
	}
	wordCount := len(tokens)
	hes := DetectHesitations(tokens, e.lexicon, wordCount)
	wpm := WordsPerMinute(wordCount, duration)

	var fillersPer100 float64
	if wordCount > 0 {
		fillersPer100 = float64(len(rec.Spans)) / float64(wordCount) * 100
	}

	e.warnDegenerate(wordCount, duration, len(rec.Spans))

	bands := e.cfg.ScoringBands
	scores := Scores{
		Rate:       round(bands.Rate.Score(wpm), 2),
		Filler:     round(bands.Filler.Score(fillersPer100), 2),
		Pause:      round(bands.Pause.Score(pauses.Ratio), 2),
		Hesitation: round(bands.Hesitation.Score(hes.Rate), 2),
		Fluency:    e.fluency(in.Fluency, pauses.Ratio, hes.Rate, duration),
	}
	confidence := e.cfg.Confidence(scores)

	return &Report{
		Text:                 in.Text,
		CleanedText:          rec.CleanedText,
		FillerWords:          rec.Spans,
		FillerCount:          len(rec.Spans),
		DurationSeconds:      round(duration, 2),
		WordCount:            wordCount,
		WPM:                  wpm,
		TotalPauses:          pauses.Count,
		TotalHesitations:     hes.Count,
		PauseDurations:       pauses.Durations,
		AveragePauseDuration: pauses.Average,
		TotalPauseTime:       pauses.Total,
		HesitationWords:      hes.Words,
		FluencyScore:         scores.Fluency,
		PauseRatio:           pauses.Ratio,
		HesitationRate:       hes.Rate,
		ConfidenceScore:      confidence,
		WPMScore:             scores.Rate,
		FillerScore:          scores.Filler,
		PauseScore:           scores.Pause,
		HesitationScore:      scores.Hesitation,
		OverallRating:        e.cfg.Rating(confidence),
		Recommendations: e.cfg.Recommend(scores, Metrics{
			WPM:            wpm,
			FillersPer100:  fillersPer100,
			PauseRatio:     pauses.Ratio,
			HesitationRate: hes.Rate,
		}),
	}, nil
}

func (e *Engine) fluency(override *float64, pauseRatio, hesitationRate, duration float64) float64 {
	if override == nil {
		return e.cfg.Fluency.Score(pauseRatio, hesitationRate, duration)
	}
	v := *override
	if math.IsNaN(v) {
		e.logger.Warn("ignoring NaN fluency score override")
		return e.cfg.Fluency.Score(pauseRatio, hesitationRate, duration)
	}
	return round(clamp(v, 0, 100), 2)
}

func (e *Engine) warnDegenerate(words int, duration float64, fillers int) {
	if words == 0 {
		e.logger.Debug("degenerate input: transcript has no words")
	}
	if duration <= 0 {
		e.logger.Debug("degenerate input: zero speaking duration", "words", words)
	}
	if fillers == 0 {
		e.logger.Debug("no filler words in transcript")
	}
}
