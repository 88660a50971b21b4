// Package app builds the service graph shared by the API server, the worker
// and the CLI from a loaded configuration.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/classifier"
	"github.com/nikhilbhutani/fluencycoach/internal/coach"
	"github.com/nikhilbhutani/fluencycoach/internal/config"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/llm"
	"github.com/nikhilbhutani/fluencycoach/internal/multimodal/stt"
	"github.com/nikhilbhutani/fluencycoach/internal/multimodal/tts"
	"github.com/nikhilbhutani/fluencycoach/internal/observe"
)

// NewLogger returns a JSON logger on stdout at the named level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// LoadPolicy returns the scoring policy at path, or the default policy when
// path is empty.
func LoadPolicy(path string) (fluency.Config, error) {
	if path == "" {
		return fluency.DefaultConfig(), nil
	}
	policy, err := fluency.LoadConfigFile(path)
	if err != nil {
		return fluency.Config{}, fmt.Errorf("load scoring policy: %w", err)
	}
	return policy, nil
}

func NewSTT(cfg config.STTConfig) stt.STTProvider {
	if cfg.Backend == "local" {
		return stt.NewLocalSTT(stt.LocalSTTConfig{BaseURL: cfg.LocalBaseURL})
	}
	return stt.NewOpenAISTT(stt.OpenAISTTConfig{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
}

// NewTTS returns nil when no backend can serve requests.
func NewTTS(cfg config.TTSConfig) tts.TTSProvider {
	switch cfg.Backend {
	case "local":
		if cfg.LocalModel == "" {
			return nil
		}
		return tts.NewLocalTTS(tts.LocalTTSConfig{PiperBinPath: cfg.LocalBinPath, ModelPath: cfg.LocalModel})
	default:
		if cfg.OpenAIKey == "" {
			return nil
		}
		return tts.NewOpenAITTS(tts.OpenAITTSConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Voice:   cfg.Voice,
		})
	}
}

// Services are the collaborators every entry point needs.
type Services struct {
	Engine    *fluency.Engine
	Gateway   llm.Gateway
	Analysis  *analysis.Service
	Improver  *coach.Improver
	Relevance *coach.RelevanceChecker
}

// NewServices builds the engine, LLM collaborators and analysis service.
// extra options are applied to the analysis service after the defaults.
func NewServices(cfg *config.Config, logger *slog.Logger, extra ...analysis.Option) (*Services, error) {
	policy, err := LoadPolicy(cfg.Analysis.PolicyPath)
	if err != nil {
		return nil, err
	}
	engine, err := fluency.New(policy, fluency.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	gw := llm.NewGateway(cfg.LLM, llm.WithLogger(logger), llm.WithMetrics(observe.DefaultMetrics()))
	model := cfg.LLM.DefaultModel

	filler := classifier.NewLLM(gw,
		classifier.WithModel(model),
		classifier.WithTemperature(cfg.Analysis.ClassifierTemperature),
		classifier.WithBackfill(classifier.NewLexicon(policy.HesitationLexicon...)),
		classifier.WithLogger(logger),
	)
	relevance := coach.NewRelevanceChecker(gw, model, logger)

	opts := []analysis.Option{
		analysis.WithClassifier(filler),
		analysis.WithLogger(logger),
		analysis.WithLanguageHint(cfg.STT.Language),
	}
	if cfg.Analysis.CheckRelevance {
		opts = append(opts, analysis.WithRelevance(relevance))
	}
	opts = append(opts, extra...)

	return &Services{
		Engine:    engine,
		Gateway:   gw,
		Analysis:  analysis.NewService(engine, NewSTT(cfg.STT), opts...),
		Improver:  coach.NewImprover(gw, model),
		Relevance: relevance,
	}, nil
}
