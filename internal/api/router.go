package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/fluencycoach/internal/api/handlers"
	"github.com/nikhilbhutani/fluencycoach/internal/api/middleware"
	"github.com/nikhilbhutani/fluencycoach/internal/auth"
	"github.com/nikhilbhutani/fluencycoach/internal/config"
	"github.com/nikhilbhutani/fluencycoach/internal/multimodal/tts"
	"github.com/nikhilbhutani/fluencycoach/internal/observe"
)

// Deps are the services behind the HTTP API. Optional ones may be nil:
// without Assessments there is no history, without Async no background
// uploads, without TTS no speech output.
type Deps struct {
	Analyzer    handlers.Analyzer
	Improver    handlers.Improver
	TTS         tts.TTSProvider
	Assessments handlers.AssessmentReader
	Async       *handlers.AsyncDeps
	Checks      map[string]handlers.Pinger
	Metrics     *observe.Metrics
	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
	}
}

// Setup builds the handler tree. ctx bounds background work such as the
// rate limiter's janitor.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	if rt.deps.Metrics != nil {
		r.Use(middleware.Metrics(rt.deps.Metrics))
	}
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if rt.deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", rt.deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", handlers.Index)
		r.Get("/health", health.Healthz)

		r.Group(func(r chi.Router) {
			if rt.cfg.Server.RateLimitRPS > 0 {
				rl := middleware.NewRateLimiter(ctx, rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateLimitBurst)
				r.Use(rl.Limit)
			}
			if rt.cfg.Auth.JWTSecret != "" {
				r.Use(auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret).Authenticate)
			}

			transcribeH := handlers.NewTranscribeHandler(rt.deps.Analyzer, rt.cfg.Analysis.MaxUploadBytes, rt.deps.Async)
			r.Post("/transcribe", transcribeH.Transcribe)
			r.Post("/transcribe/async", transcribeH.TranscribeAsync)
			r.Post("/analyze", transcribeH.Analyze)

			if rt.deps.Assessments != nil {
				assessmentH := handlers.NewAssessmentHandler(rt.deps.Assessments)
				r.Route("/assessments", func(r chi.Router) {
					r.Get("/", assessmentH.List)
					r.Get("/{id}", assessmentH.Get)
				})
			}

			coachH := handlers.NewCoachHandler(rt.deps.Improver, rt.deps.TTS)
			r.Post("/improve", coachH.Improve)
			r.Post("/tts", coachH.Speak)
		})
	})

	return r
}
