package llm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nikhilbhutani/fluencycoach/internal/config"
	"github.com/nikhilbhutani/fluencycoach/internal/observe"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	defaultModel     string
	fallbackProvider string
	maxRetries       int
	baseBackoff      time.Duration
	metrics          *observe.Metrics
	logger           *slog.Logger
}

// GatewayOption customises a gateway built by NewGateway.
type GatewayOption func(*gateway)

// WithProvider registers p under p.Name(), replacing any configured provider
// of the same name.
func WithProvider(p Provider) GatewayOption {
	return func(g *gateway) { g.providers[p.Name()] = p }
}

// WithBackoff sets the unit of the quadratic retry backoff.
func WithBackoff(d time.Duration) GatewayOption {
	return func(g *gateway) { g.baseBackoff = d }
}

// WithMetrics counts failed provider attempts on m.
func WithMetrics(m *observe.Metrics) GatewayOption {
	return func(g *gateway) { g.metrics = m }
}

func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *gateway) { g.logger = l }
}

func NewGateway(cfg config.LLMConfig, opts ...GatewayOption) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider),
		defaultProvider:  cfg.DefaultProvider,
		defaultModel:     cfg.DefaultModel,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
		baseBackoff:      500 * time.Millisecond,
		logger:           slog.Default(),
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}
	for _, o := range opts {
		o(g)
	}

	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	if req.Model == "" {
		req.Model = g.defaultModel
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && ctx.Err() == nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		g.logger.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		fb, fbErr := g.Provider(g.fallbackProvider)
		if fbErr != nil {
			return nil, err
		}
		if models := fb.Models(); len(models) > 0 && !slices.Contains(models, req.Model) {
			req.Model = models[0]
		}
		return g.chatWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "llm.Chat")
	span.SetAttributes(
		attribute.String("llm.provider", providerName),
		attribute.String("llm.model", req.Model),
	)

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * g.baseBackoff
			select {
			case <-ctx.Done():
				observe.EndSpan(span, ctx.Err())
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			g.logger.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			span.SetAttributes(
				attribute.Int("llm.attempts", attempt+1),
				attribute.Int("llm.tokens.input", resp.InputTokens),
				attribute.Int("llm.tokens.output", resp.OutputTokens),
				attribute.Float64("llm.cost_usd", resp.CostUSD),
			)
			observe.EndSpan(span, nil)
			return resp, nil
		}
		lastErr = err
		if g.metrics != nil {
			g.metrics.RecordProviderError(ctx, providerName, "chat")
		}
	}
	err = fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
	observe.EndSpan(span, err)
	return nil, err
}

func (g *gateway) ListModels() []ModelInfo {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var models []ModelInfo
	for _, name := range names {
		for _, m := range g.providers[name].Models() {
			models = append(models, ModelInfo{Provider: name, Model: m})
		}
	}
	return models
}
