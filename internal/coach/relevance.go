package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/fluencycoach/internal/llm"
)

// OffTopicMessage is shown when an answer does not address its challenge.
const OffTopicMessage = "Your response doesn't seem to address the challenge topic. " +
	"Please try again and speak about the given question or topic."

// RelevanceChecker asks a model whether an answer addresses a challenge title.
type RelevanceChecker struct {
	gateway llm.Gateway
	model   string
	logger  *slog.Logger
}

func NewRelevanceChecker(gw llm.Gateway, model string, logger *slog.Logger) *RelevanceChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelevanceChecker{gateway: gw, model: model, logger: logger}
}

// Relevant reports whether answer addresses title. It fails open: an empty
// title or answer, or any model error, counts as relevant.
func (r *RelevanceChecker) Relevant(ctx context.Context, title, answer string) bool {
	title, answer = strings.TrimSpace(title), strings.TrimSpace(answer)
	if title == "" || answer == "" {
		return true
	}

	prompt := fmt.Sprintf(`The challenge question or topic is:
%q

The speaker's transcribed answer is:
%q

Is the answer clearly about the same subject, or a direct response to the question?
Reply YES if it is. Reply NO if it is about something else, unrelated, or only filler or noise.`, title, answer)

	resp, err := r.gateway.Chat(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: "You are a strict judge. Answer with exactly one word: YES or NO."},
			{Role: "user", Content: prompt},
		},
		MaxTokens: 10,
	})
	if err != nil {
		r.logger.Warn("relevance check failed, treating answer as relevant", "error", err)
		return true
	}
	return !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(resp.Content)), "NO")
}
