// Package coach rewrites answers and judges them against the challenge they
// were given for.
package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/fluencycoach/internal/llm"
)

const improveSystemPrompt = `You are a professional speech editor. Rewrite the transcribed speech you are given so it is concise, clear and natural while keeping the speaker's meaning and tone.

- Remove filler words and hesitations (um, uh, like, you know).
- Fix grammar and sentence structure.
- Remove unnecessary repetition.
- Keep a conversational style and leave technical terms and proper nouns unchanged.

Reply with the improved text only.`

// Challenge is the practice prompt an answer was recorded for. Every field is
// optional.
type Challenge struct {
	Level    string `json:"level,omitempty"`
	Category string `json:"category,omitempty"`
	Title    string `json:"title,omitempty"`
}

func (c Challenge) context() string {
	if c.Level == "" && c.Category == "" && c.Title == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("Challenge context:\n")
	if c.Level != "" {
		fmt.Fprintf(&b, "- Level: %s\n", c.Level)
	}
	if c.Category != "" {
		fmt.Fprintf(&b, "- Category: %s\n", c.Category)
	}
	if c.Title != "" {
		fmt.Fprintf(&b, "- Title: %s\n", c.Title)
	}
	return b.String()
}

// Improver produces a polished rewrite of a transcript.
type Improver struct {
	gateway llm.Gateway
	model   string
}

func NewImprover(gw llm.Gateway, model string) *Improver {
	return &Improver{gateway: gw, model: model}
}

func (i *Improver) Improve(ctx context.Context, text string, ch Challenge) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("improve: text is empty")
	}

	user := text
	if c := ch.context(); c != "" {
		user = c + "\nTranscribed speech:\n" + text
	}

	resp, err := i.gateway.Chat(ctx, llm.ChatRequest{
		Model: i.model,
		Messages: []llm.Message{
			{Role: "system", Content: improveSystemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("improve: %w", err)
	}

	improved := strings.TrimSpace(resp.Content)
	improved = strings.TrimPrefix(improved, `"`)
	improved = strings.TrimSuffix(improved, `"`)
	if improved == "" {
		return "", errors.New("improve: model returned no text")
	}
	return improved, nil
}
