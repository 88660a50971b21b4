// Package classifier locates filler words in transcripts. The LLM classifier
// makes the contextual call ("like" as a filler versus a comparison) and is
// backed by a deterministic lexicon scan so no hesitation sound is missed.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/llm"
)

const systemPrompt = `You identify filler words and disfluencies in transcribed spoken English.

Fillers are:
- hesitation sounds: um, uh, er, erm, ah, hmm, mm (always fillers, mark every occurrence)
- stalling phrases: like, you know, I mean, sort of, kind of
- empty qualifiers: basically, actually, literally
- filler confirmations and openers: right, okay, yeah, well, so

Only mark a phrase when it carries no meaning in context. "like" in "a shirt like this"
is a comparison, not a filler. "actually" correcting a fact is not a filler.

For each filler give the exact text as it appears, the zero-based character index where
it starts, and its length in characters.

Reply with only a JSON object: {"fillers": [{"word": "um", "position": 4, "length": 2}]}
Reply {"fillers": []} when there are none.`

// LLM classifies fillers with a chat model.
type LLM struct {
	gateway     llm.Gateway
	model       string
	temperature float64
	backfill    *Lexicon
	logger      *slog.Logger
}

type Option func(*LLM)

func WithModel(model string) Option { return func(c *LLM) { c.model = model } }

func WithTemperature(t float64) Option { return func(c *LLM) { c.temperature = t } }

// WithBackfill replaces the default hesitation lexicon used to fill gaps in
// the model's answer.
func WithBackfill(l *Lexicon) Option { return func(c *LLM) { c.backfill = l } }

func WithLogger(l *slog.Logger) Option { return func(c *LLM) { c.logger = l } }

func NewLLM(gw llm.Gateway, opts ...Option) *LLM {
	c := &LLM{
		gateway:     gw,
		temperature: 0.1,
		backfill:    NewLexicon(),
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type fillerReply struct {
	Fillers []struct {
		Word     string `json:"word"`
		Position int    `json:"position"`
		Length   int    `json:"length"`
	} `json:"fillers"`
}

// ClassifyFillers asks the model for filler spans and merges in every lexicon
// hesitation it missed. Spans are returned sorted by position; overlaps are
// left for fluency.Reconcile.
func (c *LLM) ClassifyFillers(ctx context.Context, text string) ([]fluency.FillerSpan, error) {
	if strings.TrimSpace(text) == "" {
		return []fluency.FillerSpan{}, nil
	}

	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: c.temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("classify fillers: %w", err)
	}

	var reply fillerReply
	if err := llm.DecodeJSON(resp.Content, &reply); err != nil {
		return nil, fmt.Errorf("classify fillers: %w", err)
	}

	spans := make([]fluency.FillerSpan, 0, len(reply.Fillers))
	seen := make(map[[2]int]bool)
	for _, f := range reply.Fillers {
		word := strings.TrimSpace(f.Word)
		if word == "" || f.Position < 0 {
			continue
		}
		length := f.Length
		if length <= 0 {
			length = utf8.RuneCountInString(word)
		}
		key := [2]int{f.Position, length}
		if seen[key] {
			continue
		}
		seen[key] = true
		spans = append(spans, fluency.FillerSpan{Text: word, Start: f.Position, Length: length})
	}

	modelCount := len(spans)
	for _, h := range c.backfill.Find(text) {
		key := [2]int{h.Start, h.Length}
		if !seen[key] {
			seen[key] = true
			spans = append(spans, h)
		}
	}
	if added := len(spans) - modelCount; added > 0 {
		c.logger.Debug("backfilled hesitations missed by classifier", "added", added, "model", resp.Model)
	}

	slices.SortStableFunc(spans, func(a, b fluency.FillerSpan) int { return a.Start - b.Start })
	return spans, nil
}
