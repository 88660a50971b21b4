package classifier

import (
	"context"
	"unicode"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

// Lexicon finds hesitation sounds ("um", "uhh", "Hmm") by scanning the text
// word by word. It is deterministic and never fails.
type Lexicon struct {
	lex fluency.Lexicon
}

func NewLexicon(entries ...string) *Lexicon {
	if len(entries) == 0 {
		entries = fluency.DefaultHesitations
	}
	return &Lexicon{lex: fluency.NewLexicon(entries...)}
}

func (l *Lexicon) ClassifyFillers(_ context.Context, text string) ([]fluency.FillerSpan, error) {
	return l.Find(text), nil
}

// Find returns a span for every lexicon word in text, by rune offset.
func (l *Lexicon) Find(text string) []fluency.FillerSpan {
	spans := []fluency.FillerSpan{}
	runes := []rune(text)
	for i := 0; i < len(runes); {
		if !unicode.IsLetter(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '\'') {
			j++
		}
		if word := string(runes[i:j]); l.lex.Contains(word) {
			spans = append(spans, fluency.FillerSpan{Text: word, Start: i, Length: j - i})
		}
		i = j
	}
	return spans
}
