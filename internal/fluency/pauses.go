package fluency

import (
	"strings"
	"unicode"
)

// PauseStats summarises the silent gaps of a timeline.
type PauseStats struct {
	Count int
	// Durations are the pause lengths in chronological order, in seconds.
	Durations []float64
	Average   float64
	Total     float64
	// Ratio is Total over the timeline duration, in [0, 1].
	Ratio float64
}

// AnalyzePauses records every gap between consecutive words that is at least
// threshold seconds long. Shorter gaps are ordinary inter-word spacing and
// are ignored entirely.
func AnalyzePauses(tl *Timeline, threshold float64) PauseStats {
	stats := PauseStats{Durations: []float64{}}
	var total float64
	for a, b := range tl.Pairs() {
		gap := b.Start - a.End
		if gap < threshold {
			continue
		}
		stats.Durations = append(stats.Durations, round(gap, 2))
		total += gap
	}

	stats.Count = len(stats.Durations)
	if stats.Count > 0 {
		stats.Average = round(total/float64(stats.Count), 2)
	}
	stats.Total = round(total, 2)
	if d := tl.Duration(); d > 0 {
		stats.Ratio = round(clamp(total/d, 0, 1), 3)
	}
	return stats
}

// Lexicon is a set of normalized hesitation sounds.
type Lexicon map[string]struct{}

// DefaultHesitations are the disfluency sounds matched when no lexicon is
// configured.
var DefaultHesitations = []string{"um", "uh", "er", "erm", "ah", "hmm", "mm"}

// NewLexicon normalizes entries into a Lexicon. Empty entries are ignored.
func NewLexicon(entries ...string) Lexicon {
	lex := make(Lexicon, len(entries))
	for _, e := range entries {
		if n := normalizeToken(e); n != "" {
			lex[n] = struct{}{}
		}
	}
	return lex
}

// Contains reports whether word is a hesitation, ignoring case, punctuation
// and drawn-out letters ("Ummm," matches "um"). A word with fewer than two
// letters never matches, so the "m" of a split "I'm" is not "mm".
func (l Lexicon) Contains(word string) bool {
	letters := 0
	for _, r := range word {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 2 {
		return false
	}
	n := normalizeToken(word)
	_, ok := l[n]
	return ok
}

// HesitationStats summarises lexicon hesitations among a sequence of words.
type HesitationStats struct {
	Count int
	Words []string
	// Rate is hesitations per 100 words.
	Rate float64
}

// DetectHesitations matches each of words against lex. wordCount is the
// denominator for Rate; zero yields a zero rate.
func DetectHesitations(words []string, lex Lexicon, wordCount int) HesitationStats {
	stats := HesitationStats{Words: []string{}}
	for _, w := range words {
		if lex.Contains(w) {
			stats.Words = append(stats.Words, strings.TrimFunc(w, func(r rune) bool {
				return !unicode.IsLetter(r)
			}))
		}
	}
	stats.Count = len(stats.Words)
	if wordCount > 0 {
		stats.Rate = round(float64(stats.Count)/float64(wordCount)*100, 2)
	}
	return stats
}

// normalizeToken lower-cases s, keeps only letters and collapses runs of the
// same letter.
func normalizeToken(s string) string {
	var b strings.Builder
	var prev rune
	for _, r := range strings.ToLower(s) {
		if !unicode.IsLetter(r) || r == prev {
			if !unicode.IsLetter(r) {
				prev = 0
			}
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
