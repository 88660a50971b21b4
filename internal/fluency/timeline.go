package fluency

import (
	"iter"
	"math"
	"slices"
)

// overlapTolerance absorbs float noise in provider timestamps.
const overlapTolerance = 1e-9

// Word is a single transcribed word with its timing in seconds.
type Word struct {
	Text  string  `json:"text" yaml:"text"`
	Start float64 `json:"start_seconds" yaml:"start_seconds"`
	End   float64 `json:"end_seconds" yaml:"end_seconds"`
}

// Timeline is a validated, chronological sequence of words.
type Timeline struct {
	words []Word
}

// NewTimeline validates words and returns a Timeline over a private copy.
// It fails with *MalformedTimelineError when a timestamp is negative or not
// finite, a word ends before it starts, or a word starts before the previous
// word has ended.
func NewTimeline(words []Word) (*Timeline, error) {
	for i, w := range words {
		if !finite(w.Start) || !finite(w.End) {
			return nil, &MalformedTimelineError{Index: i, Word: w.Text, Reason: "timestamp is not a finite number"}
		}
		if w.Start < 0 || w.End < 0 {
			return nil, &MalformedTimelineError{Index: i, Word: w.Text, Reason: "negative timestamp"}
		}
		if w.End < w.Start {
			return nil, &MalformedTimelineError{Index: i, Word: w.Text, Reason: "word ends before it starts"}
		}
		if i > 0 && w.Start+overlapTolerance < words[i-1].End {
			return nil, &MalformedTimelineError{Index: i, Word: w.Text, Reason: "word starts before the previous word ends"}
		}
	}
	return &Timeline{words: slices.Clone(words)}, nil
}

// Duration is the span from the first word's start to the last word's end.
func (t *Timeline) Duration() float64 {
	if len(t.words) == 0 {
		return 0
	}
	return t.words[len(t.words)-1].End - t.words[0].Start
}

func (t *Timeline) WordCount() int { return len(t.words) }

// Words yields every word in order.
func (t *Timeline) Words() iter.Seq[Word] {
	return slices.Values(t.words)
}

// Pairs yields each consecutive (previous, next) word pair.
func (t *Timeline) Pairs() iter.Seq2[Word, Word] {
	return func(yield func(Word, Word) bool) {
		for i := 1; i < len(t.words); i++ {
			if !yield(t.words[i-1], t.words[i]) {
				return
			}
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
