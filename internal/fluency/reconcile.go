package fluency

import (
	"log/slog"
	"slices"
	"strings"
	"unicode"
)

// FillerSpan is a filler word or phrase located by rune offset in the
// transcript text it was classified from.
type FillerSpan struct {
	Text   string `json:"word" yaml:"word"`
	Start  int    `json:"position" yaml:"position"`
	Length int    `json:"length" yaml:"length"`
}

func (s FillerSpan) end() int { return s.Start + s.Length }

// Reconciliation is the canonical span list for a transcript together with
// the transcript text with those spans removed.
type Reconciliation struct {
	Spans       []FillerSpan
	CleanedText string
	// Skipped counts classifier spans that were dropped as malformed.
	Skipped int
}

// Reconcile canonicalizes spans against text and builds the cleaned text.
//
// Spans that fall outside text are dropped. A span whose label does not match
// the text under it is moved to the nearest word-bounded occurrence of the
// label, or dropped when there is none. The survivors are sorted by start
// (longest first on equal starts) and overlapping or touching spans are
// merged, keeping the label of the first. Every drop is logged on logger.
func Reconcile(text string, spans []FillerSpan, logger *slog.Logger) Reconciliation {
	if logger == nil {
		logger = slog.Default()
	}
	runes := []rune(text)

	rec := Reconciliation{Spans: []FillerSpan{}}
	kept := make([]FillerSpan, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.Length <= 0 || s.Length > len(runes)-s.Start {
			logger.Warn("dropping filler span outside transcript",
				"word", s.Text, "position", s.Start, "length", s.Length, "text_length", len(runes))
			rec.Skipped++
			continue
		}
		anchored, ok := anchor(runes, s)
		if !ok {
			logger.Warn("dropping filler span not found in transcript",
				"word", s.Text, "position", s.Start, "length", s.Length)
			rec.Skipped++
			continue
		}
		if anchored.Start != s.Start {
			logger.Debug("re-anchored filler span",
				"word", s.Text, "from", s.Start, "to", anchored.Start)
		}
		kept = append(kept, anchored)
	}

	slices.SortStableFunc(kept, func(a, b FillerSpan) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return b.Length - a.Length
	})

	for _, s := range kept {
		if n := len(rec.Spans); n > 0 {
			last := &rec.Spans[n-1]
			if s.Start <= last.end() {
				if s.end() > last.end() {
					last.Length = s.end() - last.Start
				}
				continue
			}
		}
		rec.Spans = append(rec.Spans, s)
	}

	rec.CleanedText = removeSpans(runes, rec.Spans)
	return rec
}

// anchor checks that s's label is what the text holds at s's range and, if
// not, relocates the span onto the closest occurrence of the label.
func anchor(runes []rune, s FillerSpan) (FillerSpan, bool) {
	label := strings.TrimSpace(s.Text)
	under := string(runes[s.Start:s.end()])
	if label == "" {
		s.Text = strings.TrimSpace(under)
		return s, true
	}
	if sameToken(under, label) {
		return s, true
	}
	needle := []rune(label)
	pos := nearestOccurrence(runes, needle, s.Start)
	if pos < 0 {
		return s, false
	}
	return FillerSpan{Text: s.Text, Start: pos, Length: len(needle)}, true
}

func sameToken(a, b string) bool {
	trim := func(s string) string {
		return strings.TrimFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
	}
	return strings.EqualFold(trim(a), trim(b))
}

// nearestOccurrence returns the word-bounded, case-insensitive match of
// needle in haystack closest to near, or -1. Ties go to the earlier match.
func nearestOccurrence(haystack, needle []rune, near int) int {
	best, bestDist := -1, 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if !foldEqual(haystack[i:i+len(needle)], needle) {
			continue
		}
		if i > 0 && isWordRune(haystack[i-1]) {
			continue
		}
		if j := i + len(needle); j < len(haystack) && isWordRune(haystack[j]) {
			continue
		}
		dist := i - near
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

func foldEqual(a, b []rune) bool {
	for i := range a {
		if unicode.ToLower(a[i]) != unicode.ToLower(b[i]) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}

// removeSpans cuts the (sorted, disjoint) spans out of runes. A comma right
// after a span goes with it. A comma right before a span is dropped too,
// unless it closes a lone introductory word ("So, um, I" keeps "So,").
// Seams are joined with a single space and no space is left before closing
// punctuation. A comma left dangling at the end of the text is dropped. Text
// away from the seams is kept verbatim.
func removeSpans(runes []rune, spans []FillerSpan) string {
	out := make([]rune, 0, len(runes))
	cursor := 0
	seam := false
	for _, s := range spans {
		out = appendSegment(out, runes[cursor:s.Start], seam)
		out = trimRightSpace(out)
		if n := len(out); n > 0 && out[n-1] == ',' && !introductory(out[:n-1]) {
			out = trimRightSpace(out[:n-1])
		}
		cursor = s.end()
		if cursor < len(runes) && runes[cursor] == ',' {
			cursor++
		}
		seam = true
	}
	tail := runes[cursor:]
	if seam && len(trimLeftSpace(tail)) == 0 {
		out = trimRightSpace(out)
		if n := len(out); n > 0 && out[n-1] == ',' {
			out = out[:n-1]
		}
	}
	out = appendSegment(out, tail, seam)
	return strings.TrimSpace(string(out))
}

func appendSegment(out, seg []rune, seam bool) []rune {
	if !seam {
		return append(out, seg...)
	}
	seg = trimLeftSpace(seg)
	if len(seg) == 0 {
		return out
	}
	if isClosingPunct(seg[0]) {
		out = trimRightSpace(out)
		if n := len(out); n > 0 && out[n-1] == ',' {
			out = out[:n-1]
		}
		return append(out, seg...)
	}
	if len(out) > 0 {
		out = append(out, ' ')
	}
	return append(out, seg...)
}

// introductory reports whether the current sentence in prefix is one word.
func introductory(prefix []rune) bool {
	start := 0
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] == '.' || prefix[i] == '!' || prefix[i] == '?' {
			start = i + 1
			break
		}
	}
	return len(strings.Fields(string(prefix[start:]))) == 1
}

func isClosingPunct(r rune) bool {
	return strings.ContainsRune(",.;:!?", r)
}

func trimRightSpace(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[len(r)-1]) {
		r = r[:len(r)-1]
	}
	return r
}

func trimLeftSpace(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}
