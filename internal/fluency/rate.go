package fluency

import "math"

// WordsPerMinute returns the speaking rate rounded to one decimal place. A
// non-positive duration yields 0 rather than an error.
func WordsPerMinute(wordCount int, durationSeconds float64) float64 {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) {
		return 0
	}
	return round(float64(wordCount)/(durationSeconds/60), 1)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
