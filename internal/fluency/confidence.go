package fluency

import (
	"cmp"
	"fmt"
	"slices"
)

// Confidence blends s with the configured weights, rounded to one decimal.
func (c Config) Confidence(s Scores) float64 {
	w := c.Weights
	v := w.Rate*s.Rate + w.Filler*s.Filler + w.Pause*s.Pause + w.Hesitation*s.Hesitation + w.Fluency*s.Fluency
	return round(clamp(v, 0, 100), 1)
}

// Rating returns the label of the first rating band score reaches.
func (c Config) Rating(score float64) string {
	for _, r := range c.Ratings {
		if score >= r.Min {
			return r.Label
		}
	}
	return c.Ratings[len(c.Ratings)-1].Label
}

// Metrics are the raw measurements quoted in recommendations.
type Metrics struct {
	WPM            float64
	FillersPer100  float64
	PauseRatio     float64
	HesitationRate float64
}

// Recommend returns one tip per dimension scoring below its threshold,
// weakest dimension first. When every dimension clears its threshold a single
// encouraging message naming the weakest dimension is returned instead, so
// the result is never empty.
func (c Config) Recommend(s Scores, m Metrics) []string {
	order := slices.Clone(Dimensions)
	slices.SortStableFunc(order, func(a, b Dimension) int {
		return cmp.Compare(s.Get(a), s.Get(b))
	})

	var recs []string
	for _, d := range order {
		threshold, ok := c.RecommendationThresholds[d]
		if !ok || s.Get(d) >= threshold {
			continue
		}
		recs = append(recs, c.tip(d, m))
	}
	if len(recs) == 0 {
		weakest := order[0]
		recs = append(recs, fmt.Sprintf(
			"Excellent! Your speech shows high confidence. To polish it further, focus on %s (score %.0f).",
			dimensionLabel(weakest), s.Get(weakest)))
	}
	return recs
}

func (c Config) tip(d Dimension, m Metrics) string {
	switch d {
	case DimensionRate:
		lo, hi := c.ScoringBands.Rate.Optimal()
		switch {
		case m.WPM < lo:
			return fmt.Sprintf("Try to speak slightly faster (currently %.0f WPM). Optimal speaking rate is %.0f-%.0f WPM.", m.WPM, lo, hi)
		case m.WPM > hi:
			return fmt.Sprintf("Consider slowing down (currently %.0f WPM) for better clarity and comprehension.", m.WPM)
		default:
			return fmt.Sprintf("Aim for a speaking rate between %.0f-%.0f WPM for optimal communication.", lo, hi)
		}
	case DimensionFiller:
		return fmt.Sprintf("Reduce filler words (currently %.1f per 100 words). Practice pausing silently instead of using 'um' or 'uh'.", m.FillersPer100)
	case DimensionPause:
		return fmt.Sprintf("Reduce pauses (currently %.1f%% of speaking time). Plan your thoughts before speaking.", m.PauseRatio*100)
	case DimensionHesitation:
		return fmt.Sprintf("Work on reducing hesitations (currently %.1f per 100 words). Practice speaking more smoothly.", m.HesitationRate)
	default:
		return "Work on your overall flow: link ideas together and keep a steady rhythm between sentences."
	}
}

func dimensionLabel(d Dimension) string {
	switch d {
	case DimensionRate:
		return "speaking rate"
	case DimensionFiller:
		return "filler words"
	case DimensionPause:
		return "pauses"
	case DimensionHesitation:
		return "hesitations"
	default:
		return "overall fluency"
	}
}
