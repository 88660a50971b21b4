package fluency

import (
	"fmt"
	"math"
)

// Dimension names one axis of the assessment.
type Dimension string

const (
	DimensionRate       Dimension = "rate"
	DimensionFiller     Dimension = "filler"
	DimensionPause      Dimension = "pause"
	DimensionHesitation Dimension = "hesitation"
	DimensionFluency    Dimension = "fluency"
)

// Dimensions lists every dimension in tie-break order.
var Dimensions = []Dimension{
	DimensionRate, DimensionFiller, DimensionPause, DimensionHesitation, DimensionFluency,
}

// Point is one breakpoint of a Band.
type Point struct {
	Metric float64 `yaml:"metric" json:"metric"`
	Score  float64 `yaml:"score" json:"score"`
}

// Band maps a raw metric to a 0–100 score by linear interpolation between
// breakpoints sorted by metric. Metrics beyond the first or last breakpoint
// take that breakpoint's score.
type Band struct {
	Points []Point `yaml:"points" json:"points"`
}

// Score returns the band's score for metric, clamped to [0, 100].
func (b Band) Score(metric float64) float64 {
	pts := b.Points
	if len(pts) == 0 || math.IsNaN(metric) {
		return 0
	}
	if metric <= pts[0].Metric {
		return clamp(pts[0].Score, 0, 100)
	}
	for i := 1; i < len(pts); i++ {
		lo, hi := pts[i-1], pts[i]
		if metric <= hi.Metric {
			frac := (metric - lo.Metric) / (hi.Metric - lo.Metric)
			return clamp(lo.Score+frac*(hi.Score-lo.Score), 0, 100)
		}
	}
	return clamp(pts[len(pts)-1].Score, 0, 100)
}

// Optimal returns the metric range over which the band reaches its highest
// score.
func (b Band) Optimal() (lo, hi float64) {
	best := math.Inf(-1)
	for _, p := range b.Points {
		switch {
		case p.Score > best:
			best, lo, hi = p.Score, p.Metric, p.Metric
		case p.Score == best:
			hi = p.Metric
		}
	}
	return lo, hi
}

func (b Band) validate(name string) error {
	if len(b.Points) == 0 {
		return invalidConfig("band %s has no points", name)
	}
	for i, p := range b.Points {
		if math.IsNaN(p.Metric) || math.IsInf(p.Metric, 0) {
			return invalidConfig("band %s point %d has a non-finite metric", name, i)
		}
		if p.Score < 0 || p.Score > 100 {
			return invalidConfig("band %s point %d score %v outside [0,100]", name, i, p.Score)
		}
		if i > 0 && p.Metric <= b.Points[i-1].Metric {
			return invalidConfig("band %s points must have strictly increasing metrics", name)
		}
	}
	return nil
}

// Bands holds the scoring band of each metric-driven dimension.
type Bands struct {
	Rate       Band `yaml:"rate" json:"rate"`
	Filler     Band `yaml:"filler" json:"filler"`
	Pause      Band `yaml:"pause" json:"pause"`
	Hesitation Band `yaml:"hesitation" json:"hesitation"`
}

func (b Bands) validate() error {
	named := []struct {
		name string
		band Band
	}{
		{"rate", b.Rate}, {"filler", b.Filler}, {"pause", b.Pause}, {"hesitation", b.Hesitation},
	}
	for _, n := range named {
		if err := n.band.validate(n.name); err != nil {
			return err
		}
	}
	return nil
}

// Scores are the five 0–100 scores the confidence score blends.
type Scores struct {
	Rate       float64
	Filler     float64
	Pause      float64
	Hesitation float64
	Fluency    float64
}

// Get returns the score of d.
func (s Scores) Get(d Dimension) float64 {
	switch d {
	case DimensionRate:
		return s.Rate
	case DimensionFiller:
		return s.Filler
	case DimensionPause:
		return s.Pause
	case DimensionHesitation:
		return s.Hesitation
	case DimensionFluency:
		return s.Fluency
	}
	panic(fmt.Sprintf("fluency: unknown dimension %q", d))
}

// FluencyPolicy derives the holistic fluency score from the pause and
// hesitation burden: 100 minus a capped pause penalty minus a capped
// hesitation penalty, floored at 0.
type FluencyPolicy struct {
	PauseWeight      float64 `yaml:"pause_weight" json:"pause_weight"`
	PauseCap         float64 `yaml:"pause_cap" json:"pause_cap"`
	HesitationWeight float64 `yaml:"hesitation_weight" json:"hesitation_weight"`
	HesitationCap    float64 `yaml:"hesitation_cap" json:"hesitation_cap"`
}

// Score returns the fluency score. Speech with no duration scores 0.
func (f FluencyPolicy) Score(pauseRatio, hesitationRate, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	pausePenalty := math.Min(pauseRatio*f.PauseWeight, f.PauseCap)
	hesitationPenalty := math.Min(hesitationRate*f.HesitationWeight, f.HesitationCap)
	return round(clamp(100-pausePenalty-hesitationPenalty, 0, 100), 2)
}
