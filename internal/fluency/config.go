package fluency

import (
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config is the scoring policy of an Engine. Everything calibratable lives
// here as data so recalibration needs no code change.
type Config struct {
	PauseThresholdSeconds float64 `yaml:"pause_threshold_seconds" json:"pause_threshold_seconds"`
	HesitationLexicon     []string `yaml:"hesitation_lexicon" json:"hesitation_lexicon"`
	ScoringBands          Bands    `yaml:"scoring_bands" json:"scoring_bands"`
	Weights               Weights  `yaml:"weights" json:"weights"`
	// Ratings are checked in order; the first whose Min the score reaches wins.
	Ratings []RatingBand `yaml:"ratings" json:"ratings"`
	// RecommendationThresholds: a dimension scoring below its threshold gets
	// a targeted tip.
	RecommendationThresholds map[Dimension]float64 `yaml:"recommendation_thresholds" json:"recommendation_thresholds"`
	Fluency                  FluencyPolicy         `yaml:"fluency" json:"fluency"`
}

// Weights blend the five scores into the confidence score. They must be
// non-negative and sum to 1.
type Weights struct {
	Rate       float64 `yaml:"rate" json:"rate"`
	Filler     float64 `yaml:"filler" json:"filler"`
	Pause      float64 `yaml:"pause" json:"pause"`
	Hesitation float64 `yaml:"hesitation" json:"hesitation"`
	Fluency    float64 `yaml:"fluency" json:"fluency"`
}

func (w Weights) sum() float64 {
	return w.Rate + w.Filler + w.Pause + w.Hesitation + w.Fluency
}

// RatingBand labels confidence scores of at least Min.
type RatingBand struct {
	Min   float64 `yaml:"min" json:"min"`
	Label string  `yaml:"label" json:"label"`
}

// Rating labels.
const (
	RatingExcellent = "Excellent"
	RatingGood      = "Good"
	RatingModerate  = "Moderate"
	RatingLow       = "Low"
	RatingVeryLow   = "Very Low"
)

// DefaultConfig returns the product calibration.
func DefaultConfig() Config {
	return Config{
		PauseThresholdSeconds: 0.5,
		HesitationLexicon:     slices.Clone(DefaultHesitations),
		ScoringBands: Bands{
			Rate: Band{Points: []Point{
				{60, 0}, {100, 80}, {120, 100}, {160, 100}, {180, 80}, {220, 0},
			}},
			Filler: Band{Points: []Point{
				{2, 100}, {5, 70}, {10, 0},
			}},
			Pause: Band{Points: []Point{
				{0.10, 100}, {0.20, 60}, {0.30, 25}, {0.40, 0},
			}},
			Hesitation: Band{Points: []Point{
				{3, 100}, {6, 75}, {10, 40}, {15, 0},
			}},
		},
		Weights: Weights{Rate: 0.25, Filler: 0.25, Pause: 0.20, Hesitation: 0.15, Fluency: 0.15},
		Ratings: []RatingBand{
			{85, RatingExcellent},
			{70, RatingGood},
			{55, RatingModerate},
			{40, RatingLow},
			{0, RatingVeryLow},
		},
		RecommendationThresholds: map[Dimension]float64{
			DimensionRate:       70,
			DimensionFiller:     70,
			DimensionPause:      70,
			DimensionHesitation: 70,
			DimensionFluency:    70,
		},
		Fluency: FluencyPolicy{PauseWeight: 50, PauseCap: 50, HesitationWeight: 0.5, HesitationCap: 30},
	}
}

// LoadConfig reads a YAML policy from r. Fields absent from the document keep
// their DefaultConfig values; unknown fields are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("fluency: decode policy: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile is LoadConfig over the file at path.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("fluency: open policy %q: %w", path, err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// Validate reports the first inconsistency in c as an ErrInvalidConfig.
func (c Config) Validate() error {
	if c.PauseThresholdSeconds <= 0 || math.IsInf(c.PauseThresholdSeconds, 0) {
		return invalidConfig("pause_threshold_seconds must be positive, got %v", c.PauseThresholdSeconds)
	}
	if len(NewLexicon(c.HesitationLexicon...)) == 0 {
		return invalidConfig("hesitation_lexicon is empty")
	}
	if err := c.ScoringBands.validate(); err != nil {
		return err
	}
	for _, w := range []float64{c.Weights.Rate, c.Weights.Filler, c.Weights.Pause, c.Weights.Hesitation, c.Weights.Fluency} {
		if w < 0 {
			return invalidConfig("weights must be non-negative")
		}
	}
	if s := c.Weights.sum(); math.Abs(s-1) > 1e-6 {
		return invalidConfig("weights must sum to 1, got %v", s)
	}
	if len(c.Ratings) == 0 {
		return invalidConfig("ratings are empty")
	}
	for i, r := range c.Ratings {
		if r.Label == "" {
			return invalidConfig("rating %d has no label", i)
		}
		if i > 0 && r.Min >= c.Ratings[i-1].Min {
			return invalidConfig("ratings must be ordered by strictly decreasing min")
		}
	}
	if last := c.Ratings[len(c.Ratings)-1]; last.Min > 0 {
		return invalidConfig("lowest rating must start at 0, got %v", last.Min)
	}
	for d := range c.RecommendationThresholds {
		if !slices.Contains(Dimensions, d) {
			return invalidConfig("recommendation threshold for unknown dimension %q", d)
		}
	}
	f := c.Fluency
	if f.PauseWeight < 0 || f.PauseCap < 0 || f.HesitationWeight < 0 || f.HesitationCap < 0 {
		return invalidConfig("fluency policy values must be non-negative")
	}
	return nil
}

// Clone returns a deep copy of c that shares no slices or maps with it.
func (c Config) Clone() Config {
	out := c
	out.HesitationLexicon = slices.Clone(c.HesitationLexicon)
	out.ScoringBands = Bands{
		Rate:       Band{Points: slices.Clone(c.ScoringBands.Rate.Points)},
		Filler:     Band{Points: slices.Clone(c.ScoringBands.Filler.Points)},
		Pause:      Band{Points: slices.Clone(c.ScoringBands.Pause.Points)},
		Hesitation: Band{Points: slices.Clone(c.ScoringBands.Hesitation.Points)},
	}
	out.Ratings = slices.Clone(c.Ratings)
	out.RecommendationThresholds = maps.Clone(c.RecommendationThresholds)
	return out
}

// YAML renders c as a policy document LoadConfig accepts.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
