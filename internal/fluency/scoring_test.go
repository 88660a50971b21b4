package fluency_test

import (
	"math"
	"strings"
	"testing"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

func TestWordsPerMinute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		words    int
		duration float64
		want     float64
	}{
		{31, 12.5, 148.8},
		{120, 60, 120},
		{10, 0, 0},
		{10, -3, 0},
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := fluency.WordsPerMinute(tt.words, tt.duration); got != tt.want {
			t.Errorf("WordsPerMinute(%d, %v) = %v, want %v", tt.words, tt.duration, got, tt.want)
		}
	}
}

func TestBandScore(t *testing.T) {
	t.Parallel()

	bands := fluency.DefaultConfig().ScoringBands
	tests := []struct {
		name   string
		band   fluency.Band
		metric float64
		want   float64
	}{
		{"rate optimal", bands.Rate, 140, 100},
		{"rate slow", bands.Rate, 80, 40},
		{"rate far too slow", bands.Rate, 30, 0},
		{"rate fast", bands.Rate, 200, 40},
		{"rate far too fast", bands.Rate, 400, 0},
		{"rate between", bands.Rate, 110, 90},
		{"filler none", bands.Filler, 0, 100},
		{"filler mid", bands.Filler, 7.5, 35},
		{"filler many", bands.Filler, 25, 0},
		{"pause mid", bands.Pause, 0.15, 80},
		{"hesitation low", bands.Hesitation, 1, 100},
		{"hesitation high", bands.Hesitation, 12.5, 20},
		{"nan", bands.Rate, math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.band.Score(tt.metric); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%v) = %v, want %v", tt.metric, got, tt.want)
			}
		})
	}
}

func TestBandOptimal(t *testing.T) {
	t.Parallel()

	lo, hi := fluency.DefaultConfig().ScoringBands.Rate.Optimal()
	if lo != 120 || hi != 160 {
		t.Errorf("Optimal() = (%v, %v), want (120, 160)", lo, hi)
	}
}

func TestFluencyPolicy(t *testing.T) {
	t.Parallel()

	p := fluency.DefaultConfig().Fluency
	tests := []struct {
		name                  string
		ratio, rate, duration float64
		want                  float64
	}{
		{"clean", 0, 0, 10, 100},
		{"some pauses", 0.2, 4, 10, 88},
		{"capped", 1, 200, 10, 20},
		{"no audio", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		if got := p.Score(tt.ratio, tt.rate, tt.duration); got != tt.want {
			t.Errorf("%s: Score = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConfidence(t *testing.T) {
	t.Parallel()

	cfg := fluency.DefaultConfig()
	all80 := fluency.Scores{Rate: 80, Filler: 80, Pause: 80, Hesitation: 80, Fluency: 80}
	if got := cfg.Confidence(all80); got != 80.0 {
		t.Errorf("Confidence = %v, want 80.0", got)
	}
	if got := cfg.Rating(cfg.Confidence(all80)); got != fluency.RatingGood {
		t.Errorf("Rating = %q, want %q", got, fluency.RatingGood)
	}
}

func TestConfidence_Monotonic(t *testing.T) {
	t.Parallel()

	cfg := fluency.DefaultConfig()
	base := fluency.Scores{Rate: 50, Filler: 50, Pause: 50, Hesitation: 50, Fluency: 50}
	want := cfg.Confidence(base)
	bumps := []fluency.Scores{
		{Rate: 60, Filler: 50, Pause: 50, Hesitation: 50, Fluency: 50},
		{Rate: 50, Filler: 60, Pause: 50, Hesitation: 50, Fluency: 50},
		{Rate: 50, Filler: 50, Pause: 60, Hesitation: 50, Fluency: 50},
		{Rate: 50, Filler: 50, Pause: 50, Hesitation: 60, Fluency: 50},
		{Rate: 50, Filler: 50, Pause: 50, Hesitation: 50, Fluency: 60},
	}
	for i, s := range bumps {
		if got := cfg.Confidence(s); got <= want {
			t.Errorf("bump %d: Confidence = %v, want > %v", i, got, want)
		}
	}
}

func TestRating_Boundaries(t *testing.T) {
	t.Parallel()

	cfg := fluency.DefaultConfig()
	tests := []struct {
		score float64
		want  string
	}{
		{100, fluency.RatingExcellent},
		{85.0, fluency.RatingExcellent},
		{84.9, fluency.RatingGood},
		{70, fluency.RatingGood},
		{69.9, fluency.RatingModerate},
		{55, fluency.RatingModerate},
		{40, fluency.RatingLow},
		{39.9, fluency.RatingVeryLow},
		{0, fluency.RatingVeryLow},
	}
	for _, tt := range tests {
		if got := cfg.Rating(tt.score); got != tt.want {
			t.Errorf("Rating(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	cfg := fluency.DefaultConfig()

	t.Run("all strong", func(t *testing.T) {
		t.Parallel()
		s := fluency.Scores{Rate: 100, Filler: 95, Pause: 100, Hesitation: 100, Fluency: 98}
		recs := cfg.Recommend(s, fluency.Metrics{WPM: 140})
		if len(recs) != 1 {
			t.Fatalf("len = %d, want 1: %v", len(recs), recs)
		}
		if !strings.HasPrefix(recs[0], "Excellent!") || !strings.Contains(recs[0], "filler words") {
			t.Errorf("recs[0] = %q", recs[0])
		}
	})

	t.Run("weakest first", func(t *testing.T) {
		t.Parallel()
		s := fluency.Scores{Rate: 40, Filler: 20, Pause: 100, Hesitation: 100, Fluency: 90}
		recs := cfg.Recommend(s, fluency.Metrics{WPM: 80, FillersPer100: 8.6})
		if len(recs) != 2 {
			t.Fatalf("len = %d, want 2: %v", len(recs), recs)
		}
		if !strings.Contains(recs[0], "8.6 per 100 words") {
			t.Errorf("recs[0] = %q, want filler tip", recs[0])
		}
		if !strings.Contains(recs[1], "faster") || !strings.Contains(recs[1], "120-160 WPM") {
			t.Errorf("recs[1] = %q, want slow-rate tip", recs[1])
		}
	})

	t.Run("fast speaker", func(t *testing.T) {
		t.Parallel()
		s := fluency.Scores{Rate: 30, Filler: 100, Pause: 100, Hesitation: 100, Fluency: 100}
		recs := cfg.Recommend(s, fluency.Metrics{WPM: 205})
		if len(recs) != 1 || !strings.Contains(recs[0], "slowing down") {
			t.Errorf("recs = %v", recs)
		}
	})
}
