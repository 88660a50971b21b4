package fluency_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

func TestDefaultConfig_Valid(t *testing.T) {
	t.Parallel()

	if err := fluency.DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	t.Parallel()

	doc := `
pause_threshold_seconds: 0.75
hesitation_lexicon: [um, uh, like]
recommendation_thresholds:
  rate: 60
`
	cfg, err := fluency.LoadConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PauseThresholdSeconds != 0.75 {
		t.Errorf("PauseThresholdSeconds = %v, want 0.75", cfg.PauseThresholdSeconds)
	}
	if len(cfg.HesitationLexicon) != 3 {
		t.Errorf("HesitationLexicon = %v", cfg.HesitationLexicon)
	}
	if got := cfg.RecommendationThresholds[fluency.DimensionRate]; got != 60 {
		t.Errorf("rate threshold = %v, want 60", got)
	}
	if got := cfg.Weights.Rate; got != 0.25 {
		t.Errorf("Weights.Rate = %v, want default 0.25", got)
	}
}

func TestLoadConfig_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := fluency.LoadConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PauseThresholdSeconds != 0.5 {
		t.Errorf("PauseThresholdSeconds = %v, want 0.5", cfg.PauseThresholdSeconds)
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := fluency.LoadConfig(strings.NewReader("pause_treshold: 1\n"))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*fluency.Config)
	}{
		{"zero threshold", func(c *fluency.Config) { c.PauseThresholdSeconds = 0 }},
		{"empty lexicon", func(c *fluency.Config) { c.HesitationLexicon = []string{"", "--"} }},
		{"weights sum", func(c *fluency.Config) { c.Weights.Rate = 0.5 }},
		{"negative weight", func(c *fluency.Config) {
			c.Weights.Rate = -0.1
			c.Weights.Filler = 0.6
		}},
		{"unsorted band", func(c *fluency.Config) {
			c.ScoringBands.Filler.Points = []fluency.Point{{5, 70}, {2, 100}}
		}},
		{"score out of range", func(c *fluency.Config) {
			c.ScoringBands.Pause.Points = []fluency.Point{{0.1, 120}}
		}},
		{"ratings order", func(c *fluency.Config) {
			c.Ratings = []fluency.RatingBand{{0, "Low"}, {50, "High"}}
		}},
		{"ratings floor", func(c *fluency.Config) {
			c.Ratings = []fluency.RatingBand{{50, "Pass"}}
		}},
		{"unknown dimension", func(c *fluency.Config) {
			c.RecommendationThresholds = map[fluency.Dimension]float64{"volume": 50}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := fluency.DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, fluency.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if _, err := fluency.New(cfg); !errors.Is(err, fluency.ErrInvalidConfig) {
				t.Errorf("New() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigYAML_RoundTrip(t *testing.T) {
	t.Parallel()

	want := fluency.DefaultConfig()
	want.PauseThresholdSeconds = 0.6
	data, err := want.YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}

	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := fluency.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if got.PauseThresholdSeconds != 0.6 {
		t.Errorf("PauseThresholdSeconds = %v, want 0.6", got.PauseThresholdSeconds)
	}
	if len(got.ScoringBands.Rate.Points) != len(want.ScoringBands.Rate.Points) {
		t.Errorf("rate band points = %d, want %d", len(got.ScoringBands.Rate.Points), len(want.ScoringBands.Rate.Points))
	}
	if got.Ratings[0] != want.Ratings[0] {
		t.Errorf("Ratings[0] = %+v, want %+v", got.Ratings[0], want.Ratings[0])
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	t.Parallel()

	if _, err := fluency.LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
