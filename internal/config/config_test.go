package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "MAX_UPLOAD_MB", "STT_BACKEND", "STT_LANGUAGE", "REPORT_CACHE_TTL_MINUTES", "CHECK_RELEVANCE", "DB_APPLICATION_NAME", "DB_STATEMENT_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.Analysis.MaxUploadBytes != 25<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.Analysis.MaxUploadBytes)
	}
	if cfg.Analysis.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v", cfg.Analysis.CacheTTL)
	}
	if !cfg.Analysis.CheckRelevance {
		t.Error("CheckRelevance should default to true")
	}
	if cfg.STT.Backend != "openai" || cfg.STT.Language != "" {
		t.Errorf("STT = %+v", cfg.STT)
	}
	if cfg.Database.ApplicationName != "fluencycoach" || cfg.Database.StatementTimeout != 30*time.Second {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestLoad_InvalidNumbers(t *testing.T) {
	tests := map[string]string{
		"SERVER_PORT":                  "eighty",
		"MAX_UPLOAD_MB":                "lots",
		"CLASSIFIER_TEMPERATURE":       "warm",
		"METRICS_ENABLED":              "maybe",
		"DB_STATEMENT_TIMEOUT_SECONDS": "soon",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("Load() error = %v, want mention of %s", err, key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("STT_BACKEND", "")
	t.Setenv("TTS_BACKEND", "local")
	t.Setenv("TTS_LOCAL_PIPER_MODEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"OPENAI_API_KEY", "TTS_LOCAL_PIPER_MODEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %s", err, want)
		}
	}

	cfg.STT.Backend = "local"
	cfg.TTS.LocalModel = "en_US-amy-medium.onnx"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	got := getEnvList("CORS_ORIGINS", []string{"*"})
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("getEnvList = %q", got)
	}

	t.Setenv("CORS_ORIGINS", "")
	if got := getEnvList("CORS_ORIGINS", []string{"*"}); len(got) != 1 || got[0] != "*" {
		t.Errorf("fallback = %q", got)
	}
}
