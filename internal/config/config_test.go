package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Run from a temp dir so no real config file is picked up.
	wd, _ := os.Getwd()
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLM.Primary != "openai" {
		t.Errorf("expected default primary openai, got %q", cfg.LLM.Primary)
	}
	if cfg.Validation.PriceTolerance != 0.02 {
		t.Errorf("expected price tolerance 0.02, got %v", cfg.Validation.PriceTolerance)
	}
	if cfg.Validation.QualityFloor != 70 {
		t.Errorf("expected quality floor 70, got %d", cfg.Validation.QualityFloor)
	}
	if cfg.Validation.ConfidenceCap != 75 {
		t.Errorf("expected confidence cap 75, got %v", cfg.Validation.ConfidenceCap)
	}
	if cfg.Tracker.MaxHoldingDays != 30 {
		t.Errorf("expected max holding days 30, got %d", cfg.Tracker.MaxHoldingDays)
	}
	if cfg.Tracker.BatchIntervalSec != 13 {
		t.Errorf("expected batch interval 13s, got %d", cfg.Tracker.BatchIntervalSec)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.API.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  primary: anthropic
  model: claude-sonnet-4-20250514
validation:
  price_tolerance: 0.05
tracker:
  max_holding_days: 45
brief:
  watchlist: [AAPL, MSFT]
  max_picks: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.LLM.Primary != "anthropic" {
		t.Errorf("expected anthropic, got %q", cfg.LLM.Primary)
	}
	if cfg.Validation.PriceTolerance != 0.05 {
		t.Errorf("expected 0.05, got %v", cfg.Validation.PriceTolerance)
	}
	// Unset values keep their defaults.
	if cfg.Validation.QualityFloor != 70 {
		t.Errorf("expected default quality floor, got %d", cfg.Validation.QualityFloor)
	}
	if cfg.Tracker.MaxHoldingDays != 45 {
		t.Errorf("expected 45, got %d", cfg.Tracker.MaxHoldingDays)
	}
	if len(cfg.Brief.Watchlist) != 2 || cfg.Brief.Watchlist[0] != "AAPL" {
		t.Errorf("unexpected watchlist %v", cfg.Brief.Watchlist)
	}
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  primary: openai\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MARKETBRIEF_LLM_OPENAI_KEY", "sk-test-123")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.LLM.OpenAIKey != "sk-test-123" {
		t.Errorf("expected env key override, got %q", cfg.LLM.OpenAIKey)
	}
}
