package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	yaml := []byte(`
server:
  port: 18800
  host: localhost
analyzer:
  url: http://localhost:18901
  timeout: 10s
  mode: auto
match:
  format: t20
  innings: 2
  target_score: 180
`)
	f, _ := os.CreateTemp("", "config-*.yaml")
	f.Write(yaml)
	f.Close()
	defer os.Remove(f.Name())

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 18800 {
		t.Errorf("Expected port 18800, got %d", cfg.Server.Port)
	}
	if cfg.Analyzer.URL != "http://localhost:18901" {
		t.Errorf("Expected analyzer url override, got %s", cfg.Analyzer.URL)
	}
	if cfg.Analyzer.GetTimeout() != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %s", cfg.Analyzer.GetTimeout())
	}
	if cfg.Match.TargetScore != 180 {
		t.Errorf("Expected target 180, got %d", cfg.Match.TargetScore)
	}
	// Unset sections keep their defaults.
	if cfg.Baseline.Path != "pitchsense.db" {
		t.Errorf("Expected default baseline path, got %s", cfg.Baseline.Path)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid port")
	}
}

func TestValidateBadMode(t *testing.T) {
	cfg := Default()
	cfg.Analyzer.Mode = "turbo"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for unknown mode")
	}
}

func TestValidateBadFormat(t *testing.T) {
	cfg := Default()
	cfg.Match.Format = "t5"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for unknown format")
	}
}
