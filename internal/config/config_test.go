package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
platform:
  base_url: https://api.example.com
tracker:
  poll_interval: 3s
access:
  buffer_window: 5m
chains:
  - chain_id: 8453
    name: base
    explorer_url: https://basescan.org
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Platform.BaseURL != "https://api.example.com" {
		t.Errorf("base_url = %q", cfg.Platform.BaseURL)
	}
	if cfg.Tracker.PollInterval.Duration != 3*time.Second {
		t.Errorf("poll_interval = %v, want 3s", cfg.Tracker.PollInterval.Duration)
	}
	if cfg.Access.BufferWindow.Duration != 5*time.Minute {
		t.Errorf("buffer_window = %v, want 5m", cfg.Access.BufferWindow.Duration)
	}
	if cfg.Access.MaxRetries != 3 {
		t.Errorf("max_retries default = %d, want 3", cfg.Access.MaxRetries)
	}
	if cfg.Cache.Backend != "memory" || cfg.Records.Backend != "memory" {
		t.Errorf("backend defaults = %q/%q, want memory/memory", cfg.Cache.Backend, cfg.Records.Backend)
	}
	if len(cfg.Chains) != 1 || cfg.Chains[0].ChainID != 8453 {
		t.Errorf("chains = %+v", cfg.Chains)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
platform:
  base_url: https://api.example.com
`)
	t.Setenv("GATE_PLATFORM_BASE_URL", "https://api.override.example.com")
	t.Setenv("GATE_TRACKER_POLL_INTERVAL", "10s")
	t.Setenv("GATE_ACCESS_AUTO_AUTH", "false")
	t.Setenv("GATE_ACCESS_MAX_RETRIES", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform.BaseURL != "https://api.override.example.com" {
		t.Errorf("env override lost: %q", cfg.Platform.BaseURL)
	}
	if cfg.Tracker.PollInterval.Duration != 10*time.Second {
		t.Errorf("poll_interval = %v, want 10s", cfg.Tracker.PollInterval.Duration)
	}
	if cfg.Access.AutoAuth {
		t.Error("auto_auth should be disabled by env")
	}
	if cfg.Access.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want 5", cfg.Access.MaxRetries)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"missing base url", `logging: {level: info}`},
		{"stripe source without key", `
platform: {base_url: https://api.example.com}
tracker: {status_source: stripe}
`},
		{"redis without addr", `
platform: {base_url: https://api.example.com}
cache: {backend: redis}
`},
		{"postgres without url", `
platform: {base_url: https://api.example.com}
records: {backend: postgres}
`},
		{"duplicate chain id", `
platform: {base_url: https://api.example.com}
chains:
  - {chain_id: 1, name: mainnet}
  - {chain_id: 1, name: copy}
`},
		{"unknown status source", `
platform: {base_url: https://api.example.com}
tracker: {status_source: carrier-pigeon}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.contents)
			if _, err := Load(path); err == nil {
				t.Error("want validation error, got nil")
			}
		})
	}
}

func TestDurationYAMLSecondsFallback(t *testing.T) {
	path := writeConfig(t, `
platform:
  base_url: https://api.example.com
tracker:
  poll_interval: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracker.PollInterval.Duration != 5*time.Second {
		t.Errorf("bare number should parse as seconds, got %v", cfg.Tracker.PollInterval.Duration)
	}
}
