package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
env: dev
symbol: BTCUSDT
dataDir: /tmp/candles
interval: "1"
backfill:
  category: spot
  hours: 48
persist:
  every: 10
stats:
  intervalSeconds: 10
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Symbol != "BTCUSDT" || cfg.DataDir != "/tmp/candles" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.IntervalDuration() != time.Minute {
		t.Fatalf("interval duration %v, want 1m", cfg.IntervalDuration())
	}
	// Defaults survive a sparse file.
	if cfg.RecentTrades != 10000 || cfg.Persist.Every != 10 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("CF_FEED_ENDPOINT", "wss://test.local/ws")
	t.Setenv("CF_REST_BASE_URL", "http://test.local")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Feed.Endpoint != "wss://test.local/ws" || cfg.Backfill.BaseURL != "http://test.local" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(AppConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
	cfg := Default()
	cfg.Interval = "90"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown interval")
	}
	cfg = Default()
	cfg.Backfill.Category = "futures"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for bad category")
	}
	cfg = Default()
	cfg.Persist.Every = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for persist.every = 0")
	}
}

func TestIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1":   time.Minute,
		"60":  time.Hour,
		"720": 12 * time.Hour,
		"D":   24 * time.Hour,
		"x":   0,
	}
	for code, want := range cases {
		cfg := AppConfig{Interval: code}
		if got := cfg.IntervalDuration(); got != want {
			t.Fatalf("interval %q: got %v want %v", code, got, want)
		}
	}
}
