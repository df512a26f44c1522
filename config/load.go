package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"candle-feed-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env          string         `yaml:"env"`
	Symbol       string         `yaml:"symbol"`
	DataDir      string         `yaml:"dataDir"`
	Interval     string         `yaml:"interval"` // Bybit kline code: "1", "5", "60", "D", ...
	RecentTrades int            `yaml:"recentTrades"`
	Backfill     BackfillConfig `yaml:"backfill"`
	Feed         FeedConfig     `yaml:"feed"`
	Persist      PersistConfig  `yaml:"persist"`
	Stats        StatsConfig    `yaml:"stats"`
	MetricsAddr  string         `yaml:"metricsAddr"`
	Log          logger.Config  `yaml:"log"`
}

// BackfillConfig drives the historical seed fetch.
type BackfillConfig struct {
	BaseURL  string `yaml:"baseURL"`
	Category string `yaml:"category"` // spot | linear | inverse
	Hours    int    `yaml:"hours"`    // window ending now
}

type FeedConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type PersistConfig struct {
	Every int `yaml:"every"` // save every N finalized candles
}

type StatsConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides endpoint fields from env
// vars if present. Useful for pointing a deployment at a test upstream
// without editing the file.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("CF_FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("CF_REST_BASE_URL"); v != "" {
		cfg.Backfill.BaseURL = v
	}
	return cfg, Validate(cfg)
}

// Default returns the configuration matching the original single-symbol
// deployment: 1-minute buckets, 48h backfill, save every 10 candles.
func Default() AppConfig {
	return AppConfig{
		Env:          "dev",
		Symbol:       "BTCUSDT",
		DataDir:      "data",
		Interval:     "1",
		RecentTrades: 10000,
		Backfill:     BackfillConfig{Category: "spot", Hours: 48},
		Persist:      PersistConfig{Every: 10},
		Stats:        StatsConfig{IntervalSeconds: 10},
		Log:          logger.DefaultConfig(),
	}
}

// IntervalDuration maps the Bybit interval code to a bucket width.
// Sub-day intervals are plain minute counts; "D", "W", "M" are day, week
// and (approximate) month. Unknown codes map to 0.
func (c AppConfig) IntervalDuration() time.Duration {
	switch c.Interval {
	case "1", "3", "5", "15", "30", "60", "120", "240", "360", "720":
		mins, _ := strconv.Atoi(c.Interval)
		return time.Duration(mins) * time.Minute
	case "D":
		return 24 * time.Hour
	case "W":
		return 7 * 24 * time.Hour
	case "M":
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Validate ensures required fields are present and sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	if cfg.DataDir == "" {
		return errors.New("dataDir is required")
	}
	if cfg.IntervalDuration() <= 0 {
		return fmt.Errorf("interval %q is not a known kline interval", cfg.Interval)
	}
	if cfg.RecentTrades < 0 {
		return errors.New("recentTrades must be >= 0")
	}
	if cfg.Backfill.Hours <= 0 {
		return errors.New("backfill.hours must be > 0")
	}
	switch cfg.Backfill.Category {
	case "spot", "linear", "inverse":
	default:
		return fmt.Errorf("backfill.category %q not one of spot/linear/inverse", cfg.Backfill.Category)
	}
	if cfg.Persist.Every <= 0 {
		return errors.New("persist.every must be > 0")
	}
	if cfg.Stats.IntervalSeconds <= 0 {
		return errors.New("stats.intervalSeconds must be > 0")
	}
	return nil
}
