// Package config loads SolFlow's YAML configuration file, mirroring the
// teacher's internal/config.Load shape: a typed struct unmarshalled
// directly from a file path, with defaults applied the way
// ingester.NewService applies defaults to its own Config struct, plus
// environment variable overrides for secrets and paths.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is SolFlow's full runtime configuration, covering every option
// in the external interfaces table.
type Config struct {
	ChannelCapacity   int    `yaml:"channel_capacity"`
	DeltaFlushSeconds int    `yaml:"delta_flush_seconds"`
	FullFlushSeconds  int    `yaml:"full_flush_seconds"`
	BatchSize         int    `yaml:"batch_size"`
	PruneThresholdSec int64  `yaml:"prune_threshold_seconds"`
	PruneIntervalSec  int    `yaml:"prune_interval_seconds"`
	StorePath         string `yaml:"store_path"`
	PipelineEnabled   bool   `yaml:"pipeline_enabled"`

	TradeSourceURL string `yaml:"trade_source_url"`

	APIPort                int    `yaml:"api_port"`
	APIJWTSecret           string `yaml:"-"` // env-only, never persisted to disk
	APIRateLimitRPS        float64 `yaml:"api_rate_limit_rps"`
	APIRateBurst           int    `yaml:"api_rate_limit_burst"`
	APIRateLimitTTLMinutes int    `yaml:"api_rate_limit_ttl_minutes"`

	AlertsWebhookAuthToken string `yaml:"-"` // env-only
	AlertsAppID            string `yaml:"alerts_app_id"`

	MetadataRefreshSeconds int `yaml:"metadata_refresh_seconds"`
}

// defaults mirrors spec section 6's stated default values.
func defaults() Config {
	return Config{
		ChannelCapacity:        10000,
		DeltaFlushSeconds:      5,
		FullFlushSeconds:       60,
		BatchSize:              500,
		PruneThresholdSec:      7200,
		PruneIntervalSec:       60,
		StorePath:              "solflow.db",
		PipelineEnabled:        true,
		APIPort:                8080,
		APIRateLimitRPS:        10,
		APIRateBurst:           20,
		APIRateLimitTTLMinutes: 15,
		MetadataRefreshSeconds: 300,
	}
}

// Load reads a YAML file at path, applies defaults for unset fields, and
// layers environment variable overrides for secrets and paths on top —
// the same two-step shape as the teacher's main.go (YAML config base,
// env vars override at the edges).
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLFLOW_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("SOLFLOW_TRADE_SOURCE_URL"); v != "" {
		cfg.TradeSourceURL = v
	}
	if v := os.Getenv("SOLFLOW_API_JWT_SECRET"); v != "" {
		cfg.APIJWTSecret = v
	}
	if v := os.Getenv("SOLFLOW_ALERTS_WEBHOOK_TOKEN"); v != "" {
		cfg.AlertsWebhookAuthToken = v
	}
	if v := os.Getenv("SOLFLOW_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = n
		}
	}
	if v := os.Getenv("SOLFLOW_PIPELINE_ENABLED"); v != "" {
		cfg.PipelineEnabled = v != "false"
	}
}
