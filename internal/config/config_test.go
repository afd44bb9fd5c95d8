package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_AppliesDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("store_path: custom.db\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorePath != "custom.db" {
		t.Errorf("expected store_path override, got %q", cfg.StorePath)
	}
	if cfg.ChannelCapacity != 10000 {
		t.Errorf("expected default channel_capacity=10000, got %d", cfg.ChannelCapacity)
	}
	if cfg.BatchSize != 500 {
		t.Errorf("expected default batch_size=500, got %d", cfg.BatchSize)
	}
	if !cfg.PipelineEnabled {
		t.Error("expected default pipeline_enabled=true")
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_EnvOverridesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("store_path: file.db\napi_port: 8080\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SOLFLOW_STORE_PATH", "env.db")
	t.Setenv("SOLFLOW_API_PORT", "9090")
	t.Setenv("SOLFLOW_PIPELINE_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorePath != "env.db" {
		t.Errorf("expected env override of store_path, got %q", cfg.StorePath)
	}
	if cfg.APIPort != 9090 {
		t.Errorf("expected env override of api_port, got %d", cfg.APIPort)
	}
	if cfg.PipelineEnabled {
		t.Error("expected pipeline_enabled=false from env override")
	}
}
