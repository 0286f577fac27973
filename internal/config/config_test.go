package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"basic_config": {
			"server_address": ":9000",
			"default_model": "gpt-4o-mini",
			"snapshot_every": 5,
			"history_limit": 50
		},
		"providers": {
			"openai": {"base_url": "https://api.openai.com/v1", "model": "gpt-4o-mini", "api_key": "sk-test"}
		},
		"gateway": {"base_url": "https://gateway.example", "api_key": "gw-key"},
		"redis": {"host": "localhost", "port": 6379},
		"minio": {"endpoint": "localhost:9000", "bucket": "uploads"},
		"identity": {"base_url": "https://id.example"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("server address = %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Providers["openai"].APIKey != "sk-test" {
		t.Fatalf("provider key = %q", cfg.Providers["openai"].APIKey)
	}
	if cfg.Gateway.BaseURL != "https://gateway.example" {
		t.Fatalf("gateway url = %q", cfg.Gateway.BaseURL)
	}
	if cfg.Redis.Port != 6379 {
		t.Fatalf("redis port = %d", cfg.Redis.Port)
	}

	// The local store path defaults and resolves relative to the config dir.
	want := filepath.Join(dir, "data", "local.db")
	if cfg.BasicConfig.LocalStorePath != want {
		t.Fatalf("local store path = %q, want %q", cfg.BasicConfig.LocalStorePath, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid config")
	}
}
