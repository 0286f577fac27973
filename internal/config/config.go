package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Gateway     GatewayConfig             `json:"gateway"`
	Redis       RedisConfig               `json:"redis"`
	Minio       MinioConfig               `json:"minio"`
	Identity    IdentityConfig            `json:"identity"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// GatewayConfig points at the platform AI gateway used for models without a
// first-party adapter and for image generation and OCR.
type GatewayConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type MinioConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"use_ssl"`
	URLPrefix string `json:"url_prefix"`
}

// IdentityConfig points at the platform identity endpoint used to resolve
// bearer tokens into users.
type IdentityConfig struct {
	BaseURL string `json:"base_url"`
}

type BasicConfig struct {
	ServerAddress  string `json:"server_address"`
	LocalStorePath string `json:"local_store_path"`
	DefaultModel   string `json:"default_model"`
	SnapshotEvery  int    `json:"snapshot_every"`
	HistoryLimit   int    `json:"history_limit"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.BasicConfig.LocalStorePath == "" {
		cfg.BasicConfig.LocalStorePath = "./data/local.db"
	}
	if !filepath.IsAbs(cfg.BasicConfig.LocalStorePath) {
		cfg.BasicConfig.LocalStorePath = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.LocalStorePath)
	}

	return &cfg, nil
}
