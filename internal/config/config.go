package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Addr         string        `yaml:"addr"`
	DatabasePath string        `yaml:"database_path"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Load builds the configuration: defaults, then an optional YAML file,
// then environment variables (a .env file is honored if present).
func Load(configPath string) (*Config, error) {
	// Ignore error if no .env file exists
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	cfg := &Config{
		Addr:         ":8080",
		DatabasePath: filepath.Join(home, ".meddiary", "meddiary.db"),
		TokenTTL:     7 * 24 * time.Hour,
	}

	if configPath == "" {
		configPath = os.Getenv("MEDDIARY_CONFIG")
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("MEDDIARY_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("MEDDIARY_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("MEDDIARY_TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse MEDDIARY_TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = ttl
	}

	return cfg, nil
}
