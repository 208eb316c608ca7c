package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file created by `ledgerline init`.
const FileName = "ledgerline.yaml"

// Config represents the top-level ledgerline.yaml configuration.
type Config struct {
	User      string       `yaml:"user"`
	Workspace string       `yaml:"workspace,omitempty"`
	Server    ServerConfig `yaml:"server"`
	Client    ClientConfig `yaml:"client"`
	Log       LogConfig    `yaml:"log"`
}

// ServerConfig locates the authoritative event-log database.
type ServerConfig struct {
	Database string `yaml:"database"`
}

// ClientConfig locates this installation's replica state.
type ClientConfig struct {
	Database string `yaml:"database"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Mode string `yaml:"mode"` // "debug" or "production"
}

// Load reads a ledgerline.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults rooted at dir.
func Default(dir, user string) *Config {
	return &Config{
		User: user,
		Server: ServerConfig{
			Database: filepath.Join(dir, "server.db"),
		},
		Client: ClientConfig{
			Database: filepath.Join(dir, "client.db"),
		},
		Log: LogConfig{
			Mode: "production",
		},
	}
}
