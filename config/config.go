// Package config handles persistent CLI defaults.
//
// Config is stored at $XDG_CONFIG_HOME/skiff/config.yaml (defaults to
// ~/.config/skiff/config.yaml). Flags always win over config values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds defaults applied when the matching flag is not given.
type Config struct {
	// File is the default topology file path.
	File string `yaml:"file,omitempty"`
	// Project overrides the project name from the document.
	Project string `yaml:"project,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log-level,omitempty"`
	// Grace is the stop grace period, e.g. "10s".
	Grace string `yaml:"grace,omitempty"`
	// EnvFiles are env files layered under the process environment.
	EnvFiles []string `yaml:"env-files,omitempty"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/skiff/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "skiff", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "skiff", "config.yaml")
}

// Load reads the config file. If the file does not exist, an empty Config
// is returned (not an error).
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
