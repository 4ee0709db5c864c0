// Package config holds the emitter options an application can load
// from its configuration file, with sensible defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harrison/crier"
	"github.com/harrison/crier/internal/logfile"
)

// EnvVerbosity overrides the configured verbosity when set.
const EnvVerbosity = "CRIER_VERBOSITY"

// Config represents the output-layer configuration of an application.
type Config struct {
	// Verbosity is the starting mode (quiet, brief, verbose, debug, trace).
	Verbosity string `yaml:"verbosity"`

	// LogPath adopts an explicit, unmanaged log file when non-empty.
	LogPath string `yaml:"log_path"`

	// MaxLogFiles is the managed log retention count.
	MaxLogFiles int `yaml:"max_log_files"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Verbosity:   crier.Brief.String(),
		MaxLogFiles: logfile.DefaultMaxFiles,
	}
}

// LoadConfig reads a yaml config file, applying defaults for anything
// the file does not set.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configured values.
func (c *Config) Validate() error {
	if _, err := crier.ParseMode(c.Verbosity); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxLogFiles < 0 {
		return fmt.Errorf("config: max_log_files cannot be negative (got %d)", c.MaxLogFiles)
	}
	return nil
}

// Mode resolves the starting verbosity, honoring the CRIER_VERBOSITY
// environment override.
func (c *Config) Mode() (crier.Mode, error) {
	name := c.Verbosity
	if env := os.Getenv(EnvVerbosity); env != "" {
		name = env
	}
	return crier.ParseMode(name)
}
