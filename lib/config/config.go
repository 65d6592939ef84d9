// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Coder binaries.
//
// Configuration is loaded from a single file specified by:
//   - CODER_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Coder binaries.
type Config struct {
	// Mirror configures where release archives are fetched from.
	Mirror MirrorConfig `yaml:"mirror"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// LogLevel selects the structured logging level.
	// Values: "debug", "info", "warn", "error". Default: info.
	LogLevel string `yaml:"log_level"`
}

// MirrorConfig configures the release mirror.
type MirrorConfig struct {
	// BaseURL is the release mirror root, e.g.
	// "https://releases.example.com/coder-server".
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds a single download request, as a Go
	// duration string. Default: 5m.
	RequestTimeout string `yaml:"request_timeout"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Coder data.
	Root string `yaml:"root"`

	// Releases is where fetched releases are extracted, one
	// subdirectory per version.
	Releases string `yaml:"releases"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback - the
// config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "coder")

	return &Config{
		Mirror: MirrorConfig{
			RequestTimeout: "5m",
		},
		Paths: PathsConfig{
			Root:     defaultRoot,
			Releases: filepath.Join(defaultRoot, "releases"),
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the CODER_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks - if CODER_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CODER_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CODER_CONFIG environment variable not set; " +
			"set it to the path of your coder.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CODER_ROOT": c.Paths.Root,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CODER_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Releases = expandVars(c.Paths.Releases, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Mirror.BaseURL == "" {
		errs = append(errs, fmt.Errorf("mirror.base_url is required"))
	}
	if _, err := c.RequestTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RequestTimeout parses the mirror request timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Mirror.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("mirror.request_timeout: %w", err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("mirror.request_timeout must be positive, got %s", c.Mirror.RequestTimeout)
	}
	return timeout, nil
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.Releases} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
