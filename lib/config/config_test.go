// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LogLevel != "info" {
		t.Errorf("expected log_level=info, got %s", cfg.LogLevel)
	}
	if cfg.Mirror.RequestTimeout != "5m" {
		t.Errorf("expected request_timeout=5m, got %s", cfg.Mirror.RequestTimeout)
	}
	if cfg.Paths.Releases != filepath.Join(cfg.Paths.Root, "releases") {
		t.Errorf("expected releases under root, got %s", cfg.Paths.Releases)
	}
}

func TestLoad_RequiresCoderConfig(t *testing.T) {
	t.Setenv("CODER_CONFIG", "")
	os.Unsetenv("CODER_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CODER_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "CODER_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithCoderConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "coder.yaml")
	configContent := `
mirror:
  base_url: https://releases.example.com/coder-server
  request_timeout: 90s
paths:
  root: /test/root
log_level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CODER_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Mirror.BaseURL != "https://releases.example.com/coder-server" {
		t.Errorf("unexpected base_url: %s", cfg.Mirror.BaseURL)
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		t.Fatalf("RequestTimeout: %v", err)
	}
	if timeout != 90*time.Second {
		t.Errorf("expected timeout=90s, got %s", timeout)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	// Releases keeps its default; it does not track an overridden root.
	if cfg.Paths.Releases == "" {
		t.Error("expected a default releases path")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level=debug, got %s", cfg.LogLevel)
	}
}

func TestLoadFile_ExpandsVariables(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "coder.yaml")
	configContent := `
mirror:
  base_url: https://releases.example.com
paths:
  root: ${HOME}/coder-data
  releases: ${CODER_ROOT}/releases
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("HOME", "/home/tester")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Paths.Root != "/home/tester/coder-data" {
		t.Errorf("expected expanded root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Releases != "/home/tester/coder-data/releases" {
		t.Errorf("expected releases under expanded root, got %s", cfg.Paths.Releases)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Mirror.BaseURL = "https://releases.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base_url", func(c *Config) { c.Mirror.BaseURL = "" }},
		{"bad timeout", func(c *Config) { c.Mirror.RequestTimeout = "soon" }},
		{"negative timeout", func(c *Config) { c.Mirror.RequestTimeout = "-1s" }},
		{"empty root", func(c *Config) { c.Paths.Root = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broken := Default()
			broken.Mirror.BaseURL = "https://releases.example.com"
			tc.mutate(broken)
			if err := broken.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	level, err := cfg.SlogLevel()
	if err != nil {
		t.Fatalf("SlogLevel: %v", err)
	}
	if level.String() != "WARN" {
		t.Errorf("expected WARN, got %s", level)
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "coder")
	cfg := Default()
	cfg.Paths.Root = root
	cfg.Paths.Releases = filepath.Join(root, "releases")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.Releases); err != nil {
		t.Errorf("releases dir not created: %v", err)
	}
}
