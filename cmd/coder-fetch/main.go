// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Coder-fetch downloads a release archive and extracts it into a
// destination directory as a single streamed operation: bytes flow
// from the HTTP response through decompression and unpacking without
// ever buffering the whole archive (zip is the exception, staged to a
// temp file because its index lives at the end).
//
// The asset can be named directly with --url, or assembled from the
// configured mirror with --name and --release, in which case the asset
// filename encodes the running platform (e.g.
// coder-server-1.4.0-linux-amd64.tar.gz).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/coder-foundation/coder/lib/archive"
	"github.com/coder-foundation/coder/lib/config"
	"github.com/coder-foundation/coder/lib/download"
	"github.com/coder-foundation/coder/lib/process"
	"github.com/coder-foundation/coder/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		rawURL      string
		assetName   string
		release     string
		destination string
		formatName  string
		checksum    string
		showVersion bool
	)

	pflag.StringVar(&configPath, "config", "", "path to coder.yaml (overrides CODER_CONFIG)")
	pflag.StringVar(&rawURL, "url", "", "full archive URL (bypasses the configured mirror)")
	pflag.StringVar(&assetName, "name", "coder-server", "asset base name on the mirror")
	pflag.StringVar(&release, "release", "", "release version to fetch from the mirror")
	pflag.StringVar(&destination, "dest", "", "directory to extract into (default: <releases>/<release>)")
	pflag.StringVar(&formatName, "format", "", "archive format override (tar.gz, tar.zst, tar.lz4, zip)")
	pflag.StringVar(&checksum, "checksum", "", "expected BLAKE3 digest of the archive, hex encoded")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		// The full form includes GOOS/GOARCH, which is what decides
		// the asset name this binary will fetch.
		fmt.Printf("coder-fetch %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if rawURL == "" && release == "" {
		return fmt.Errorf("either --url or --release is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}
	client := download.New(download.Options{
		BaseURL:    cfg.Mirror.BaseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	})

	if rawURL == "" {
		if cfg.Mirror.BaseURL == "" {
			return fmt.Errorf("--release requires mirror.base_url in the config (or use --url)")
		}
		rawURL, err = client.AssetURL(assetName, release)
		if err != nil {
			return err
		}
	}

	if destination == "" {
		if release == "" {
			return fmt.Errorf("--dest is required with --url")
		}
		destination = filepath.Join(cfg.Paths.Releases, release)
	}

	format, err := resolveFormat(formatName, rawURL)
	if err != nil {
		return err
	}

	logger.Info("fetching release archive",
		"url", rawURL,
		"destination", destination,
		"format", string(format),
	)
	started := time.Now()

	source, contentLength, err := client.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if checksum != "" {
		source, err = download.VerifyStream(source, checksum)
		if err != nil {
			return err
		}
	}

	extractor := archive.New(archive.Options{Logger: logger})
	if _, err := extractor.Extract(ctx, format, source, destination); err != nil {
		return fmt.Errorf("extracting %s: %w", rawURL, err)
	}

	logger.Info("release extracted",
		"destination", destination,
		"bytes", contentLength,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return nil
}

// loadConfig resolves the configuration: an explicit --config path
// wins, then CODER_CONFIG, then built-in defaults. Unlike service
// binaries, a config file is optional here because --url and --dest
// fully describe a fetch.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if os.Getenv("CODER_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// newLogger builds the CLI logger. When stderr is a terminal it uses
// the text handler for human-readable output; when piped or redirected
// (CI, scripts) it uses the JSON handler for machine-parseable output.
func newLogger(cfg *config.Config) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// resolveFormat picks the archive format: an explicit --format wins,
// otherwise the format is detected from the URL's filename.
func resolveFormat(formatName, rawURL string) (archive.Format, error) {
	if formatName != "" {
		return archive.DetectFormat("archive." + formatName)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing archive URL: %w", err)
	}
	return archive.DetectFormat(path.Base(parsed.Path))
}
