// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package download acquires release archives over HTTP as pausable
// byte streams. The client returns streams paused so the caller can
// hand them to an extractor, which re-arms the stream once its
// pipeline is wired — the handshake that keeps the first chunk from
// arriving before anyone is listening.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder-foundation/coder/lib/platform"
	"github.com/coder-foundation/coder/lib/stream"
	"github.com/coder-foundation/coder/lib/version"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the release mirror root, e.g.
	// "https://releases.example.com/coder-server".
	BaseURL string

	// HTTPClient defaults to a client with a 5 minute timeout.
	HTTPClient *http.Client

	// Logger receives request diagnostics. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// Client fetches release assets.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New returns a Client with the given options.
func New(options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(options.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// AssetURL returns the download URL for the named asset at the given
// version, for the running platform.
func (c *Client) AssetURL(base, version string) (string, error) {
	asset := platform.AssetName(base, version)
	full, err := url.JoinPath(c.baseURL, version, asset)
	if err != nil {
		return "", fmt.Errorf("building asset URL for %s: %w", asset, err)
	}
	return full, nil
}

// Fetch GETs the URL and returns the response body as a paused stream,
// along with the declared content length (-1 when unknown). A non-2xx
// status is an error. The stream owns the response body and closes it
// when drained or failed; the caller owns the stream.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*stream.Stream, int64, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	request.Header.Set("User-Agent", "coder/"+version.Short())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		response.Body.Close()
		return nil, 0, fmt.Errorf("fetching %s: status %d: %s",
			rawURL, response.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Debug("download started",
		"url", rawURL,
		"content_length", response.ContentLength,
	)
	return stream.FromReader(response.Body), response.ContentLength, nil
}
