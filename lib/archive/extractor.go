// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive extracts streamed release archives to a destination
// directory.
//
// Tar-based formats (tar.gz, tar.zst, tar.lz4) extract incrementally:
// the byte stream flows through a decompression stage into a tar
// writer without ever touching disk as a whole. Zip cannot be
// extracted incrementally — the format's central directory sits at the
// end of the file and requires random access — so the stream is first
// materialized to a staging file under the Coder temp namespace and
// extracted from there.
//
// All extraction paths share one failure model, inherited from
// lib/stream: an error anywhere (source stream, decompressor, tar
// writer, staging write) cascades stage to stage and surfaces as the
// error of the whole operation. A failed extraction never leaves a
// stage waiting on input.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/coder-foundation/coder/lib/stream"
)

// Format identifies an archive container format.
type Format string

const (
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
	FormatTarLz4 Format = "tar.lz4"
	FormatZip    Format = "zip"
)

// DetectFormat infers the archive format from an asset filename.
func DetectFormat(filename string) (Format, error) {
	switch {
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(filename, ".tar.zst"):
		return FormatTarZst, nil
	case strings.HasSuffix(filename, ".tar.lz4"):
		return FormatTarLz4, nil
	case strings.HasSuffix(filename, ".zip"):
		return FormatZip, nil
	default:
		return "", fmt.Errorf("unrecognized archive format: %q", filename)
	}
}

// Options configures an Extractor.
type Options struct {
	// Logger receives debug and cleanup diagnostics. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// Extractor extracts streamed archives. The zero value is not usable;
// construct with New.
type Extractor struct {
	logger *slog.Logger
}

// New returns an Extractor with the given options.
func New(options Options) *Extractor {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{logger: logger}
}

// Extract dispatches to the extraction path for the format. The stream
// must be paused; Extract resumes it once the pipeline is wired. On
// success the returned path equals destination.
func (e *Extractor) Extract(ctx context.Context, format Format, s *stream.Stream, destination string) (string, error) {
	switch format {
	case FormatTarGz:
		return e.ExtractTarGz(ctx, s, destination)
	case FormatTarZst:
		return e.ExtractTarZst(ctx, s, destination)
	case FormatTarLz4:
		return e.ExtractTarLz4(ctx, s, destination)
	case FormatZip:
		return e.ExtractZip(ctx, s, destination)
	default:
		return "", fmt.Errorf("unsupported archive format: %q", format)
	}
}

// ExtractTarGz extracts a gzipped tar stream into destination.
func (e *Extractor) ExtractTarGz(ctx context.Context, s *stream.Stream, destination string) (string, error) {
	return e.extractTar(ctx, s, destination, "gunzip", func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	})
}

// ExtractTarZst extracts a zstd-compressed tar stream into destination.
func (e *Extractor) ExtractTarZst(ctx context.Context, s *stream.Stream, destination string) (string, error) {
	return e.extractTar(ctx, s, destination, "unzstd", func(r io.Reader) (io.Reader, error) {
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	})
}

// ExtractTarLz4 extracts an lz4-compressed tar stream into destination.
func (e *Extractor) ExtractTarLz4(ctx context.Context, s *stream.Stream, destination string) (string, error) {
	return e.extractTar(ctx, s, destination, "unlz4", func(r io.Reader) (io.Reader, error) {
		return lz4.NewReader(r), nil
	})
}

// extractTar runs the shared incremental pipeline:
//
//	stream -> decompressor -> tar writer(destination)
//
// The destination is created before any bytes flow, and the stream is
// resumed only after both stages are wired, so the first chunk cannot
// race the listener setup.
func (e *Extractor) extractTar(ctx context.Context, s *stream.Stream, destination, decoderName string, open func(io.Reader) (io.Reader, error)) (string, error) {
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", fmt.Errorf("creating destination %s: %w", destination, err)
	}

	sink := stream.NewSink("untar", func(r io.Reader) error {
		return untar(r, destination)
	})
	decompress := stream.NewTransform(decoderName, open, sink)
	stream.Bind(s, decompress)

	e.logger.Debug("extracting tar archive",
		"decoder", decoderName,
		"destination", destination,
	)

	if err := sink.Wait(ctx); err != nil {
		return "", err
	}
	return destination, nil
}
