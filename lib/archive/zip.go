// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/coder-foundation/coder/lib/stream"
	"github.com/coder-foundation/coder/lib/tempdir"
)

// ExtractZip extracts a zip stream into destination. The stream is
// first written to a staging file in a fresh, per-call-unique temp
// area (zip requires random access to its trailing central directory),
// then extracted with whole-file access. The staging area is removed
// unconditionally afterward; a cleanup failure is logged but never
// overrides the extraction's primary outcome.
func (e *Extractor) ExtractZip(ctx context.Context, s *stream.Stream, destination string) (string, error) {
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", fmt.Errorf("creating destination %s: %w", destination, err)
	}

	// A unique name per call keeps concurrent zip extractions from
	// deleting each other's in-flight staging data during cleanup.
	stagingName := "unzip-" + uuid.NewString()
	stagingDir, err := tempdir.Make(stagingName)
	if err != nil {
		return "", fmt.Errorf("creating zip staging area: %w", err)
	}
	defer func() {
		if removeErr := tempdir.Remove(stagingName); removeErr != nil {
			e.logger.Error("removing zip staging area", "error", removeErr)
		}
	}()

	archivePath := filepath.Join(stagingDir, "archive.zip")
	sink := stream.NewSink("zip staging write", func(r io.Reader) error {
		return writeStagingFile(archivePath, r)
	})
	stream.Bind(s, sink)

	e.logger.Debug("staging zip archive",
		"staging", archivePath,
		"destination", destination,
	)

	if err := sink.Wait(ctx); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := unzip(archivePath, destination); err != nil {
		return "", err
	}
	return destination, nil
}

// writeStagingFile copies the staged stream to disk, surfacing both
// copy and close errors (a failed close can hide a short write).
func writeStagingFile(path string, content io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// unzip extracts a zip file from disk under destination, with the same
// containment rules as the tar path: local entry names only, and all
// writes through an os.Root so symlinks cannot redirect them outside
// the destination.
func unzip(archivePath, destination string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening staged zip: %w", err)
	}
	defer reader.Close()

	root, err := os.OpenRoot(destination)
	if err != nil {
		return fmt.Errorf("opening destination %s: %w", destination, err)
	}
	defer root.Close()

	for _, entry := range reader.File {
		name, err := entryName(entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := root.MkdirAll(name, entry.Mode().Perm()); err != nil {
				return fmt.Errorf("creating directory %s: %w", entry.Name, err)
			}
			continue
		}

		content, err := entry.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry %s: %w", entry.Name, err)
		}
		writeErr := writeEntry(root, name, content, entry.Mode().Perm())
		content.Close()
		if writeErr != nil {
			return fmt.Errorf("writing zip entry %s: %w", entry.Name, writeErr)
		}
	}
	return nil
}
