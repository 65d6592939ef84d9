// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package tempdir manages scratch directories under a single Coder
// namespace in the system temp root. Keeping every transient directory
// under <os-tmp>/coder/<name>/ means cleanup can remove a whole named
// area in one call without touching unrelated temp usage.
package tempdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// namespace is the directory under the OS temp root that holds all
// Coder scratch directories.
const namespace = "coder"

// Make creates and returns a fresh uniquely-suffixed directory
// <os-tmp>/coder/<name>/tmp-<random>, creating parents as needed. The
// unique suffix comes from the OS primitive, so concurrent Make calls
// with the same name never collide.
func Make(name string) (string, error) {
	parent := filepath.Join(os.TempDir(), namespace, name)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating temp area %s: %w", parent, err)
	}
	directory, err := os.MkdirTemp(parent, "tmp-")
	if err != nil {
		return "", fmt.Errorf("creating temp directory under %s: %w", parent, err)
	}
	return directory, nil
}

// Remove recursively deletes <os-tmp>/coder/<name> and everything
// under it. Removing a name that was never created is a no-op, so
// cleanup paths can call Remove unconditionally.
func Remove(name string) error {
	target := filepath.Join(os.TempDir(), namespace, name)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("removing temp area %s: %w", target, err)
	}
	return nil
}
