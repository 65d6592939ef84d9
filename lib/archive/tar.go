// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// untar writes the entries of a tar stream under destination. Entry
// names must stay local to the destination and symlink targets must
// resolve inside it. All filesystem writes go through an os.Root, so a
// symlink smuggled into the tree (or already present in the
// destination) can never redirect a later entry outside it — checking
// the entry name alone is not enough once symlinks are in play.
func untar(r io.Reader, destination string) error {
	root, err := os.OpenRoot(destination)
	if err != nil {
		return fmt.Errorf("opening destination %s: %w", destination, err)
	}
	defer root.Close()

	reader := tar.NewReader(r)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name, err := entryName(header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("creating directory %s: %w", header.Name, err)
			}

		case tar.TypeReg:
			if err := writeEntry(root, name, reader, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("writing file %s: %w", header.Name, err)
			}

		case tar.TypeSymlink:
			if err := checkLinkTarget(name, header.Linkname); err != nil {
				return err
			}
			if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", header.Name, err)
			}
			if err := root.Symlink(header.Linkname, name); err != nil {
				return fmt.Errorf("creating symlink %s: %w", header.Name, err)
			}

		default:
			// Character devices, fifos, and other special entries have
			// no business in a release archive. Skip them.
		}
	}
}

// entryName normalizes an archive entry name to a destination-relative
// path, rejecting names that would escape it.
func entryName(name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("archive entry %q escapes the destination directory", name)
	}
	return local, nil
}

// checkLinkTarget rejects symlink targets that point outside the
// destination: absolute targets, and relative targets that climb out
// through the entry's directory. The os.Root write path would catch a
// later entry routed through such a link, but rejecting the link
// itself keeps the escaping symlink out of the extracted tree
// entirely.
func checkLinkTarget(name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("symlink %q has absolute target %q", name, linkname)
	}
	resolved := filepath.Join(filepath.Dir(name), filepath.FromSlash(linkname))
	if !filepath.IsLocal(resolved) {
		return fmt.Errorf("symlink %q target %q escapes the destination directory", name, linkname)
	}
	return nil
}

// writeEntry creates a file (and any missing parents — tar streams do
// not always carry explicit directory entries) and copies the entry
// content into it.
func writeEntry(root *os.Root, name string, content io.Reader, mode os.FileMode) error {
	if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	file, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
