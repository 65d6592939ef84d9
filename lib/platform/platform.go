// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform maps the running OS and CPU architecture to the
// naming scheme used for release assets. The target string selects
// which archive a downloader fetches, and the archive extension
// selects which extraction path handles it (zip on Windows, gzipped
// tar everywhere else).
package platform

import (
	"fmt"
	"runtime"
)

// Target returns the asset target for the running platform, e.g.
// "linux-amd64" or "darwin-arm64". Windows assets are published
// without an architecture suffix, so the target is just "windows".
func Target() string {
	return target(runtime.GOOS, runtime.GOARCH)
}

// target is the testable core of Target.
func target(goos, goarch string) string {
	if goos == "windows" {
		return "windows"
	}
	return goos + "-" + assetArch(goarch)
}

// assetArch translates Go architecture names into the asset naming
// scheme, which uses amd64/amd32 where release tooling elsewhere says
// x64/x32. Architectures without a special name pass through.
func assetArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "amd64"
	case "386":
		return "amd32"
	default:
		return goarch
	}
}

// ArchiveExtension returns the archive format extension for the
// running platform's assets: "zip" on Windows, "tar.gz" elsewhere.
func ArchiveExtension() string {
	return archiveExtension(runtime.GOOS)
}

func archiveExtension(goos string) string {
	if goos == "windows" {
		return "zip"
	}
	return "tar.gz"
}

// AssetName composes the full release asset filename for the running
// platform: "<base>-<version>-<target>.<ext>".
func AssetName(base, version string) string {
	return fmt.Sprintf("%s-%s-%s.%s", base, version, Target(), ArchiveExtension())
}
