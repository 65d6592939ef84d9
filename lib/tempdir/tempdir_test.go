// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package tempdir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coder-foundation/coder/lib/testutil"
)

func TestMakeCreatesNamespacedDirectory(t *testing.T) {
	name := testutil.UniqueID("make")
	t.Cleanup(func() {
		_ = Remove(name)
	})

	directory, err := Make(name)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}

	expectedParent := filepath.Join(os.TempDir(), "coder", name)
	if filepath.Dir(directory) != expectedParent {
		t.Errorf("directory %s not under %s", directory, expectedParent)
	}
	if !strings.HasPrefix(filepath.Base(directory), "tmp-") {
		t.Errorf("directory %s missing tmp- prefix", directory)
	}

	info, err := os.Stat(directory)
	if err != nil {
		t.Fatalf("stat created directory: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", directory)
	}
}

func TestMakeIsUniquePerCall(t *testing.T) {
	name := testutil.UniqueID("unique")
	t.Cleanup(func() {
		_ = Remove(name)
	})

	first, err := Make(name)
	if err != nil {
		t.Fatalf("first Make: %v", err)
	}
	second, err := Make(name)
	if err != nil {
		t.Fatalf("second Make: %v", err)
	}
	if first == second {
		t.Errorf("two Make calls returned the same directory %s", first)
	}
}

func TestRemoveDeletesWholeName(t *testing.T) {
	name := testutil.UniqueID("remove")
	directory, err := Make(name)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if err := os.WriteFile(filepath.Join(directory, "payload.zip"), []byte("data"), 0o644); err != nil {
		t.Fatalf("writing payload: %v", err)
	}

	if err := Remove(name); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(os.TempDir(), "coder", name)); !os.IsNotExist(err) {
		t.Errorf("temp area still present after Remove (stat err: %v)", err)
	}
}

func TestRemoveNeverCreatedNameSucceeds(t *testing.T) {
	if err := Remove(testutil.UniqueID("never-created")); err != nil {
		t.Errorf("Remove of absent name: %v", err)
	}
}
