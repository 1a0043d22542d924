// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLockfileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lf := &Lockfile{
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Python:      "3.10",
		Channel:     "conda-forge",
		Base:        StageLock{Image: "interlacer-base:abc123", CacheKey: "sha256:deadbeef", Cached: false},
		App:         StageLock{Image: "interlacer-app:def456", CacheKey: "sha256:cafef00d", Cached: true},
	}

	path, err := WriteLockfile(dir, lf)
	if err != nil {
		t.Fatalf("WriteLockfile() error = %v", err)
	}
	if !strings.HasSuffix(path, LockfileName) {
		t.Errorf("path = %q, want %s", path, LockfileName)
	}

	got, err := ReadLockfile(dir)
	if err != nil {
		t.Fatalf("ReadLockfile() error = %v", err)
	}
	if got.Base.Image != lf.Base.Image || got.App.Image != lf.App.Image {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.App.Cached {
		t.Error("cached flag lost in round trip")
	}
	if !got.GeneratedAt.Equal(lf.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, lf.GeneratedAt)
	}
}

func TestWriteLockfile_CreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested/cache"
	if _, err := WriteLockfile(dir, &Lockfile{Python: "3.10"}); err != nil {
		t.Fatalf("WriteLockfile() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
}

func TestReadLockfile_Missing(t *testing.T) {
	t.Parallel()

	if _, err := ReadLockfile(t.TempDir()); err == nil {
		t.Fatal("expected error for missing lockfile")
	}
}
