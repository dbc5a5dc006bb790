package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempDir creates a temporary directory for testing.
func TempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "geoindex-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// IndexPaths returns the backing-store, header, and WAL file paths a
// SpatialIndex needs, rooted under a fresh TempDir.
func IndexPaths(t *testing.T) (backing, header, log string) {
	dir := TempDir(t)
	return filepath.Join(dir, "data.bin"), filepath.Join(dir, "header.yaml"), filepath.Join(dir, "wal.log")
}
