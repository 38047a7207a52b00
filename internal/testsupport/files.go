package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WritePart creates a fake media file of exactly size bytes under dir and
// returns its path. Parent directories are created as needed.
func WritePart(t testing.TB, dir, name string, size int64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if size < 0 {
		size = 0
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
