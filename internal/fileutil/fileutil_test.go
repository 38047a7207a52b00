package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "part-01.mp4")
	dst := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(src, []byte("clip bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "clip bytes" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestDirUsage(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "chat1-r1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "chat1-r1", "clip.mp4"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray"), make([]byte, 20), 0o644); err != nil {
		t.Fatal(err)
	}
	size, files, err := DirUsage(dir)
	if err != nil {
		t.Fatal(err)
	}
	if size != 120 || files != 2 {
		t.Fatalf("DirUsage = %d bytes, %d files", size, files)
	}

	size, files, err = DirUsage(filepath.Join(dir, "missing"))
	if err != nil || size != 0 || files != 0 {
		t.Fatalf("missing root: %d %d %v", size, files, err)
	}
}
