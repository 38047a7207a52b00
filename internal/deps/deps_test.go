package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present", "exit 0")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank detail: %q", results[2].Detail)
	}
}

func TestCheckBinariesVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	tool := writeStub(t, t.TempDir(), "yt-dlp", "echo 2026.09.01\necho extra")
	results := CheckBinariesContext(context.Background(), []Requirement{{Name: "yt-dlp", Command: tool, VersionArgs: []string{"--version"}}})
	if results[0].Version != "2026.09.01" {
		t.Fatalf("version = %q", results[0].Version)
	}
}

func TestMissing(t *testing.T) {
	statuses := []Status{
		{Name: "ffmpeg", Available: true},
		{Name: "yt-dlp"},
		{Name: "extra", Optional: true},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "yt-dlp" {
		t.Fatalf("Missing = %#v", missing)
	}
}
