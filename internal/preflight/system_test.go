package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipper/internal/deps"
	"clipper/internal/preflight"
	"clipper/internal/testsupport"
)

func TestCheckSystemDepsWithStubs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	statuses := preflight.CheckSystemDeps(context.Background(), cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(statuses))
	}
	if missing := deps.Missing(statuses); len(missing) != 0 {
		t.Fatalf("stubbed tools reported missing: %+v", missing)
	}
	for _, status := range statuses {
		if status.Version != "stub 1.0" {
			t.Fatalf("%s: unexpected version %q", status.Name, status.Version)
		}
	}
}

func TestCheckSystemDepsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))
	cfg.Tools.YtDlp = "clipper-missing-yt-dlp"

	missing := deps.Missing(preflight.CheckSystemDeps(context.Background(), cfg))
	if len(missing) != 1 || missing[0].Name != "yt-dlp" {
		t.Fatalf("expected yt-dlp missing, got %+v", missing)
	}
}

func TestRunAllSkipsTelegramWithoutToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithToken(""))

	results := preflight.RunAll(context.Background(), cfg, true)
	if len(results) != 4 {
		t.Fatalf("expected only local checks, got %d", len(results))
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllOnlineChecksToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot42:good/getMe" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"username":"clip_bot"}}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithToken("42:good"))
	cfg.Telegram.APIURL = srv.URL
	if failed := preflight.Failed(preflight.RunAll(context.Background(), cfg, true)); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	cfg.Telegram.Token = "42:bad"
	failed := preflight.Failed(preflight.RunAll(context.Background(), cfg, true))
	if len(failed) != 1 {
		t.Fatalf("expected the Telegram check to fail, got %+v", failed)
	}
}
