package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipper/internal/config"
	"clipper/internal/notifications"
)

type captured struct {
	title, body, tags, priority string
}

func newServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunFailed, notifications.Payload{"runID": "chat1-r1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestRunFailedPayload(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventRunFailed, notifications.Payload{
		"runID":  "chat42-r3",
		"chatID": int64(42),
		"error":  "acquisition failed: extract: acquire",
		"hint":   "verify the link plays and update yt-dlp",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(*got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*got))
	}
	req := (*got)[0]
	if req.title != "Clipper - Run Failed" {
		t.Fatalf("title = %q", req.title)
	}
	if !strings.HasPrefix(req.body, "Run chat42-r3 for chat 42 failed: acquisition failed") {
		t.Fatalf("body = %q", req.body)
	}
	if !strings.Contains(req.body, "\nHint: verify the link") {
		t.Fatalf("missing hint in %q", req.body)
	}
	if req.tags != "clipper,run,failed" || req.priority != "high" {
		t.Fatalf("tags=%q priority=%q", req.tags, req.priority)
	}
}

func TestDisabledEventIsSkipped(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Startup = false
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventStartup, notifications.Payload{"bot": "clip_bot"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(*got) != 0 {
		t.Fatalf("expected no requests, got %d", len(*got))
	}
}

func TestStartupAndTestEvents(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Startup = true
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventStartup, notifications.Payload{"bot": "@clip_bot", "mode": "webhook"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatal(err)
	}
	if (*got)[0].body != "Bot @clip_bot is up (webhook mode)" {
		t.Fatalf("startup body = %q", (*got)[0].body)
	}
	if (*got)[1].title != "Clipper - Test" || (*got)[1].priority != "" {
		t.Fatalf("unexpected test notification %+v", (*got)[1])
	}
}

func TestServerErrorIsReported(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}
