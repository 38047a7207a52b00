package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipper/internal/config"
)

const userAgent = "clipper/0.1.0"

// Event names an operator-facing occurrence.
type Event string

const (
	EventStartup   Event = "startup"
	EventRunFailed Event = "run_failed"
	EventTest      Event = "test"
)

// Payload carries event fields by name.
type Payload map[string]any

// Service publishes operator events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventStartup:   cfg.Notifications.Startup,
			EventRunFailed: cfg.Notifications.RunFailures,
			EventTest:      true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventStartup:
		return message{
			title: "Clipper - Started",
			body:  fmt.Sprintf("Bot %s is up (%s mode)", text(payload, "bot", "clipper"), text(payload, "mode", "polling")),
			tags:  []string{"clipper", "startup"},
		}, true
	case EventRunFailed:
		body := fmt.Sprintf("Run %s for chat %v failed: %s", text(payload, "runID", "?"), payload["chatID"], text(payload, "error", "unknown error"))
		if hint := text(payload, "hint", ""); hint != "" {
			body += "\nHint: " + hint
		}
		return message{
			title:    "Clipper - Run Failed",
			body:     body,
			tags:     []string{"clipper", "run", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title: "Clipper - Test",
			body:  "Test notification from clipper",
			tags:  []string{"clipper", "test"},
		}, true
	default:
		return message{}, false
	}
}

func text(payload Payload, key, fallback string) string {
	if v, ok := payload[key]; ok && v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return fallback
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
