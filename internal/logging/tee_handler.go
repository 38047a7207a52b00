package logging

import (
	"context"
	"log/slog"
)

// teeHandler duplicates each record into several handlers, e.g. the console and
// the JSON log file.
type teeHandler struct {
	handlers []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) slog.Handler {
	live := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	default:
		return &teeHandler{handlers: live}
	}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	last := len(h.handlers) - 1
	for idx, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if idx < last {
			rec = record.Clone()
		}
		if err := handler.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &teeHandler{handlers: next}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &teeHandler{handlers: next}
}

// instanceHandler stamps every record with the daemon instance identifier.
type instanceHandler struct {
	base slog.Handler
	id   string
}

func newInstanceHandler(base slog.Handler, id string) slog.Handler {
	return &instanceHandler{base: base, id: id}
}

func (h *instanceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *instanceHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldInstanceID, h.id))
	return h.base.Handle(ctx, record)
}

func (h *instanceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &instanceHandler{base: h.base.WithAttrs(attrs), id: h.id}
}

func (h *instanceHandler) WithGroup(name string) slog.Handler {
	return &instanceHandler{base: h.base.WithGroup(name), id: h.id}
}
