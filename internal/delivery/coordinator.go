package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/session"
	"clipper/internal/split"
	"clipper/internal/textutil"
)

// CaptionFunc renders the caption for part ordinal of total.
type CaptionFunc func(ordinal, total int) string

// DefaultCaption renders "part i/N", and nothing for a single part.
func DefaultCaption(ordinal, total int) string {
	if total <= 1 {
		return ""
	}
	return fmt.Sprintf("part %d/%d", ordinal, total)
}

// Report summarizes a completed delivery.
type Report struct {
	Parts   int
	Bytes   int64
	Elapsed time.Duration
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithCaption replaces DefaultCaption.
func WithCaption(fn CaptionFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.caption = fn
		}
	}
}

// Coordinator uploads parts in order and stops at the first failure.
type Coordinator struct {
	transport Transport
	maxBytes  int64
	caption   CaptionFunc
	logger    *slog.Logger
}

// NewCoordinator builds a Coordinator enforcing maxBytes per part.
func NewCoordinator(transport Transport, maxBytes int64, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport: transport,
		maxBytes:  maxBytes,
		caption:   DefaultCaption,
		logger:    logging.NewComponentLogger(logger, "delivery"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver sends parts to chatID in ordinal order. Parts above the ceiling are
// rejected before upload. Any failure aborts the remaining parts and is
// returned as *Error.
func (c *Coordinator) Deliver(ctx context.Context, chatID int64, parts []split.Part, mode session.Mode, title string) (Report, error) {
	ctx = services.WithStage(ctx, "delivery")
	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()
	total := len(parts)
	report := Report{}

	for _, part := range parts {
		if ctxErr := services.FromContext(ctx, "delivery"); ctxErr != nil {
			return report, ctxErr
		}
		if c.maxBytes > 0 && part.Size > c.maxBytes {
			logger.Warn("part exceeds transport ceiling",
				logging.Int("ordinal", part.Ordinal),
				logging.Int64("size_bytes", part.Size),
				logging.Int64("limit_bytes", c.maxBytes),
				logging.String(logging.FieldEventType, "delivery_part_oversized"),
				logging.String(logging.FieldImpact, "remaining parts not sent"),
			)
			return report, &Error{Kind: KindSize, Ordinal: part.Ordinal, Total: total, Size: part.Size, Limit: c.maxBytes}
		}

		media := Media{
			Path:     part.Path,
			Kind:     mode,
			Caption:  c.caption(part.Ordinal, total),
			FileName: textutil.ClipFileName(title, part.Ordinal, total, filepath.Ext(part.Path)),
			Ordinal:  part.Ordinal,
			Total:    total,
			Size:     part.Size,
		}
		if err := c.transport.SendMedia(ctx, chatID, media); err != nil {
			if ctxErr := services.FromContext(ctx, "delivery"); ctxErr != nil {
				return report, ctxErr
			}
			kind := KindTransport
			if IsSizeRejected(err) {
				kind = KindSize
			}
			return report, &Error{Kind: kind, Ordinal: part.Ordinal, Total: total, Size: part.Size, Limit: c.maxBytes, Err: err}
		}
		report.Parts++
		report.Bytes += part.Size
		logger.Debug("part delivered",
			logging.Int("ordinal", part.Ordinal),
			logging.Int("total", total),
			logging.Int64("size_bytes", part.Size),
		)
	}
	report.Elapsed = time.Since(started)
	logger.Info("delivery complete",
		logging.Int("parts", report.Parts),
		logging.Int64("bytes", report.Bytes),
		logging.Duration("elapsed", report.Elapsed),
		logging.String(logging.FieldEventType, "delivery_complete"),
	)
	return report, nil
}
