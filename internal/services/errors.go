package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrTimeout           = errors.New("timeout")
	ErrCanceled          = errors.New("canceled")
	ErrFormatUnavailable = errors.New("format unavailable")
	ErrAcquire           = errors.New("acquisition failed")
	ErrTrim              = errors.New("trim failed")
	ErrSplit             = errors.New("split failed")
	ErrDelivery          = errors.New("delivery failed")
	ErrTooLarge          = errors.New("part too large")
	ErrNoSpace           = errors.New("insufficient disk space")
	ErrInternal          = errors.New("internal error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FromContext converts a context error into the matching marker so callers can
// tell a cancelled run from a tool failure. It returns nil for a live context.
func FromContext(ctx context.Context, stage string) error {
	if ctx == nil {
		return nil
	}
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrTimeout, stage, "", "deadline exceeded", err)
	default:
		return Wrap(ErrCanceled, stage, "", "run cancelled", err)
	}
}

// Terminal reports whether err ends a run (as opposed to a degraded fallback).
func Terminal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrFormatUnavailable)
}

// Hint returns the operator-facing next step for a classified error.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCanceled):
		return "run cancelled by user"
	case errors.Is(err, ErrTimeout):
		return "raise tools timeouts or ask for a shorter range"
	case errors.Is(err, ErrTooLarge):
		return "part exceeded the transport limit; lower limits.max_part_bytes or use a local Bot API server"
	case errors.Is(err, ErrNoSpace):
		return "free space in paths.staging_dir or lower limits.min_free_bytes"
	case errors.Is(err, ErrConfiguration):
		return "check the tools section and run 'clipper check'"
	case errors.Is(err, ErrAcquire), errors.Is(err, ErrFormatUnavailable):
		return "verify the link plays and update yt-dlp"
	case errors.Is(err, ErrTrim), errors.Is(err, ErrSplit):
		return "inspect ffmpeg output in the run log"
	case errors.Is(err, ErrDelivery):
		return "check bot token and transport connectivity"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
