package delivery

import (
	"context"
	"errors"
	"fmt"

	"clipper/internal/services"
	"clipper/internal/session"
)

// Media is one upload.
type Media struct {
	Path     string
	Kind     session.Mode
	Caption  string
	FileName string
	Ordinal  int
	Total    int
	Size     int64
}

// Transport is the messaging surface delivery talks to.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMedia(ctx context.Context, chatID int64, media Media) error
}

// SendErrorKind classifies a transport failure.
type SendErrorKind int

const (
	// Other covers network, auth, and unknown failures.
	Other SendErrorKind = iota
	// SizeRejected means the transport refused the payload for its size.
	SizeRejected
)

func (k SendErrorKind) String() string {
	if k == SizeRejected {
		return "size_rejected"
	}
	return "other"
}

// SendError is returned by transports for failed sends.
type SendError struct {
	Kind   SendErrorKind
	Detail string
	Err    error
}

func (e *SendError) Error() string {
	msg := "send " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsSizeRejected reports whether err carries a size rejection from the transport.
func IsSizeRejected(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Kind == SizeRejected
}

// ErrorKind separates a part that was too large from other transport failures.
type ErrorKind string

const (
	KindSize      ErrorKind = "size"
	KindTransport ErrorKind = "transport"
)

// Error reports the part at which delivery stopped.
type Error struct {
	Kind    ErrorKind
	Ordinal int
	Total   int
	Size    int64
	Limit   int64
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSize:
		msg := fmt.Sprintf("part %d/%d too large (%d bytes, limit %d)", e.Ordinal, e.Total, e.Size, e.Limit)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	default:
		if e.Err == nil {
			return fmt.Sprintf("part %d/%d not delivered", e.Ordinal, e.Total)
		}
		return fmt.Sprintf("part %d/%d not delivered: %v", e.Ordinal, e.Total, e.Err)
	}
}

// Unwrap exposes the service markers alongside the transport cause.
func (e *Error) Unwrap() []error {
	out := []error{services.ErrDelivery}
	if e.Kind == KindSize {
		out = append(out, services.ErrTooLarge)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}
