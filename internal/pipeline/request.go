package pipeline

import (
	"time"

	"clipper/internal/session"
)

// Request describes one run: which resource, which range, which encoding.
type Request struct {
	ChatID   int64
	Resource string
	Start    int
	End      int
	// Height is the requested class; 0 lets the provider choose.
	Height int
	// Selector is the exact format offered to the user, empty on fallback.
	Selector string
	Mode     session.Mode
	Title    string
}

// Duration returns the requested range length in seconds.
func (r Request) Duration() int {
	return r.End - r.Start
}

// Result is reported once per run after its workspace is gone.
type Result struct {
	ChatID int64
	RunID  string
	Parts  int
	Bytes  int64
	// Degraded is set when acquisition fell back below the requested encoding.
	Degraded bool
	Elapsed  time.Duration
	Err      error
}
