package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"clipper/internal/formats"
)

// State is a conversation step.
type State string

const (
	StateAwaitingResource   State = "awaiting_resource"
	StateAwaitingRangeStart State = "awaiting_range_start"
	StateAwaitingRangeEnd   State = "awaiting_range_end"
	StateAwaitingQuality    State = "awaiting_quality"
	StateAwaitingOutputMode State = "awaiting_output_mode"
	StateRunning            State = "running"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateAwaitingResource, StateAwaitingRangeStart, StateAwaitingRangeEnd,
		StateAwaitingQuality, StateAwaitingOutputMode, StateRunning:
		return true
	}
	return false
}

// Mode is the requested output kind.
type Mode string

const (
	ModeVideo Mode = "video"
	ModeAudio Mode = "audio"
)

// Session is the per-chat conversation record.
type Session struct {
	ChatID     int64
	State      State
	Resource   string
	Title      string
	RangeStart int
	RangeEnd   int
	// Quality is the selected height class; 0 while unset. With Fallback it
	// is the configured fixed class rather than an offered one.
	Quality int
	// Fallback marks that the provider-chosen "best" selector is in use.
	Fallback bool
	// Options are the qualities offered for Resource in this Generation.
	Options []formats.Option
	Mode    Mode
	// Generation increases with every new resource and survives resets so
	// buttons rendered for an earlier resource can be recognised as stale.
	Generation uint64
	RunID      string
	UpdatedAt  time.Time
}

// New returns the initial session for chatID.
func New(chatID int64) Session {
	return Session{ChatID: chatID, State: StateAwaitingResource, Mode: ModeVideo}
}

// Restart discards everything about the previous resource and starts over with resource.
func (s *Session) Restart(resource string) {
	gen := s.Generation + 1
	*s = New(s.ChatID)
	s.Generation = gen
	s.Resource = resource
	s.State = StateAwaitingRangeStart
}

// Clear returns the session to its initial state, keeping the generation.
func (s *Session) Clear() {
	gen := s.Generation
	*s = New(s.ChatID)
	s.Generation = gen
}

// Qualities returns the offered heights in ascending order.
func (s Session) Qualities() []int {
	return formats.Heights(s.Options)
}

// Selected returns the chosen option, if a quality was selected.
func (s Session) Selected() (formats.Option, bool) {
	if s.Quality == 0 {
		return formats.Option{}, false
	}
	return formats.Find(s.Options, s.Quality)
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	s.Options = slices.Clone(s.Options)
	return s
}

// ErrInvalidSession reports a record violating the session invariants.
var ErrInvalidSession = errors.New("invalid session")

// Validate checks the record invariants.
func (s Session) Validate() error {
	if !s.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidSession, s.State)
	}
	if s.RangeStart < 0 {
		return fmt.Errorf("%w: negative range start", ErrInvalidSession)
	}
	if s.rangeComplete() && s.RangeEnd <= s.RangeStart {
		return fmt.Errorf("%w: range end %d not after start %d", ErrInvalidSession, s.RangeEnd, s.RangeStart)
	}
	if s.Quality != 0 && !s.Fallback {
		if _, ok := s.Selected(); !ok {
			return fmt.Errorf("%w: quality %d not among offered %v", ErrInvalidSession, s.Quality, s.Qualities())
		}
	}
	return nil
}

func (s Session) rangeComplete() bool {
	switch s.State {
	case StateAwaitingQuality, StateAwaitingOutputMode, StateRunning:
		return true
	}
	return false
}

// Store persists sessions keyed by chat.
type Store interface {
	// Get returns the session for chatID; absence is not an error.
	Get(ctx context.Context, chatID int64) (Session, bool, error)
	Put(ctx context.Context, s Session) error
	// Reset returns the chat to StateAwaitingResource.
	Reset(ctx context.Context, chatID int64) error
}
