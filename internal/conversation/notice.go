package conversation

import (
	"errors"

	"clipper/internal/services"
)

// Signal names what a notice tells the user.
type Signal string

const (
	SignalWelcome           Signal = "welcome"
	SignalAskResource       Signal = "ask_resource"
	SignalAskRangeStart     Signal = "ask_range_start"
	SignalAskRangeEnd       Signal = "ask_range_end"
	SignalFormatError       Signal = "format_error"
	SignalRangeError        Signal = "range_error"
	SignalRangeTooLong      Signal = "range_too_long"
	SignalProbing           Signal = "probing"
	SignalChooseQuality     Signal = "choose_quality"
	SignalQualityNotOffered Signal = "quality_not_offered"
	SignalFallbackQuality   Signal = "fallback_quality"
	SignalChooseMode        Signal = "choose_mode"
	SignalStaleChoice       Signal = "stale_choice"
	SignalRunStarted        Signal = "run_started"
	SignalBusy              Signal = "busy"
	SignalCancelled         Signal = "cancelled"
	SignalCancelRequested   Signal = "cancel_requested"
	SignalRunCompleted      Signal = "run_completed"
	SignalRunFailed         Signal = "run_failed"
	SignalRunCancelled      Signal = "run_cancelled"
)

// Notice is one message for the transport to render.
type Notice struct {
	Signal     Signal
	Generation uint64
	Qualities  []int
	Quality    int
	Mode       string
	Start      int
	End        int
	MaxRange   int
	Parts      int
	Degraded   bool
	Failure    Failure
	// Detail carries the underlying error text for failures the user can act on.
	Detail string
}

// Failure classifies a terminal run error for the user message.
type Failure string

const (
	FailureAcquire  Failure = "acquire"
	FailureTrim     Failure = "trim"
	FailureSplit    Failure = "split"
	FailureTooLarge Failure = "too_large"
	FailureDelivery Failure = "delivery"
	FailureTimeout  Failure = "timeout"
	FailureNoSpace  Failure = "no_space"
	FailureInternal Failure = "internal"
)

// Classify maps a run error to the user-facing failure kind.
func Classify(err error) Failure {
	switch {
	case errors.Is(err, services.ErrTooLarge):
		return FailureTooLarge
	case errors.Is(err, services.ErrTimeout):
		return FailureTimeout
	case errors.Is(err, services.ErrNoSpace):
		return FailureNoSpace
	case errors.Is(err, services.ErrAcquire), errors.Is(err, services.ErrFormatUnavailable):
		return FailureAcquire
	case errors.Is(err, services.ErrTrim):
		return FailureTrim
	case errors.Is(err, services.ErrSplit):
		return FailureSplit
	case errors.Is(err, services.ErrDelivery):
		return FailureDelivery
	default:
		return FailureInternal
	}
}
