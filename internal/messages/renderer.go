package messages

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"clipper/internal/conversation"
	"clipper/internal/session"
)

// Renderer turns conversation notices into user-facing text in one language.
type Renderer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Renderer for lang, a BCP 47 tag such as "en" or "ar".
// Unsupported languages match to the closest supported one.
func New(lang string) (*Renderer, error) {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}
	cat, err := buildCatalog()
	if err != nil {
		return nil, fmt.Errorf("build message catalog: %w", err)
	}
	_, idx, _ := language.NewMatcher(Supported).Match(tag)
	matched := Supported[idx]
	return &Renderer{tag: matched, printer: message.NewPrinter(matched, message.Catalog(cat))}, nil
}

// Language returns the tag the renderer speaks.
func (r *Renderer) Language() language.Tag {
	return r.tag
}

// Text renders n. Notices that end a run also invite a new link.
func (r *Renderer) Text(n conversation.Notice) string {
	p := r.printer
	switch n.Signal {
	case conversation.SignalWelcome:
		return p.Sprintf(keyWelcome)
	case conversation.SignalAskResource:
		return p.Sprintf(keyAskResource)
	case conversation.SignalAskRangeStart:
		return p.Sprintf(keyAskRangeStart)
	case conversation.SignalAskRangeEnd:
		return p.Sprintf(keyAskRangeEnd, conversation.FormatSeconds(n.Start))
	case conversation.SignalFormatError:
		return p.Sprintf(keyFormatError)
	case conversation.SignalRangeError:
		return p.Sprintf(keyRangeError, conversation.FormatSeconds(n.Start))
	case conversation.SignalRangeTooLong:
		return p.Sprintf(keyRangeTooLong, conversation.FormatSeconds(n.MaxRange))
	case conversation.SignalProbing:
		return p.Sprintf(keyProbing)
	case conversation.SignalChooseQuality:
		return p.Sprintf(keyChooseQuality)
	case conversation.SignalQualityNotOffered:
		return p.Sprintf(keyQualityNotOffered, r.qualityList(n.Qualities))
	case conversation.SignalFallbackQuality:
		if n.Quality > 0 {
			return p.Sprintf(keyFallbackHeight, strconv.Itoa(n.Quality))
		}
		return p.Sprintf(keyFallbackBest)
	case conversation.SignalChooseMode:
		return p.Sprintf(keyChooseMode)
	case conversation.SignalStaleChoice:
		return p.Sprintf(keyStaleChoice)
	case conversation.SignalRunStarted:
		start, end := conversation.FormatSeconds(n.Start), conversation.FormatSeconds(n.End)
		if n.Mode == string(session.ModeAudio) {
			return p.Sprintf(keyRunStartedAudio, start, end)
		}
		return p.Sprintf(keyRunStarted, start, end, r.qualityName(n.Quality))
	case conversation.SignalBusy:
		return p.Sprintf(keyBusy)
	case conversation.SignalCancelled:
		return p.Sprintf(keyCancelled)
	case conversation.SignalCancelRequested:
		return p.Sprintf(keyCancelRequested)
	case conversation.SignalRunCompleted:
		lines := []string{p.Sprintf(keyRunCompleted)}
		if n.Parts > 1 {
			lines[0] = p.Sprintf(keyRunCompletedParts, n.Parts)
		}
		if n.Degraded {
			lines = append(lines, p.Sprintf(keyDegraded))
		}
		return strings.Join(append(lines, p.Sprintf(keyNewLink)), "\n")
	case conversation.SignalRunCancelled:
		return p.Sprintf(keyRunCancelled) + "\n" + p.Sprintf(keyNewLink)
	case conversation.SignalRunFailed:
		return p.Sprintf(keyRunFailed, r.failure(n.Failure)) + "\n" + p.Sprintf(keyNewLink)
	default:
		return string(n.Signal)
	}
}

// Caption renders the caption of part ordinal of total; single parts get none.
func (r *Renderer) Caption(ordinal, total int) string {
	if total <= 1 {
		return ""
	}
	return r.printer.Sprintf(keyPartCaption, ordinal, total)
}

// QualityLabel is the button text for a height class.
func (r *Renderer) QualityLabel(height int) string {
	return strconv.Itoa(height) + "p"
}

// ModeLabel is the button text for an output mode.
func (r *Renderer) ModeLabel(mode session.Mode) string {
	if mode == session.ModeAudio {
		return r.printer.Sprintf(keyModeAudio)
	}
	return r.printer.Sprintf(keyModeVideo)
}

// CancelLabel is the text of the cancel button.
func (r *Renderer) CancelLabel() string {
	return r.printer.Sprintf(keyCancelButton)
}

func (r *Renderer) failure(f conversation.Failure) string {
	if f == "" {
		f = conversation.FailureInternal
	}
	return r.printer.Sprintf(keyFailurePrefix + string(f))
}

func (r *Renderer) qualityName(height int) string {
	if height <= 0 {
		return "best"
	}
	return r.QualityLabel(height)
}

func (r *Renderer) qualityList(heights []int) string {
	labels := make([]string, 0, len(heights))
	for _, h := range heights {
		labels = append(labels, r.QualityLabel(h))
	}
	return strings.Join(labels, ", ")
}
