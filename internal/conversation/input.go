package conversation

import (
	"net/url"
	"strconv"
	"strings"
)

// InputKind distinguishes the ways a chat can talk to the machine.
type InputKind int

const (
	InputText InputKind = iota
	InputChoice
	InputCancel
	InputStart
)

// Input is one event from a chat.
type Input struct {
	ChatID int64
	Kind   InputKind
	Text   string
	Choice Choice
	// RequestID correlates log lines for this input.
	RequestID string
}

// ChoiceKind names the button family a choice came from.
type ChoiceKind string

const (
	ChoiceQuality ChoiceKind = "q"
	ChoiceMode    ChoiceKind = "m"
)

// Choice is an inline-button payload. Generation ties it to the resource the
// buttons were rendered for.
type Choice struct {
	Kind       ChoiceKind
	Generation uint64
	Value      string
}

// Encode renders the choice as kind:generation:value. Telegram limits button
// data to 64 bytes, which this stays well under.
func (c Choice) Encode() string {
	return string(c.Kind) + ":" + strconv.FormatUint(c.Generation, 10) + ":" + c.Value
}

// ParseChoice decodes a payload produced by Encode.
func ParseChoice(data string) (Choice, bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) != 3 {
		return Choice{}, false
	}
	kind := ChoiceKind(parts[0])
	if kind != ChoiceQuality && kind != ChoiceMode {
		return Choice{}, false
	}
	gen, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || parts[2] == "" {
		return Choice{}, false
	}
	return Choice{Kind: kind, Generation: gen, Value: parts[2]}, true
}

// IsResourceReference reports whether text is an absolute http(s) URL, which
// restarts the conversation from any idle state.
func IsResourceReference(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return false
	}
	parsed, err := url.Parse(text)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// parseQuality accepts "720", "720p", or "720P" with folded digits.
func parseQuality(text string) (int, bool) {
	text = strings.TrimSuffix(strings.ToLower(foldDigits(strings.TrimSpace(text))), "p")
	if text == "" || strings.TrimLeft(text, "0123456789") != "" {
		return 0, false
	}
	height, err := strconv.Atoi(text)
	if err != nil || height <= 0 {
		return 0, false
	}
	return height, true
}

var modeWords = map[string]string{
	"video": "video",
	"v":     "video",
	"فيديو": "video",
	"audio": "audio",
	"a":     "audio",
	"mp3":   "audio",
	"صوت":   "audio",
}

func parseMode(text string) (string, bool) {
	mode, ok := modeWords[strings.ToLower(strings.TrimSpace(text))]
	return mode, ok
}
