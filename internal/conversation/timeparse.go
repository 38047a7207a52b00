package conversation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// ErrTimeFormat reports input that is not SS, MM:SS, or HH:MM:SS.
var ErrTimeFormat = errors.New("time must be SS, MM:SS or HH:MM:SS")

// ParseSeconds converts SS, MM:SS, or HH:MM:SS into a second count. Every
// component must be a non-negative integer. Full-width digits and colons as
// well as Arabic-Indic digits are accepted.
func ParseSeconds(input string) (int, error) {
	text := foldDigits(strings.TrimSpace(input))
	if text == "" {
		return 0, ErrTimeFormat
	}
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, ErrTimeFormat
	}
	total := 0
	for _, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return 0, ErrTimeFormat
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, ErrTimeFormat
		}
		if total > (math.MaxInt32-value)/60 {
			return 0, fmt.Errorf("%w: value out of range", ErrTimeFormat)
		}
		total = total*60 + value
	}
	return total, nil
}

// FormatSeconds renders seconds as H:MM:SS, or M:SS under an hour.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func foldDigits(text string) string {
	text = width.Narrow.String(text)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '٫' || r == '؛':
			// Arabic decimal separator and semicolon are typed for ':' on some keyboards.
			return ':'
		}
		return r
	}, text)
}
