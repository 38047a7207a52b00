package textutil

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters and control runes are removed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, fileNameReplacer.Replace(name))
	return strings.TrimSpace(name)
}

// Truncate shortens s to at most limit runes, never splitting a rune.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

// ClipFileName builds the upload name for part ordinal of total. An empty
// title falls back to "clip"; single parts carry no ordinal suffix.
func ClipFileName(title string, ordinal, total int, ext string) string {
	base := Truncate(SanitizeFileName(title), 60)
	if base == "" {
		base = "clip"
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if total > 1 {
		base += "-part" + strconv.Itoa(ordinal) + "of" + strconv.Itoa(total)
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}
