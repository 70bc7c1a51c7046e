// Package sanitize provides text cleanup for third-party text (review
// excerpts, inbound mail) before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// StripHTML removes all HTML tags from a string and decodes entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// OneLine strips tags and collapses every run of whitespace, newlines
// included, to a single space.
func OneLine(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(StripHTML(s), " "))
}

// ValidText replaces invalid UTF-8 sequences and drops NUL bytes, neither
// of which Postgres accepts in a text column.
func ValidText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.ReplaceAll(s, "\x00", "")
}

// Truncate cuts s to at most max runes. The result is always valid text.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	s = ValidText(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// TruncateWords shortens s to at most max runes. When it has to cut, it keeps
// max-3 runes, backs up to the last space and appends "...".
func TruncateWords(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return Truncate(s, max)
	}
	cut := string([]rune(s)[:max-3])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
