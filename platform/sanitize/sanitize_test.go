package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestOneLine(t *testing.T) {
	got := OneLine("Great <b>work</b>!\n\nWould  hire &amp; recommend.")
	want := "Great work! Would hire & recommend."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTruncateWords(t *testing.T) {
	short := "Fast and clean."
	if got := TruncateWords(short, 200); got != short {
		t.Fatalf("expected short text untouched, got %q", got)
	}

	long := strings.Repeat("word ", 60)
	got := TruncateWords(long, 200)
	if utf8.RuneCountInString(got) > 200 {
		t.Fatalf("expected at most 200 runes, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "word...") {
		t.Fatalf("expected cut on a word boundary with ellipsis, got %q", got[len(got)-12:])
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("expected untouched, got %q", got)
	}
}

func TestTruncateRepairsInvalidText(t *testing.T) {
	got := Truncate("Re: caf\xe9\x00 quote", 100)
	if !utf8.ValidString(got) || strings.Contains(got, "\x00") {
		t.Fatalf("expected valid text without NUL, got %q", got)
	}
	if got != "Re: caf\uFFFD quote" {
		t.Fatalf("unexpected repair %q", got)
	}
}
