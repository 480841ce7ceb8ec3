// Package text normalizes raw input text and segments it into
// sentence-sized chunks bounded by an upper-bound token estimate.
package text

import (
	"errors"
	"strings"
	"unicode"

	"github.com/byteowlz/kokorox/internal/ttserr"
)

// ErrEmptyText is returned when the input text is empty or
// whitespace-only after normalization.
var ErrEmptyText = errors.New("text is empty")

// arrowReplacements rewrites glyphs that G2P backends routinely
// mis-phonemize (arrows, bullet markers) into neutral spoken forms.
var arrowReplacements = map[rune]string{
	'→': " to ",
	'←': " from ",
	'⇒': " implies ",
	'•': ", ",
	'·': ", ",
}

// Normalize trims, line-ending-normalizes, strips zero-width
// characters, collapses whitespace runs, and rewrites list markers and
// arrow glyphs into neutral forms. Returns BadInput if the result is
// empty.
func Normalize(s string) (string, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = stripZeroWidth(s)
	s = rewriteGlyphs(s)
	s = collapseWhitespace(s)
	s = strings.TrimSpace(s)

	if s == "" {
		return "", ttserr.New(ttserr.BadInput, "text.Normalize", ErrEmptyText)
	}

	return s, nil
}

func stripZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '\uFEFF':
			return -1
		}

		return r
	}, s)
}

func rewriteGlyphs(s string) string {
	var b strings.Builder

	for _, r := range s {
		if rep, ok := arrowReplacements[r]; ok {
			b.WriteString(rep)

			continue
		}

		b.WriteRune(r)
	}

	return enumeratedMarkers(b.String())
}

// enumeratedMarkers rewrites leading numeric list markers like "1)" or
// "1." at the start of a line into a spoken-friendly "1. " form, avoiding
// G2P confusion between ordinal markers and sentence terminators.
func enumeratedMarkers(s string) string {
	lines := strings.Split(s, "\n")

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		prefixLen := len(line) - len(trimmed)

		if n, rest, ok := cutListMarker(trimmed); ok {
			lines[i] = line[:prefixLen] + n + ". " + strings.TrimLeft(rest, " ")
		}
	}

	return strings.Join(lines, "\n")
}

// cutListMarker recognizes "<digits>)" or "<digits>." at the start of
// a string and returns the digits and remainder.
func cutListMarker(s string) (marker, rest string, ok bool) {
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}

	if i == 0 || i >= len(s) {
		return "", "", false
	}

	if s[i] != ')' && s[i] != '.' {
		return "", "", false
	}

	return s[:i], s[i+1:], true
}

func collapseWhitespace(s string) string {
	var b strings.Builder

	lastWasSpace := false

	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !lastWasSpace {
				b.WriteRune(' ')
			}

			lastWasSpace = true

			continue
		}

		lastWasSpace = false

		b.WriteRune(r)
	}

	return b.String()
}
