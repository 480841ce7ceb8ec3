// Package langdetect classifies free text into one of the language
// tags the phonemizer pipeline understands.
package langdetect

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Default is the fallback tag used whenever the underlying classifier's
// top guess falls outside Supported, or when the input is empty or only
// whitespace. No confidence threshold is applied to the guess.
const Default = "en-us"

// Supported lists every language tag the rest of the pipeline (the
// Phonemizer's dispatch table) has a backend for. Order is
// insignificant; membership is what matters.
var Supported = map[string]bool{
	"en-us": true,
	"en-gb": true,
	"es":    true,
	"fr":    true,
	"it":    true,
	"pt":    true,
	"hi":    true,
	"ja":    true,
	"zh":    true,
}

// isoToTag maps whatlanggo's ISO 639-3-ish language identifiers to our
// supported tag set. whatlanggo cannot distinguish en-us from en-gb, so
// any English detection resolves to en-us (the Default); callers that
// already know the target region should skip detection entirely and
// set the sentence's language_tag directly instead of relying on this
// mapping.
var isoToTag = map[whatlanggo.Lang]string{
	whatlanggo.Eng: "en-us",
	whatlanggo.Spa: "es",
	whatlanggo.Fra: "fr",
	whatlanggo.Ita: "it",
	whatlanggo.Por: "pt",
	whatlanggo.Hin: "hi",
	whatlanggo.Jpn: "ja",
	whatlanggo.Cmn: "zh",
}

// Detect classifies text and returns a supported language tag. It is a
// pure, idempotent function: the same text always yields the same tag.
// Text whose detected language has no backend falls back to Default.
func Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return Default
	}

	info := whatlanggo.Detect(text)

	tag, ok := isoToTag[info.Lang]
	if !ok {
		return Default
	}

	return tag
}

// IsSupported reports whether tag is a language the Phonemizer can
// dispatch on.
func IsSupported(tag string) bool {
	return Supported[tag]
}
