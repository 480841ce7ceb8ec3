// Package phonemize dispatches grapheme-to-phoneme conversion to a
// language-specific backend.
package phonemize

import (
	"context"
	"fmt"

	"github.com/byteowlz/kokorox/internal/ttserr"
)

// BoundaryMarker is the canonical phoneme symbol emitted at the start
// and end of every phonemized sentence. The Tokenizer reserves a fixed
// id for it.
const BoundaryMarker = "_"

// Backend converts normalized, segmented text for one language into
// the canonical phoneme symbol sequence the Kokoro tokenizer expects.
// Implementations are tagged variants behind a uniform operation, not
// an open class hierarchy.
type Backend interface {
	// Phonemize returns phoneme symbols for text, NOT including the
	// leading/trailing boundary markers — Dispatch adds those uniformly
	// so backends don't each have to remember to.
	Phonemize(ctx context.Context, text string) ([]string, error)
}

// Dispatch routes text to the Backend registered for langTag and wraps
// its output with boundary markers. Returns PhonemizerUnavailable if no
// backend is registered for langTag.
type Dispatch struct {
	backends map[string]Backend
}

// NewDispatch builds a Dispatch from a language-tag-to-backend map. The
// caller decides which concrete backends to register (zh, ja, espeak,
// ...); Dispatch itself has no knowledge of individual languages.
func NewDispatch(backends map[string]Backend) *Dispatch {
	return &Dispatch{backends: backends}
}

// Phonemize converts text for langTag into a canonical phoneme symbol
// sequence, with boundary markers prepended and appended.
func (d *Dispatch) Phonemize(ctx context.Context, langTag, text string) ([]string, error) {
	backend, ok := d.backends[langTag]
	if !ok {
		return nil, ttserr.Newf(ttserr.PhonemizerUnavailable, "phonemize.Dispatch.Phonemize",
			"no phonemizer backend registered for language %q", langTag)
	}

	phonemes, err := backend.Phonemize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("phonemize %q text: %w", langTag, err)
	}

	out := make([]string, 0, len(phonemes)+2)
	out = append(out, BoundaryMarker)
	out = append(out, phonemes...)
	out = append(out, BoundaryMarker)

	return out, nil
}

// HasBackend reports whether langTag has a registered backend.
func (d *Dispatch) HasBackend(langTag string) bool {
	_, ok := d.backends[langTag]

	return ok
}
