package phonemize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/byteowlz/kokorox/internal/ttserr"
)

// EspeakBackend phonemizes text via an espeak-ng subprocess, for every
// supported language without a native G2P path. espeak-ng is invoked
// as an external binary rather than linked as a library, the same
// CLI-subprocess pattern used elsewhere in this codebase for
// out-of-process TTS backends.
type EspeakBackend struct {
	executablePath string
	voice          string // espeak-ng --voice argument, e.g. "es", "fr", "it"
}

// NewEspeakBackend constructs a backend that shells out to
// executablePath (empty defaults to "espeak-ng" on PATH) using the
// given espeak-ng voice/language code.
func NewEspeakBackend(executablePath, voice string) *EspeakBackend {
	return &EspeakBackend{executablePath: executablePath, voice: voice}
}

func (e *EspeakBackend) Phonemize(ctx context.Context, text string) ([]string, error) {
	exe := e.executablePath
	if exe == "" {
		exe = "espeak-ng"
	}

	args := []string{"--ipa", "-q", "--voice", e.voice}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdin = strings.NewReader(text)

	var out bytes.Buffer

	cmd.Stdout = &out
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		return nil, ttserr.New(ttserr.PhonemizerUnavailable, "phonemize.EspeakBackend.Phonemize", fmt.Errorf("espeak-ng: %w", err))
	}

	return splitIPARunes(out.String()), nil
}

// splitIPARunes turns espeak-ng's IPA output string into individual
// phoneme symbols: one rune per symbol, with whitespace (espeak-ng's
// word separator) rewritten to the boundary marker so word breaks
// survive into the token stream. The final word carries no trailing
// marker; Dispatch appends the sentence-level one.
func splitIPARunes(ipa string) []string {
	var out []string

	for _, line := range strings.Split(ipa, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, field := range strings.Fields(line) {
			if len(out) > 0 {
				out = append(out, BoundaryMarker)
			}

			for _, r := range field {
				out = append(out, string(r))
			}
		}
	}

	return out
}
