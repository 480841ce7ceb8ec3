package text

import (
	"strings"
	"unicode"

	"github.com/byteowlz/kokorox/internal/ttserr"
)

// MaxTokens is the hard ceiling on tokens per sentence accepted by the
// inference driver (a VoicePack style tensor has 510 rows).
const MaxTokens = 510

// maxSplitAttempts bounds the re-split-and-retry loop: beyond this, the
// sentence is hard-truncated and the caller should log the truncation.
const maxSplitAttempts = 3

var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// IsTerminator reports whether r is one of the sentence-terminal
// punctuation marks Segment splits on. internal/stream uses this for
// its incremental terminator scan so both the one-shot and streaming
// segmenters agree on what ends a sentence.
func IsTerminator(r rune) bool {
	return sentenceTerminators[r]
}

var clauseBreaks = map[rune]bool{
	',': true, ';': true, '，': true, '；': true, '、': true,
}

// EstimateTokens projects an upper-bound token count for s without
// running the real phonemizer, using a fast characters × per-language
// factor heuristic. The estimate is deliberately generous (over- not
// under-counts) since callers treat it as a re-split trigger, and an
// under-count would let an oversized sentence through to inference.
func EstimateTokens(s string, langTag string) int {
	factor := 1.6

	switch {
	case strings.HasPrefix(langTag, "zh"), strings.HasPrefix(langTag, "ja"):
		// CJK scripts: one rune is often one syllable-length phoneme run.
		factor = 2.2
	case strings.HasPrefix(langTag, "hi"):
		factor = 1.9
	}

	n := 0
	for range s {
		n++
	}

	return int(float64(n)*factor) + 2 // +2 for leading/trailing boundary markers
}

// Segment splits normalized text into sentence-sized chunks: split on
// terminal punctuation and line breaks, then re-split any chunk whose
// projected token count exceeds MaxTokens at clause boundaries, then
// at whitespace, hard-truncating as a last resort. Empty chunks are
// dropped.
//
// countTokens, when non-nil, is invoked after each candidate chunk is
// produced to get the exact post-phonemization token count; when it
// exceeds MaxTokens the chunk is re-split and retried (bounded to
// maxSplitAttempts). When countTokens is nil, only the fast estimate
// drives splitting.
//
// truncated reports how many chunks were hard-truncated because no
// clause or whitespace split could bring them under budget; callers
// must surface it (log it) since clipped speech is otherwise invisible
// in the returned strings.
func Segment(s string, langTag string, countTokens func(string) (int, error)) (chunks []string, truncated int, err error) {
	if strings.TrimSpace(s) == "" {
		return nil, 0, ttserr.New(ttserr.BadInput, "text.Segment", ErrEmptyText)
	}

	for _, sent := range splitTerminal(s) {
		sub, cut, err := fitToBudget(sent, langTag, countTokens, 0)
		if err != nil {
			return nil, 0, err
		}

		chunks = append(chunks, sub...)
		truncated += cut
	}

	return chunks, truncated, nil
}

// splitTerminal splits on sentence-terminal punctuation and line
// breaks, keeping the terminator attached to the preceding text.
func splitTerminal(s string) []string {
	var out []string

	var b strings.Builder

	flush := func() {
		t := strings.TrimSpace(b.String())
		if t != "" {
			out = append(out, t)
		}

		b.Reset()
	}

	for _, r := range s {
		if r == '\n' {
			flush()

			continue
		}

		b.WriteRune(r)

		if sentenceTerminators[r] {
			flush()
		}
	}

	flush()

	return out
}

// fitToBudget ensures sent's projected (and, if countTokens is given,
// exact) token count fits MaxTokens, re-splitting at progressively
// coarser boundaries when it doesn't. attempt bounds the recursion
// against maxSplitAttempts; truncated counts the chunks that had to be
// hard-truncated because no further split was possible.
func fitToBudget(sent, langTag string, countTokens func(string) (int, error), attempt int) (out []string, truncated int, err error) {
	sent = strings.TrimSpace(sent)
	if sent == "" {
		return nil, 0, nil
	}

	fits, err := withinBudget(sent, langTag, countTokens)
	if err != nil {
		return nil, 0, err
	}

	if fits {
		return []string{sent}, 0, nil
	}

	if attempt >= maxSplitAttempts {
		return []string{hardTruncate(sent, langTag)}, 1, nil
	}

	var halves []string
	if attempt == 0 {
		halves = splitAtClause(sent)
	} else {
		halves = splitAtWhitespace(sent)
	}

	if len(halves) < 2 {
		halves = splitAtWhitespace(sent)
	}

	if len(halves) < 2 {
		return []string{hardTruncate(sent, langTag)}, 1, nil
	}

	for _, h := range halves {
		sub, cut, err := fitToBudget(h, langTag, countTokens, attempt+1)
		if err != nil {
			return nil, 0, err
		}

		out = append(out, sub...)
		truncated += cut
	}

	return out, truncated, nil
}

func withinBudget(sent, langTag string, countTokens func(string) (int, error)) (bool, error) {
	if EstimateTokens(sent, langTag) <= MaxTokens {
		if countTokens == nil {
			return true, nil
		}

		n, err := countTokens(sent)
		if err != nil {
			return false, err
		}

		return n <= MaxTokens, nil
	}

	return false, nil
}

// splitAtClause splits at the nearest comma/semicolon/clause boundary
// closest to the midpoint.
func splitAtClause(s string) []string {
	runes := []rune(s)
	mid := len(runes) / 2

	best := -1
	bestDist := len(runes) + 1

	for i, r := range runes {
		if !clauseBreaks[r] {
			continue
		}

		d := i - mid
		if d < 0 {
			d = -d
		}

		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	if best < 0 {
		return nil
	}

	left := strings.TrimSpace(string(runes[:best+1]))
	right := strings.TrimSpace(string(runes[best+1:]))

	var out []string
	if left != "" {
		out = append(out, left)
	}

	if right != "" {
		out = append(out, right)
	}

	return out
}

// splitAtWhitespace hard-splits at the whitespace boundary nearest the
// midpoint, the fallback when no clause punctuation is present.
func splitAtWhitespace(s string) []string {
	runes := []rune(s)
	mid := len(runes) / 2

	best := -1
	bestDist := len(runes) + 1

	for i, r := range runes {
		if !unicode.IsSpace(r) {
			continue
		}

		d := i - mid
		if d < 0 {
			d = -d
		}

		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	if best < 0 {
		return nil
	}

	left := strings.TrimSpace(string(runes[:best]))
	right := strings.TrimSpace(string(runes[best+1:]))

	var out []string
	if left != "" {
		out = append(out, left)
	}

	if right != "" {
		out = append(out, right)
	}

	return out
}

// hardTruncate takes the largest prefix of s whose estimate fits
// MaxTokens, the last-resort fallback when clause and whitespace
// splitting still leave an oversized chunk.
func hardTruncate(s, langTag string) string {
	runes := []rune(s)

	lo, hi := 0, len(runes)

	for lo < hi {
		mid := (lo + hi + 1) / 2
		if EstimateTokens(string(runes[:mid]), langTag) <= MaxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	if lo == 0 {
		return ""
	}

	return strings.TrimSpace(string(runes[:lo]))
}
