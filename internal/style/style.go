// Package style parses and resolves voice mix expressions into a single
// effective style tensor.
package style

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/byteowlz/kokorox/internal/ttserr"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

// Term is one component of a mix expression: a voice id and its
// (possibly negative, via a leading '-') weight.
type Term struct {
	VoiceID string
	Weight  float64
}

// Expression is the parsed form of a mix string: a non-empty ordered
// list of terms.
type Expression struct {
	Terms []Term
}

// Parse parses a mix expression with the grammar:
//
//	expr := term (('+'|'-') term)*
//	term := voice_id ('*' weight)?
//	voice_id := [A-Za-z0-9_]+
//	weight := float
//
// Whitespace between tokens is ignored; whitespace separating two
// voice ids or weight characters with no operator between them is a
// syntax error. A bare voice_id has weight 1.0. Leading '-' on a term
// negates its weight (subtraction). The empty expression is invalid.
func Parse(expr string) (Expression, error) {
	fields := strings.Fields(expr)
	for k := 1; k < len(fields); k++ {
		prev := fields[k-1]
		if isVoiceIDChar(prev[len(prev)-1]) && isVoiceIDChar(fields[k][0]) {
			return Expression{}, badSyntax(expr, "missing operator between %q and %q", prev, fields[k])
		}
	}

	s := strings.Join(fields, "")
	if s == "" {
		return Expression{}, ttserr.New(ttserr.BadInput, "style.Parse", fmt.Errorf("empty mix expression"))
	}

	var terms []Term

	sign := 1.0
	i := 0

	for i < len(s) {
		switch s[i] {
		case '+', '-':
			if i+1 >= len(s) || s[i+1] == '+' || s[i+1] == '-' {
				return Expression{}, badSyntax(s, "expected voice id after %q at position %d", s[i], i)
			}

			sign = 1.0
			if s[i] == '-' {
				sign = -1.0
			}

			i++

			continue
		}

		start := i
		for i < len(s) && isVoiceIDChar(s[i]) {
			i++
		}

		if i == start {
			return Expression{}, badSyntax(s, "expected voice id at position %d", start)
		}

		voiceID := s[start:i]
		weight := 1.0

		if i < len(s) && s[i] == '*' {
			i++

			wStart := i
			for i < len(s) && isWeightChar(s[i]) {
				i++
			}

			if i == wStart {
				return Expression{}, badSyntax(s, "expected weight after '*' at position %d", wStart)
			}

			w, err := strconv.ParseFloat(s[wStart:i], 64)
			if err != nil {
				return Expression{}, badSyntax(s, "invalid weight %q: %v", s[wStart:i], err)
			}

			weight = w
		}

		terms = append(terms, Term{VoiceID: voiceID, Weight: sign * weight})
		sign = 1.0

		if i < len(s) && s[i] != '+' && s[i] != '-' {
			return Expression{}, badSyntax(s, "expected '+' or '-' at position %d, got %q", i, s[i])
		}
	}

	if len(terms) == 0 {
		return Expression{}, badSyntax(s, "no terms parsed")
	}

	return Expression{Terms: terms}, nil
}

func badSyntax(s, format string, args ...any) error {
	return ttserr.New(ttserr.BadInput, "style.Parse", fmt.Errorf("bad mix syntax %q: %s", s, fmt.Sprintf(format, args...)))
}

func isVoiceIDChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func isWeightChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E'
}

// Resolve looks up every term's voice in pack and returns the weighted
// elementwise sum of their style tensors: Σ wᵢ · style(vᵢ). Weights are
// NOT renormalized — a weight sum far from 1.0 intentionally scales
// loudness/timbre; this is an exercised user-facing control, not a bug.
func (e Expression) Resolve(pack *voicepack.Pack) (voicepack.Voice, error) {
	if len(e.Terms) == 0 {
		return voicepack.Voice{}, ttserr.New(ttserr.BadInput, "style.Resolve", fmt.Errorf("empty expression"))
	}

	size := 510 * 256

	// Accumulate in float64 so each element is rounded to float32 once,
	// after the whole weighted sum.
	sum := make([]float64, size)

	var langTag, genderHint string

	for idx, term := range e.Terms {
		v, ok := pack.Get(term.VoiceID)
		if !ok {
			return voicepack.Voice{}, ttserr.Newf(ttserr.BadInput, "style.Resolve", "unknown voice %q", term.VoiceID)
		}

		if idx == 0 {
			langTag, genderHint = v.LanguageTag, v.GenderHint
		}

		for i, f := range v.Style {
			sum[i] += term.Weight * float64(f)
		}
	}

	combined := make([]float32, size)
	for i, x := range sum {
		combined[i] = float32(x)
	}

	return voicepack.Voice{
		ID:          e.String(),
		LanguageTag: langTag,
		GenderHint:  genderHint,
		Style:       combined,
	}, nil
}

// String renders the expression back to its canonical mix-string form.
func (e Expression) String() string {
	var b strings.Builder

	for i, t := range e.Terms {
		if i > 0 {
			if t.Weight < 0 {
				b.WriteString("-")
			} else {
				b.WriteString("+")
			}
		} else if t.Weight < 0 {
			b.WriteString("-")
		}

		b.WriteString(t.VoiceID)

		w := t.Weight
		if w < 0 {
			w = -w
		}

		if w != 1.0 {
			b.WriteString("*")
			b.WriteString(strconv.FormatFloat(w, 'g', -1, 64))
		}
	}

	return b.String()
}

// Single is a convenience constructor for a bare, unweighted voice id —
// the common case of "no mix expression, just a voice name".
func Single(voiceID string) Expression {
	return Expression{Terms: []Term{{VoiceID: voiceID, Weight: 1.0}}}
}
