// Package tts wires the text, phonemize, tokenizer, registry, and audio
// packages into the end-to-end synthesis pipeline: style resolution,
// normalization, segmentation, phonemization, tokenization, inference,
// and audio assembly.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/byteowlz/kokorox/internal/audio"
	"github.com/byteowlz/kokorox/internal/langdetect"
	"github.com/byteowlz/kokorox/internal/phonemize"
	"github.com/byteowlz/kokorox/internal/registry"
	"github.com/byteowlz/kokorox/internal/style"
	"github.com/byteowlz/kokorox/internal/text"
	"github.com/byteowlz/kokorox/internal/tokenizer"
	"github.com/byteowlz/kokorox/internal/ttserr"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

// sampleRate is fixed by the acoustic model; see internal/audio.ExpectedSampleRate.
const sampleRate = audio.ExpectedSampleRate

// silenceCharsPerSecond estimates spoken duration for the silence
// substituted in place of a sentence that fails to synthesize, so a
// dropped sentence doesn't shrink the overall audio length much more
// than the words it stood for would have taken.
const silenceCharsPerSecond = 15.0

// defaultSentenceTimeout is the soft deadline for one sentence's
// inference call. ONNX Run is not interruptible once started, so the
// deadline is observed at the call boundary: an overrun surfaces as
// InferenceTimeout and the sentence falls under the partial-failure
// policy.
const defaultSentenceTimeout = 30 * time.Second

// Options configures an Engine's synthesis defaults. Per-request values
// (voice, speed, variant) override these where the caller supplies them.
type Options struct {
	CrossfadeSamples int
	InitialSilenceMs float64
	// SentenceTimeout bounds a single sentence's inference; zero means
	// defaultSentenceTimeout.
	SentenceTimeout time.Duration
}

// Engine is the synthesis orchestrator handle. Callers construct one
// Engine per process (or per test) rather than relying on package-level
// globals, so tests can exercise multiple independent configurations.
type Engine struct {
	voices     *voicepack.Pack
	phonemizer *phonemize.Dispatch
	tokenizer  tokenizer.Tokenizer
	registry   *registry.Registry
	opts       Options
}

// NewEngine assembles a synthesis orchestrator from its component
// dependencies, all of which are expected to already be initialized
// (voice pack loaded, phonemizer backends probed, registry sessions
// warmed).
func NewEngine(voices *voicepack.Pack, ph *phonemize.Dispatch, tok tokenizer.Tokenizer, reg *registry.Registry, opts Options) *Engine {
	return &Engine{
		voices:     voices,
		phonemizer: ph,
		tokenizer:  tok,
		registry:   reg,
		opts:       opts,
	}
}

// Result is the output of a full-text synthesis request.
type Result struct {
	Samples []float32
	// FailedSentences counts sentences whose synthesis (phonemization,
	// tokenization or inference) failed and were replaced with
	// proportional silence.
	FailedSentences int
	TotalSentences  int
}

// Synthesize runs the complete pipeline for a block of input text:
// resolve the voice/mix expression, detect language, normalize and
// segment the text, then phonemize, tokenize, and infer each sentence
// before assembling the PCM output.
func (e *Engine) Synthesize(ctx context.Context, input, voiceExpr string, speed float64, variant registry.Variant) (Result, error) {
	expr, err := style.Parse(voiceExpr)
	if err != nil {
		return Result{}, err
	}

	voice, err := expr.Resolve(e.voices)
	if err != nil {
		return Result{}, err
	}

	normalized, err := text.Normalize(input)
	if err != nil {
		return Result{}, err
	}

	langTag := langdetect.Detect(normalized)

	countTokens := func(s string) (int, error) {
		phonemes, err := e.phonemizer.Phonemize(ctx, langTag, s)
		if err != nil {
			// Segmentation must not fail outright here: the per-sentence
			// partial-failure policy below handles phonemizer errors, so
			// fall back to the estimate and keep splitting.
			return text.EstimateTokens(s, langTag), nil
		}

		tokens, err := e.tokenizer.Encode(phonemes)

		return len(tokens), err
	}

	sentences, truncated, err := text.Segment(normalized, langTag, countTokens)
	if err != nil {
		return Result{}, err
	}

	if truncated > 0 {
		slog.Warn("sentences exceeded the token budget after re-splitting and were hard-truncated",
			"count", truncated, "language", langTag, "text_len", len(normalized))
	}

	lease, err := e.registry.Acquire(variant)
	if err != nil {
		return Result{}, err
	}
	defer lease.Release()

	segments := make([][]float32, 0, len(sentences))
	failed := 0

	var firstErr error

	for _, sent := range sentences {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		samples, err := e.synthesizeSentence(ctx, lease.Engine(), sent, langTag, voice, speed)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}

			slog.Warn("sentence synthesis failed, substituting silence",
				"sentence_len", len(sent), "error", err)

			if firstErr == nil {
				firstErr = err
			}

			failed++
			samples = silenceFor(sent)
		}

		segments = append(segments, samples)
	}

	if failed == len(sentences) && len(sentences) > 0 {
		return Result{}, fmt.Errorf("all %d sentences failed to synthesize: %w", len(sentences), firstErr)
	}

	out := audio.Assemble(segments, sampleRate, e.opts.CrossfadeSamples, e.opts.InitialSilenceMs)
	out = audio.ApplyHooks(out,
		func(s []float32) []float32 { return audio.DCBlock(s, sampleRate) },
		audio.PeakNormalize,
	)

	return Result{Samples: out, FailedSentences: failed, TotalSentences: len(sentences)}, nil
}

// SynthesizeChunk runs phonemize→tokenize→infer for a single, already
// segmented unit of text against a pre-resolved voice and known
// language tag. internal/stream uses this directly, since a streaming
// session resolves its voice and detects its language once per session
// rather than per chunk.
func (e *Engine) SynthesizeChunk(ctx context.Context, variant registry.Variant, chunk, langTag string, voice voicepack.Voice, speed float64) ([]float32, error) {
	lease, err := e.registry.Acquire(variant)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return e.synthesizeSentence(ctx, lease.Engine(), chunk, langTag, voice, speed)
}

func (e *Engine) synthesizeSentence(ctx context.Context, eng engineRunner, sent, langTag string, voice voicepack.Voice, speed float64) ([]float32, error) {
	phonemes, err := e.phonemizer.Phonemize(ctx, langTag, sent)
	if err != nil {
		return nil, fmt.Errorf("phonemize: %w", err)
	}

	tokens, err := e.tokenizer.Encode(phonemes)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	if len(tokens) == 0 {
		return nil, ttserr.New(ttserr.BadInput, "tts.synthesizeSentence", fmt.Errorf("sentence produced no tokens"))
	}

	styleRow, err := voice.Row(len(tokens))
	if err != nil {
		return nil, err
	}

	timeout := e.opts.SentenceTimeout
	if timeout <= 0 {
		timeout = defaultSentenceTimeout
	}

	inferCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	samples, err := eng.Synthesize(inferCtx, tokens, styleRow, float32(speed))
	if err != nil {
		if errors.Is(inferCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ttserr.New(ttserr.InferenceTimeout, "tts.synthesizeSentence", err)
		}

		return nil, fmt.Errorf("infer: %w", err)
	}

	return samples, nil
}

// engineRunner is the subset of *onnx.Engine the orchestrator depends
// on, narrowed so tests can substitute a fake without standing up ORT.
type engineRunner interface {
	Synthesize(ctx context.Context, tokens []int64, styleRow []float32, speed float32) ([]float32, error)
}

func silenceFor(sent string) []float32 {
	chars := len([]rune(sent))
	seconds := float64(chars) / silenceCharsPerSecond
	n := int(seconds * float64(sampleRate))
	if n < 1 {
		n = 1
	}

	return make([]float32, n)
}
