package tts

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/byteowlz/kokorox/internal/onnx"
	"github.com/byteowlz/kokorox/internal/phonemize"
	"github.com/byteowlz/kokorox/internal/registry"
	"github.com/byteowlz/kokorox/internal/tokenizer"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

type stubPhonemizeBackend struct {
	phonemes []string
}

func (s stubPhonemizeBackend) Phonemize(_ context.Context, _ string) ([]string, error) {
	return s.phonemes, nil
}

type fakeModelRunner struct {
	samplesPerRun int
}

func (f fakeModelRunner) Name() string { return "standard" }
func (f fakeModelRunner) Close()       {}

func (f fakeModelRunner) Infer(_ context.Context, _ []int64, _ []float32, _ float32) ([]float32, error) {
	n := f.samplesPerRun
	if n == 0 {
		n = 240
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = 0.5
	}

	return out, nil
}

func testPack(t *testing.T) *voicepack.Pack {
	t.Helper()

	var buf bytes.Buffer
	style := make([]float32, 510*256)
	for i := range style {
		style[i] = 0.01
	}

	if err := voicepack.Write(&buf, []voicepack.Entry{{Name: "af_heart", Style: style}}); err != nil {
		t.Fatalf("voicepack.Write: %v", err)
	}

	pack, err := voicepack.LoadReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("voicepack.LoadReader: %v", err)
	}

	return pack
}

func testEngine(t *testing.T) *Engine {
	t.Helper()

	pack := testPack(t)

	dispatch := phonemize.NewDispatch(map[string]phonemize.Backend{
		"en-us": stubPhonemizeBackend{phonemes: []string{"h", "ə", "l", "oʊ"}},
	})

	tok := tokenizer.NewDefaultVocabTokenizer()

	onnxEngine := onnx.NewEngineWithRunner("standard", fakeModelRunner{})

	reg, err := registry.New(map[registry.Variant]*onnx.Engine{
		registry.VariantStandard: onnxEngine,
	})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	return NewEngine(pack, dispatch, tok, reg, Options{})
}

func TestSynthesizeProducesAudio(t *testing.T) {
	eng := testEngine(t)

	result, err := eng.Synthesize(context.Background(), "hello there.", "af_heart", 1.0, registry.VariantStandard)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if len(result.Samples) == 0 {
		t.Fatal("expected non-empty samples")
	}

	if result.FailedSentences != 0 {
		t.Fatalf("FailedSentences = %d, want 0", result.FailedSentences)
	}
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	eng := testEngine(t)

	_, err := eng.Synthesize(context.Background(), "hello", "af_nonexistent", 1.0, registry.VariantStandard)
	if err == nil {
		t.Fatal("expected error for unknown voice")
	}
}

func TestSynthesizeEmptyInput(t *testing.T) {
	eng := testEngine(t)

	_, err := eng.Synthesize(context.Background(), "", "af_heart", 1.0, registry.VariantStandard)
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}

// flakyBackend fails phonemization for any sentence containing failOn.
type flakyBackend struct {
	failOn string
}

func (f flakyBackend) Phonemize(_ context.Context, text string) ([]string, error) {
	if strings.Contains(text, f.failOn) {
		return nil, errors.New("phonemizer exploded")
	}

	return []string{"h", "ə", "l", "oʊ"}, nil
}

func testEngineWithBackend(t *testing.T, backend phonemize.Backend) *Engine {
	t.Helper()

	pack := testPack(t)

	dispatch := phonemize.NewDispatch(map[string]phonemize.Backend{"en-us": backend})
	tok := tokenizer.NewDefaultVocabTokenizer()

	onnxEngine := onnx.NewEngineWithRunner("standard", fakeModelRunner{})

	reg, err := registry.New(map[registry.Variant]*onnx.Engine{
		registry.VariantStandard: onnxEngine,
	})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	return NewEngine(pack, dispatch, tok, reg, Options{})
}

func TestSynthesizePartialFailureSubstitutesSilence(t *testing.T) {
	eng := testEngineWithBackend(t, flakyBackend{failOn: "broken"})

	input := "Hello there. This one is broken somehow. Goodbye now."

	result, err := eng.Synthesize(context.Background(), input, "af_heart", 1.0, registry.VariantStandard)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if result.TotalSentences != 3 {
		t.Fatalf("TotalSentences = %d, want 3", result.TotalSentences)
	}

	if result.FailedSentences != 1 {
		t.Fatalf("FailedSentences = %d, want 1", result.FailedSentences)
	}

	// Two synthesized sentences of 240 fake samples each, plus the failed
	// sentence's proportional silence.
	want := 480 + len(silenceFor("This one is broken somehow."))
	if len(result.Samples) != want {
		t.Fatalf("len(Samples) = %d, want %d", len(result.Samples), want)
	}
}

func TestSynthesizeAllSentencesFailedSurfacesError(t *testing.T) {
	eng := testEngineWithBackend(t, flakyBackend{failOn: "Hello"})

	_, err := eng.Synthesize(context.Background(), "Hello there.", "af_heart", 1.0, registry.VariantStandard)
	if err == nil {
		t.Fatal("expected error when every sentence fails")
	}
}

func TestSynthesizeChunkDirect(t *testing.T) {
	eng := testEngine(t)

	pack := testPack(t)
	voice, ok := pack.Get("af_heart")
	if !ok {
		t.Fatal("af_heart voice missing from test pack")
	}

	samples, err := eng.SynthesizeChunk(context.Background(), registry.VariantStandard, "hello", "en-us", voice, 1.0)
	if err != nil {
		t.Fatalf("SynthesizeChunk: %v", err)
	}

	if len(samples) == 0 {
		t.Fatal("expected non-empty samples")
	}
}
