package onnx

import (
	"context"
	"testing"
)

type fakeRunner struct {
	name      string
	gotTokens []int64
	gotStyle  []float32
	gotSpeed  float32
	samples   []float32
	closed    bool
}

func (f *fakeRunner) Infer(_ context.Context, tokens []int64, styleRow []float32, speed float32) ([]float32, error) {
	f.gotTokens = tokens
	f.gotStyle = styleRow
	f.gotSpeed = speed

	return f.samples, nil
}

func (f *fakeRunner) Name() string { return f.name }
func (f *fakeRunner) Close()       { f.closed = true }

func TestSynthesizeDelegatesToRunner(t *testing.T) {
	runner := &fakeRunner{name: "standard", samples: []float32{0.1, 0.2, 0.3}}
	e := NewEngineWithRunner("standard", runner)

	tokens := []int64{0, 1, 2, 3, 0}
	style := make([]float32, 256)

	out, err := e.Synthesize(context.Background(), tokens, style, 1.25)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("got %d samples, want 3", len(out))
	}

	if len(runner.gotTokens) != len(tokens) {
		t.Fatalf("runner saw %d tokens, want %d", len(runner.gotTokens), len(tokens))
	}

	if len(runner.gotStyle) != 256 {
		t.Fatalf("runner saw %d style elements, want 256", len(runner.gotStyle))
	}

	if runner.gotSpeed != 1.25 {
		t.Fatalf("runner saw speed %v, want 1.25", runner.gotSpeed)
	}
}

func TestSynthesizeRejectsEmptyTokens(t *testing.T) {
	e := NewEngineWithRunner("standard", nil)

	_, err := e.Synthesize(context.Background(), nil, make([]float32, 256), 1.0)
	if err == nil {
		t.Fatal("expected error for empty tokens")
	}
}

func TestSynthesizeRejectsWrongStyleSize(t *testing.T) {
	e := NewEngineWithRunner("standard", nil)

	_, err := e.Synthesize(context.Background(), []int64{1}, make([]float32, 10), 1.0)
	if err == nil {
		t.Fatal("expected error for wrong style size")
	}
}

func TestSynthesizeNilRunner(t *testing.T) {
	e := NewEngineWithRunner("standard", nil)

	_, err := e.Synthesize(context.Background(), []int64{1}, make([]float32, 256), 1.0)
	if err == nil {
		t.Fatal("expected error when no session is open")
	}
}

func TestCloseReleasesRunner(t *testing.T) {
	runner := &fakeRunner{name: "standard"}
	e := NewEngineWithRunner("standard", runner)

	e.Close()

	if !runner.closed {
		t.Fatal("Close did not release the runner")
	}
}
