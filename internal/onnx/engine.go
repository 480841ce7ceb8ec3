package onnx

import (
	"context"
	"errors"
	"fmt"
)

// ModelRunner is the minimal inference contract Engine depends on: one
// fixed-shape Kokoro pass. It lets tests (and alternate runtimes)
// substitute a fake without linking the real ORT shared library.
type ModelRunner interface {
	Infer(ctx context.Context, tokens []int64, styleRow []float32, speed float32) ([]float32, error)
	Name() string
	Close()
}

// Engine drives inference for one Kokoro model variant. It is stateless
// between calls; a session is treated as non-reentrant, so callers
// serialize access per Engine (see internal/registry, which replicates
// Engines when concurrency above one is wanted).
type Engine struct {
	variant string
	runner  ModelRunner
}

// NewEngine opens an ORT session for the given model variant.
func NewEngine(spec VariantSpec, cfg RunnerConfig) (*Engine, error) {
	runner, err := NewRunner(spec, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session for variant %q: %w", spec.Name, err)
	}

	return &Engine{variant: spec.Name, runner: runner}, nil
}

// NewEngineWithRunner builds an Engine over an externally provided
// runner, bypassing the real ORT session — the constructor every
// ORT-free unit test uses.
func NewEngineWithRunner(variant string, runner ModelRunner) *Engine {
	return &Engine{variant: variant, runner: runner}
}

// Variant returns the model variant name this engine was opened for.
func (e *Engine) Variant() string { return e.variant }

// Close releases the underlying ORT resources.
func (e *Engine) Close() {
	if e.runner != nil {
		e.runner.Close()
	}
}

// Synthesize validates the fixed input shapes (tokens 1×n, style 1×256,
// speed scalar) and runs one inference pass, returning PCM samples at
// 24kHz.
func (e *Engine) Synthesize(ctx context.Context, tokens []int64, styleRow []float32, speed float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, errors.New("synthesize: token slice must not be empty")
	}

	if len(styleRow) != 256 {
		return nil, fmt.Errorf("synthesize: style row must have 256 elements, got %d", len(styleRow))
	}

	if e.runner == nil {
		return nil, fmt.Errorf("synthesize: variant %q has no session", e.variant)
	}

	samples, err := e.runner.Infer(ctx, tokens, styleRow, speed)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	return samples, nil
}
