package onnx

import (
	"context"
	"errors"
	"fmt"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// RunnerConfig holds ORT library settings shared by every runner the
// process opens.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Kokoro's graph is a fixed single pass: the three named inputs below
// go in, one float32 PCM tensor comes out. There is nothing generic to
// negotiate per call, so the runner speaks exactly this shape.
const (
	inputTokens = "tokens"
	inputStyle  = "style"
	inputSpeed  = "speed"
	outputAudio = "audio"
)

// Runner owns one ORT session for one Kokoro model file.
type Runner struct {
	variant string
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

// NewRunner loads the ORT shared library and opens a session for the
// given model variant.
func NewRunner(spec VariantSpec, cfg RunnerConfig) (*Runner, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime for %q: %w", spec.Name, err)
	}

	env, err := runtime.NewEnv("kokorox-"+spec.Name, ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env for %q: %w", spec.Name, err)
	}

	session, err := runtime.NewSession(env, spec.Path, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("ort session for %q (%s): %w", spec.Name, spec.Path, err)
	}

	return &Runner{
		variant: spec.Name,
		runtime: runtime,
		env:     env,
		session: session,
	}, nil
}

// Infer runs the model once: tokens (1×n int64), style (1×256
// float32), speed (scalar float32) → PCM samples at 24kHz. The three
// input tensors are built, run, and released in place; no intermediate
// tensor representation survives the call.
func (r *Runner) Infer(ctx context.Context, tokens []int64, styleRow []float32, speed float32) ([]float32, error) {
	tokensVal, err := ort.NewTensorValue(r.runtime, tokens, []int64{1, int64(len(tokens))})
	if err != nil {
		return nil, fmt.Errorf("%s tensor: %w", inputTokens, err)
	}
	defer tokensVal.Close()

	styleVal, err := ort.NewTensorValue(r.runtime, styleRow, []int64{1, int64(len(styleRow))})
	if err != nil {
		return nil, fmt.Errorf("%s tensor: %w", inputStyle, err)
	}
	defer styleVal.Close()

	speedVal, err := ort.NewTensorValue(r.runtime, []float32{speed}, []int64{1})
	if err != nil {
		return nil, fmt.Errorf("%s tensor: %w", inputSpeed, err)
	}
	defer speedVal.Close()

	outputs, err := r.session.Run(ctx, map[string]*ort.Value{
		inputTokens: tokensVal,
		inputStyle:  styleVal,
		inputSpeed:  speedVal,
	})
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", r.variant, err)
	}

	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Close()
			}
		}
	}()

	audioVal, ok := outputs[outputAudio]
	if !ok {
		return nil, errors.New("model produced no audio output")
	}

	samples, _, err := ort.GetTensorData[float32](audioVal)
	if err != nil {
		return nil, fmt.Errorf("read %s tensor: %w", outputAudio, err)
	}

	// The ORT value is released on return; keep our own copy.
	return append([]float32(nil), samples...), nil
}

// Close releases all ORT resources. Safe to call multiple times.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

// Name returns the variant name this runner's session was opened for.
func (r *Runner) Name() string {
	return r.variant
}
