package main

import (
	"context"
	"fmt"
	"time"

	"github.com/byteowlz/kokorox/internal/config"
	"github.com/byteowlz/kokorox/internal/onnx"
	"github.com/byteowlz/kokorox/internal/phonemize"
	"github.com/byteowlz/kokorox/internal/registry"
	"github.com/byteowlz/kokorox/internal/tokenizer"
	"github.com/byteowlz/kokorox/internal/tts"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

// engineHandle bundles the process-wide singletons passed explicitly
// rather than kept as ambient globals: the voice pack, the model
// registry, and the synthesis orchestrator built on top of them.
type engineHandle struct {
	pack     *voicepack.Pack
	registry *registry.Registry
	engine   *tts.Engine
}

// buildEngine wires internal/voicepack, internal/phonemize,
// internal/tokenizer, internal/onnx, and internal/registry into a
// ready-to-use orchestrator. Every CLI subcommand that needs to
// synthesize calls this once.
func buildEngine(cfg config.Config) (*engineHandle, error) {
	pack, err := voicepack.Load(cfg.Paths.VoicePackPath)
	if err != nil {
		return nil, fmt.Errorf("load voice pack: %w", err)
	}

	dispatch, err := phonemize.BuildDefault(cfg.Paths.EspeakPath)
	if err != nil {
		return nil, fmt.Errorf("build phonemizer backends: %w", err)
	}

	tok := tokenizer.NewDefaultVocabTokenizer()

	manifest, err := onnx.LoadManifest(cfg.Paths.ONNXManifest)
	if err != nil {
		return nil, fmt.Errorf("load model manifest %q: %w", cfg.Paths.ONNXManifest, err)
	}

	ortRunner := onnx.RunnerConfig{LibraryPath: cfg.Runtime.ORTLibraryPath}

	// Each replica is its own ONNX session; sessions are treated as
	// non-reentrant, so concurrency above one comes from replication.
	replicas := cfg.Synthesis.Concurrency
	if replicas < 1 {
		replicas = 1
	}

	pools := make(map[registry.Variant][]*onnx.Engine, len(manifest.Variants))

	closeAll := func() {
		for _, engines := range pools {
			for _, e := range engines {
				e.Close()
			}
		}
	}

	for _, spec := range manifest.Variants {
		engines := make([]*onnx.Engine, 0, replicas)

		for i := 0; i < replicas; i++ {
			e, err := onnx.NewEngine(spec, ortRunner)
			if err != nil {
				closeAll()

				return nil, fmt.Errorf("open model variant %q: %w", spec.Name, err)
			}

			engines = append(engines, e)
		}

		pools[registry.Variant(spec.Name)] = engines
	}

	reg, err := registry.NewPool(pools)
	if err != nil {
		closeAll()

		return nil, fmt.Errorf("build model registry: %w", err)
	}

	variant, err := config.NormalizeVariant(cfg.Synthesis.Variant)
	if err != nil {
		return nil, err
	}

	if err := reg.SetActive(registry.Variant(variant)); err != nil {
		// The configured variant isn't listed in the manifest (e.g.
		// "quantized" with only a standard model file downloaded); fall
		// back to standard rather than fail the whole CLI invocation.
		_ = reg.SetActive(registry.VariantStandard)
	}

	eng := tts.NewEngine(pack, dispatch, tok, reg, tts.Options{
		CrossfadeSamples: cfg.Synthesis.CrossfadeSamples,
		InitialSilenceMs: cfg.Synthesis.InitialSilenceMs,
		SentenceTimeout:  time.Duration(cfg.Synthesis.SentenceTimeout) * time.Second,
	})

	return &engineHandle{pack: pack, registry: reg, engine: eng}, nil
}

func (h *engineHandle) Close() {
	h.registry.Close()
}

// engineStreamAdapter adapts *tts.Engine to internal/stream.Synthesizer
// for the CLI's `stream` command, the same shape internal/server uses
// for its WebSocket streaming surface.
type engineStreamAdapter struct {
	engine *tts.Engine
}

func (a engineStreamAdapter) SynthesizeChunk(ctx context.Context, variant registry.Variant, chunk, langTag string, voice voicepack.Voice, speed float64) ([]float32, error) {
	return a.engine.SynthesizeChunk(ctx, variant, chunk, langTag, voice, speed)
}
