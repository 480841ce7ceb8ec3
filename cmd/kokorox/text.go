package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/audio"
)

func newTextCmd() *cobra.Command {
	var text string
	var voice string
	var speed float64
	var out string

	cmd := &cobra.Command{
		Use:   "text",
		Short: "Synthesize a literal string to a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if text == "" {
				return fmt.Errorf("--text is required")
			}

			if voice == "" {
				voice = cfg.Synthesis.Voice
			}

			if speed <= 0 {
				speed = cfg.Synthesis.Speed
			}

			h, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			result, err := h.engine.Synthesize(cmd.Context(), text, voice, speed, h.registry.Active())
			if err != nil {
				return err
			}

			wavBytes, err := audio.EncodeWAV(result.Samples)
			if err != nil {
				return fmt.Errorf("encode WAV: %w", err)
			}

			return writeOutput(out, wavBytes)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice id or mix expression (e.g. af_sky*0.4+af_nicole*0.6)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier (overrides config default)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")

	return cmd
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
