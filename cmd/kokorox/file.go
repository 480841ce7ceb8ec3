package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/audio"
)

func newFileCmd() *cobra.Command {
	var voice string
	var speed float64
	var out string

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Synthesize the contents of a text file to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}

			text := strings.TrimSpace(string(raw))
			if text == "" {
				return fmt.Errorf("input file %q is empty", args[0])
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

	cmd.Flags().StringVar(&voice, "voice", "", "Voice id or mix expression")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier (overrides config default)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")

	return cmd
}
