package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/audio"
)

func newPipeCmd() *cobra.Command {
	var voice string
	var speed float64

	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Read text from stdin and write synthesized WAV audio to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			text := strings.TrimSpace(string(raw))
			if text == "" {
				return fmt.Errorf("stdin produced no text")
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

			_, err = os.Stdout.Write(wavBytes)

			return err
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "Voice id or mix expression")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier (overrides config default)")

	return cmd
}
