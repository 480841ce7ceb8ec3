package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/audio"
	"github.com/byteowlz/kokorox/internal/langdetect"
	"github.com/byteowlz/kokorox/internal/stream"
	"github.com/byteowlz/kokorox/internal/style"
)

// newStreamCmd implements the streaming CLI mode: text fragments read
// from stdin line-by-line are appended to a streaming session as they
// arrive, and PCM chunks are written to stdout in order as soon as
// each sentence finishes synthesizing — the pattern an LLM token
// stream feeding a TTS pipe would use.
func newStreamCmd() *cobra.Command {
	var voice string
	var speed float64
	var inFlight int
	var minChunkChars int

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream text fragments from stdin to synthesized PCM chunks on stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if voice == "" {
				voice = cfg.Synthesis.Voice
			}

			if speed <= 0 {
				speed = cfg.Synthesis.Speed
			}

			if inFlight <= 0 {
				inFlight = cfg.Synthesis.StreamInFlight
			}

			if minChunkChars <= 0 {
				minChunkChars = cfg.Synthesis.MinChunkChars
			}

			h, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			expr, err := style.Parse(voice)
			if err != nil {
				return err
			}

			resolved, err := expr.Resolve(h.pack)
			if err != nil {
				return err
			}

			langTag := resolved.LanguageTag
			if langTag == "" {
				langTag = langdetect.Default
			}

			manager := stream.NewManager(engineStreamAdapter{h.engine}, stream.Options{
				InFlight:      inFlight,
				MinChunkChars: minChunkChars,
			})

			sess := manager.Open(stream.OpenOptions{
				Voice:   resolved,
				LangTag: langTag,
				Speed:   speed,
				Variant: h.registry.Active(),
			})

			if _, err := audio.WriteWAVHeaderStreaming(os.Stdout); err != nil {
				return fmt.Errorf("write streaming WAV header: %w", err)
			}

			done := make(chan error, 1)

			go func() {
				for chunk := range sess.Chunks() {
					if _, err := audio.WritePCM16Samples(os.Stdout, chunk.Samples); err != nil {
						done <- err
						return
					}
				}

				done <- nil
			}()

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for scanner.Scan() {
				if err := manager.Append(sess.ID(), scanner.Text()+" "); err != nil {
					return err
				}
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			if err := manager.End(sess.ID()); err != nil {
				return err
			}

			return <-done
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "Voice id or mix expression")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier (overrides config default)")
	cmd.Flags().IntVar(&inFlight, "in-flight", 0, "Max concurrently synthesizing sentences (overrides config default)")
	cmd.Flags().IntVar(&minChunkChars, "min-chunk-chars", 0, "Minimum buffered characters before a chunk is dispatched")

	return cmd
}
