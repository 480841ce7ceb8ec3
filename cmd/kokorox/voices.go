package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/style"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

func newVoicesCmd() *cobra.Command {
	var mix string

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List available voices, or preview a mix expression's weights",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			pack, err := voicepack.Load(cfg.Paths.VoicePackPath)
			if err != nil {
				return err
			}

			if mix != "" {
				return previewMix(pack, mix)
			}

			ids := pack.List()
			sort.Strings(ids)

			for _, id := range ids {
				v, _ := pack.Get(id)
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", v.ID, v.LanguageTag, v.GenderHint)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&mix, "mix", "", "Resolve a mix expression and print its contributing weights, without running inference")

	return cmd
}

// previewMix parses expr and reports each component voice's weight,
// verifying every referenced voice exists, without resolving a style
// tensor or invoking inference — a natural CLI-side use of
// internal/style that never touches the ONNX session.
func previewMix(pack *voicepack.Pack, expr string) error {
	parsed, err := style.Parse(expr)
	if err != nil {
		return err
	}

	for _, term := range parsed.Terms {
		v, ok := pack.Get(term.VoiceID)
		if !ok {
			return fmt.Errorf("unknown voice %q in mix expression", term.VoiceID)
		}

		fmt.Fprintf(os.Stdout, "%s\tweight=%g\tlang=%s\n", v.ID, term.Weight, v.LanguageTag)
	}

	return nil
}
