package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/doctor"
	"github.com/byteowlz/kokorox/internal/onnx"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks (espeak-ng, ONNX Runtime, voice pack)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			espeakExe := cfg.Paths.EspeakPath
			if espeakExe == "" {
				espeakExe = "espeak-ng"
			}

			result := doctor.Run(doctor.Config{
				EspeakVersion: func() (string, error) {
					return probeEspeakVersion(espeakExe)
				},
				ONNXRuntimeVersion: func() (string, error) {
					info, err := onnx.DetectRuntime(cfg.Runtime)
					if err != nil {
						return "", err
					}

					return info.Version, nil
				},
				VoicePackPath: cfg.Paths.VoicePackPath,
				VoicePackLoad: func(path string) (int, error) {
					pack, err := voicepack.Load(path)
					if err != nil {
						return 0, err
					}

					return pack.Len(), nil
				},
			}, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, err = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return err
		},
	}

	return cmd
}

func probeEspeakVersion(exe string) (string, error) {
	out, err := exec.CommandContext(context.Background(), exe, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", exe, err)
	}

	return strings.TrimSpace(string(out)), nil
}
