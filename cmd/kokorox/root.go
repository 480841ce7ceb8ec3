package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/config"
	"github.com/byteowlz/kokorox/internal/server"
)

var (
	cfgFile   string
	activeCfg config.Config
)

// NewRootCmd builds the kokorox command tree: text, file, pipe, stream,
// voices, openai, websocket, doctor, and health. A persistent config loader plus a
// structured slog logger are installed before any subcommand runs.
func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "kokorox",
		Short: "Real-time multi-language text-to-speech over the Kokoro model",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}

			activeCfg = loaded
			setupLogger(loaded.LogLevel)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newTextCmd())
	cmd.AddCommand(newFileCmd())
	cmd.AddCommand(newPipeCmd())
	cmd.AddCommand(newStreamCmd())
	cmd.AddCommand(newVoicesCmd())
	cmd.AddCommand(newOpenAICmd())
	cmd.AddCommand(newWebSocketCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newHealthCmd())

	return cmd
}

func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.VoicePackPath == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}

	return activeCfg, nil
}
