package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/byteowlz/kokorox/internal/server"
)

// newOpenAICmd starts the OpenAI-compatible HTTP surface (POST
// /v1/audio/speech, GET /v1/audio/voices[/detailed]). It shares a
// process with the WebSocket surface (newWebSocketCmd starts the
// identical server); both commands exist so a caller can choose to
// launch "the OpenAI surface" versus "the realtime surface" even
// though this engine always serves both from one listener.
func newOpenAICmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "openai",
		Short: "Run the OpenAI-compatible HTTP speech server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config server.listen_addr)")

	return cmd
}

// newWebSocketCmd starts the same server as newOpenAICmd, emphasizing
// its GET /v1/ws realtime streaming surface.
func newWebSocketCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "websocket",
		Short: "Run the realtime WebSocket speech server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config server.listen_addr)")

	return cmd
}

func runServer(cmd *cobra.Command, addrOverride string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	if addrOverride != "" {
		cfg.Server.ListenAddr = addrOverride
	}

	h, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	srv := server.New(cfg, h.engine, h.pack, h.registry).
		WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}
