// Package server exposes the synthesis orchestrator and streaming
// session manager over HTTP and WebSocket. It follows a familiar Go
// HTTP service shape: an Options struct, a worker semaphore bounding
// concurrent synthesis, and structured request logging.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/byteowlz/kokorox/internal/audio"
	"github.com/byteowlz/kokorox/internal/config"
	"github.com/byteowlz/kokorox/internal/langdetect"
	"github.com/byteowlz/kokorox/internal/registry"
	"github.com/byteowlz/kokorox/internal/stream"
	"github.com/byteowlz/kokorox/internal/style"
	"github.com/byteowlz/kokorox/internal/tts"
	"github.com/byteowlz/kokorox/internal/ttserr"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Options configures the HTTP/WebSocket handler.
type Options struct {
	Workers        int
	MaxTextBytes   int
	RequestTimeout time.Duration
	StreamInFlight int
	MinChunkChars  int
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}

	if o.MaxTextBytes <= 0 {
		o.MaxTextBytes = 4096
	}

	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// handler holds the dependencies needed to serve HTTP and WebSocket
// requests: the orchestrator, the voice pack (for listing), and the
// registry (for variant selection).
type handler struct {
	engine   *tts.Engine
	voices   *voicepack.Pack
	registry *registry.Registry
	streams  *stream.Manager
	opts     Options
	sem      chan struct{}
	log      *slog.Logger
	metrics  *Metrics
}

// NewHandler builds the chi-routed http.Handler serving the
// OpenAI-compatible REST surface, the WebSocket surface, and a
// Prometheus /metrics endpoint.
func NewHandler(engine *tts.Engine, voices *voicepack.Pack, reg *registry.Registry, opts Options) http.Handler {
	opts = opts.withDefaults()

	h := &handler{
		engine:   engine,
		voices:   voices,
		registry: reg,
		opts:     opts,
		log:      opts.Logger,
		metrics:  NewMetrics(),
	}

	streamOpts := stream.Options{InFlight: opts.StreamInFlight, MinChunkChars: opts.MinChunkChars}
	h.streams = stream.NewManager(streamSynthAdapter{engine: engine}, streamOpts)

	if opts.Workers > 0 {
		h.sem = make(chan struct{}, opts.Workers)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/audio/voices", h.handleVoices)
	r.Get("/v1/audio/voices/detailed", h.handleVoicesDetailed)
	r.Post("/v1/audio/speech", h.handleSpeech)
	r.Get("/v1/ws", h.handleWebSocket)

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"voices": h.voices.List()})
}

type voiceDetail struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

func (h *handler) handleVoicesDetailed(w http.ResponseWriter, _ *http.Request) {
	ids := h.voices.List()
	details := make([]voiceDetail, 0, len(ids))

	for _, id := range ids {
		v, ok := h.voices.Get(id)
		if !ok {
			continue
		}

		details = append(details, voiceDetail{ID: v.ID, Language: v.LanguageTag, Gender: v.GenderHint})
	}

	writeJSON(w, http.StatusOK, details)
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

// handleSpeech implements POST /v1/audio/speech, the OpenAI-compatible
// one-shot synthesis endpoint.
func (h *handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req speechRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, int64(h.opts.MaxTextBytes)+4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "input field is required")
		return
	}

	if len(req.Input) > h.opts.MaxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("input exceeds maximum size of %d bytes", h.opts.MaxTextBytes))

		return
	}

	if !h.acquireWorker(r.Context(), w) {
		return
	}

	if h.sem != nil {
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	voiceExpr := req.Voice
	if voiceExpr == "" {
		voiceExpr = "af_heart"
	}

	start := time.Now()
	timer := h.metrics.StartSynthesis()
	result, err := h.engine.Synthesize(ctx, req.Input, voiceExpr, speed, h.registry.Active())
	timer.ObserveError(err)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		h.logSynthesisError(r.Context(), voiceExpr, req.Input, durationMS, err)
		writeSynthesisError(w, err)

		return
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.String("voice", voiceExpr),
		slog.Int("text_len", len(req.Input)),
		slog.Int64("duration_ms", durationMS),
		slog.Int("failed_sentences", result.FailedSentences),
	)

	body, contentType, err := encodeResponse(result.Samples, req.ResponseFormat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// encodeResponse renders PCM as the requested container. MP3 is
// accepted as a request format but, lacking an MP3 encoder dependency,
// the response is WAV bytes labelled "audio/wav" — documented in
// DESIGN.md rather than silently mis-labelled.
func encodeResponse(samples []float32, format string) ([]byte, string, error) {
	wavBytes, err := audio.EncodeWAV(samples)
	if err != nil {
		return nil, "", fmt.Errorf("encode WAV: %w", err)
	}

	if strings.EqualFold(format, "mp3") {
		return wavBytes, "audio/wav", nil
	}

	return wavBytes, "audio/wav", nil
}

func (h *handler) logSynthesisError(ctx context.Context, voice, text string, durationMS int64, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.log.WarnContext(ctx, "synthesis timed out",
			slog.String("voice", voice), slog.Int("text_len", len(text)),
			slog.Int64("duration_ms", durationMS), slog.String("error", err.Error()))

		return
	}

	h.log.ErrorContext(ctx, "synthesis failed",
		slog.String("voice", voice), slog.Int("text_len", len(text)),
		slog.Int64("duration_ms", durationMS), slog.String("error", err.Error()))
}

// errorKind extracts a ttserr.Kind label for metrics, falling back to
// "unknown" for errors outside the taxonomy (e.g. context.DeadlineExceeded).
func errorKind(err error) string {
	var te *ttserr.Error
	if errors.As(err, &te) {
		return string(te.Kind)
	}

	return "unknown"
}

func writeSynthesisError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "synthesis timed out")
		return
	}

	switch {
	case ttserr.Is(err, ttserr.BadInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case ttserr.Is(err, ttserr.PhonemizerUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *handler) acquireWorker(ctx context.Context, w http.ResponseWriter) bool {
	if h.sem == nil {
		return true
	}

	select {
	case h.sem <- struct{}{}:
		return true
	default:
		h.log.Info("request queued for worker slot")

		select {
		case h.sem <- struct{}{}:
			return true
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return false
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolveVoice parses a mix expression against pack and, if langTag is
// empty, auto-detects the language from sampleText — the shared helper
// behind both the REST and WebSocket synthesize paths.
func resolveVoice(pack *voicepack.Pack, voiceExpr, langTag, sampleText string, autoDetect bool) (voicepack.Voice, string, error) {
	expr, err := style.Parse(voiceExpr)
	if err != nil {
		return voicepack.Voice{}, "", err
	}

	voice, err := expr.Resolve(pack)
	if err != nil {
		return voicepack.Voice{}, "", err
	}

	tag := langTag
	if tag == "" {
		if autoDetect || voice.LanguageTag == "" {
			tag = langdetect.Detect(sampleText)
		} else {
			tag = voice.LanguageTag
		}
	}

	return voice, tag, nil
}

// streamSynthAdapter adapts *tts.Engine to internal/stream.Synthesizer.
type streamSynthAdapter struct {
	engine *tts.Engine
}

func (a streamSynthAdapter) SynthesizeChunk(ctx context.Context, variant registry.Variant, chunk, langTag string, voice voicepack.Voice, speed float64) ([]float32, error) {
	return a.engine.SynthesizeChunk(ctx, variant, chunk, langTag, voice, speed)
}

// ---------------------------------------------------------------------------
// Server — wires the handler into net/http.Server with graceful shutdown.
// ---------------------------------------------------------------------------

// Server owns the HTTP listener lifecycle, with signal-driven graceful
// shutdown.
type Server struct {
	cfg             config.Config
	engine          *tts.Engine
	voices          *voicepack.Pack
	registry        *registry.Registry
	shutdownTimeout time.Duration
}

// New builds a Server from an already-initialized engine handle.
func New(cfg config.Config, engine *tts.Engine, voices *voicepack.Pack, reg *registry.Registry) *Server {
	return &Server{
		cfg:             cfg,
		engine:          engine,
		voices:          voices,
		registry:        reg,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Start runs the HTTP server until ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout before returning.
func (s *Server) Start(ctx context.Context) error {
	opts := Options{
		Workers:        s.cfg.Server.Workers,
		MaxTextBytes:   s.cfg.Server.MaxTextBytes,
		RequestTimeout: time.Duration(s.cfg.Server.RequestTimeout) * time.Second,
		StreamInFlight: s.cfg.Synthesis.StreamInFlight,
		MinChunkChars:  s.cfg.Synthesis.MinChunkChars,
	}

	h := NewHandler(s.engine, s.voices, s.registry, opts)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP is a lightweight health check used by the CLI's `health`
// command against a running server.
func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	return nil
}
