package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Server    ServerConfig    `mapstructure:"server"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	VoicePackPath string `mapstructure:"voice_pack_path"`
	ONNXManifest  string `mapstructure:"onnx_manifest"`
	EspeakPath    string `mapstructure:"espeak_path"`
}

type RuntimeConfig struct {
	Threads        int    `mapstructure:"threads"`
	InterOpThreads int    `mapstructure:"inter_op_threads"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_secs"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout_secs"`
}

// SynthesisConfig carries the defaults for the synthesis orchestrator
// and streaming session manager.
type SynthesisConfig struct {
	Variant          string  `mapstructure:"variant"`
	Voice            string  `mapstructure:"voice"`
	Speed            float64 `mapstructure:"speed"`
	CrossfadeSamples int     `mapstructure:"crossfade_samples"`
	InitialSilenceMs float64 `mapstructure:"initial_silence_ms"`
	SentenceTimeout  int     `mapstructure:"sentence_timeout_secs"`
	StreamInFlight   int     `mapstructure:"stream_in_flight"`
	MinChunkChars    int     `mapstructure:"min_chunk_chars"`
	Concurrency      int     `mapstructure:"concurrency"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			VoicePackPath: "models/voices.kvp",
			ONNXManifest:  "models/onnx/manifest.json",
			EspeakPath:    "espeak-ng",
		},
		Runtime: RuntimeConfig{
			Threads:        4,
			InterOpThreads: 1,
			ORTLibraryPath: "",
			ORTVersion:     "",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
		},
		Synthesis: SynthesisConfig{
			Variant:          VariantStandard,
			Voice:            "af_heart",
			Speed:            1.0,
			CrossfadeSamples: 0,
			InitialSilenceMs: 0,
			SentenceTimeout:  30,
			StreamInFlight:   4,
			MinChunkChars:    8,
			Concurrency:      1,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-voice-pack", defaults.Paths.VoicePackPath, "Path to the KVP1 voice pack file")
	fs.String("paths-onnx-manifest", defaults.Paths.ONNXManifest, "Path to ONNX model manifest JSON")
	fs.String("paths-espeak-path", defaults.Paths.EspeakPath, "Path to the espeak-ng executable")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "ONNX intra-op thread count")
	fs.Int("runtime-inter-op-threads", defaults.Runtime.InterOpThreads, "ONNX inter-op thread count")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP/WebSocket listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent synthesis workers for the openai and websocket servers")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain timeout in seconds")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.String("variant", defaults.Synthesis.Variant, "Model variant (standard|quantized)")
	fs.String("voice", defaults.Synthesis.Voice, "Voice id or mix expression (e.g. af_heart*0.6+af_bella*0.4)")
	fs.Float64("speed", defaults.Synthesis.Speed, "Playback speed multiplier")
	fs.Int("crossfade-samples", defaults.Synthesis.CrossfadeSamples, "Crossfade length in samples between assembled segments")
	fs.Float64("initial-silence-ms", defaults.Synthesis.InitialSilenceMs, "Silence to prepend before the first segment, in milliseconds")
	fs.Int("sentence-timeout", defaults.Synthesis.SentenceTimeout, "Per-sentence inference deadline in seconds")
	fs.Int("stream-in-flight", defaults.Synthesis.StreamInFlight, "Max concurrently synthesizing chunks per streaming session")
	fs.Int("min-chunk-chars", defaults.Synthesis.MinChunkChars, "Minimum buffered characters before a streaming chunk is dispatched")
	fs.Int("concurrency", defaults.Synthesis.Concurrency, "Max concurrent synthesis requests across sessions")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("KOKOROX")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "KOKOROX_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("kokorox")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if _, err := NormalizeVariant(cfg.Synthesis.Variant); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.voice_pack_path", c.Paths.VoicePackPath)
	v.SetDefault("paths.onnx_manifest", c.Paths.ONNXManifest)
	v.SetDefault("paths.espeak_path", c.Paths.EspeakPath)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.inter_op_threads", c.Runtime.InterOpThreads)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout_secs", c.Server.RequestTimeout)
	v.SetDefault("synthesis.variant", c.Synthesis.Variant)
	v.SetDefault("synthesis.voice", c.Synthesis.Voice)
	v.SetDefault("synthesis.speed", c.Synthesis.Speed)
	v.SetDefault("synthesis.crossfade_samples", c.Synthesis.CrossfadeSamples)
	v.SetDefault("synthesis.initial_silence_ms", c.Synthesis.InitialSilenceMs)
	v.SetDefault("synthesis.sentence_timeout_secs", c.Synthesis.SentenceTimeout)
	v.SetDefault("synthesis.stream_in_flight", c.Synthesis.StreamInFlight)
	v.SetDefault("synthesis.min_chunk_chars", c.Synthesis.MinChunkChars)
	v.SetDefault("synthesis.concurrency", c.Synthesis.Concurrency)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.voice_pack_path", "paths-voice-pack")
	v.RegisterAlias("paths.onnx_manifest", "paths-onnx-manifest")
	v.RegisterAlias("paths.espeak_path", "paths-espeak-path")
	v.RegisterAlias("runtime.threads", "runtime-threads")
	v.RegisterAlias("runtime.inter_op_threads", "runtime-inter-op-threads")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_library_path", "ort-lib")
	v.RegisterAlias("runtime.ort_version", "runtime-ort-version")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("server.max_text_bytes", "max-text-bytes")
	v.RegisterAlias("server.request_timeout_secs", "request-timeout")
	v.RegisterAlias("synthesis.variant", "variant")
	v.RegisterAlias("synthesis.voice", "voice")
	v.RegisterAlias("synthesis.speed", "speed")
	v.RegisterAlias("synthesis.crossfade_samples", "crossfade-samples")
	v.RegisterAlias("synthesis.initial_silence_ms", "initial-silence-ms")
	v.RegisterAlias("synthesis.sentence_timeout_secs", "sentence-timeout")
	v.RegisterAlias("synthesis.stream_in_flight", "stream-in-flight")
	v.RegisterAlias("synthesis.min_chunk_chars", "min-chunk-chars")
	v.RegisterAlias("synthesis.concurrency", "concurrency")
	v.RegisterAlias("log_level", "log-level")
}
