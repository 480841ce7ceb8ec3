// Package onnx wraps the ONNX Runtime (via onnxruntime-purego) behind a
// small Engine type: one session per model variant, Kokoro's
// fixed-shape inference pass, and a runtime-library probe used by the
// doctor command.
package onnx

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"

	"github.com/byteowlz/kokorox/internal/config"
)

// RuntimeInfo describes a located ONNX Runtime shared library.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
}

var ortVersionPattern = regexp.MustCompile(`[0-9]+\.[0-9]+\.[0-9]+`)

// DetectRuntime locates the ONNX Runtime shared library, trying each
// candidate in priority order: the configured path, the KOKOROX_ORT_LIB
// and ORT_LIBRARY_PATH environment variables, then common system
// install locations. The first path that exists wins.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	for _, candidate := range ortCandidates(cfg) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}

		return RuntimeInfo{LibraryPath: candidate, Version: ortVersion(cfg, candidate)}, nil
	}

	return RuntimeInfo{LibraryPath: "not found", Version: "unknown"},
		errors.New("unable to detect ONNX Runtime library path")
}

func ortCandidates(cfg config.RuntimeConfig) []string {
	var out []string

	appendIfSet := func(p string) {
		if p != "" {
			out = append(out, p)
		}
	}

	appendIfSet(cfg.ORTLibraryPath)
	appendIfSet(os.Getenv("KOKOROX_ORT_LIB"))
	appendIfSet(os.Getenv("ORT_LIBRARY_PATH"))

	return append(out,
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"C:/onnxruntime/lib/onnxruntime.dll",
	)
}

// ortVersion resolves the runtime version to report: configuration,
// then the ORT_VERSION environment variable, then a semver-looking
// substring of the library filename (e.g. libonnxruntime.so.1.20.0).
func ortVersion(cfg config.RuntimeConfig, libraryPath string) string {
	if cfg.ORTVersion != "" {
		return cfg.ORTVersion
	}

	if v := os.Getenv("ORT_VERSION"); v != "" {
		return v
	}

	if m := ortVersionPattern.FindString(filepath.Base(libraryPath)); m != "" {
		return m
	}

	return "unknown"
}
