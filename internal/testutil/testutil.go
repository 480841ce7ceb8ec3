// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireEspeak(t)
//	    testutil.RequireVoicePack(t, "voices.kvp")
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"testing"

	"github.com/byteowlz/kokorox/internal/voicepack"
)

// RequireEspeak skips the test if the espeak-ng binary is not found in
// PATH or the path given by the KOKOROX_ESPEAK_PATH environment variable.
func RequireEspeak(t *testing.T) {
	t.Helper()

	exe := os.Getenv("KOKOROX_ESPEAK_PATH")
	if exe == "" {
		exe = "espeak-ng"
	}

	if _, err := exec.LookPath(exe); err != nil {
		t.Skipf("espeak-ng binary not available (%q not in PATH); set KOKOROX_ESPEAK_PATH to override", exe)
	}
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the ORT_LIBRARY_PATH env var, then the
// KOKOROX_ORT_LIB env var, then common system library paths.
func RequireONNXRuntime(t *testing.T) {
	t.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "KOKOROX_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return // found
			}

			t.Skipf("ONNX Runtime library not found at %s=%q", env, p)
		}
	}
	// Fall back to common system locations.
	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return // found
		}
	}

	t.Skip("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or KOKOROX_ORT_LIB")
}

// RequireVoicePack skips the test if path does not load as a valid KVP1
// voice pack.
func RequireVoicePack(t *testing.T, path string) *voicepack.Pack {
	t.Helper()

	pack, err := voicepack.Load(path)
	if err != nil {
		t.Skipf("voice pack not available at %q: %v", path, err)
	}

	return pack
}
