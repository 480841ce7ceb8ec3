// Package doctor provides environment preflight checks for kokorox:
// the espeak-ng binary, the ONNX Runtime shared library, and the
// configured voice-pack file — the three external collaborators the
// engine depends on but does not itself manage.
package doctor

import (
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check, so tests
// can substitute fakes without touching the real filesystem/PATH.
type Config struct {
	// EspeakVersion returns the output of `espeak-ng --version`.
	EspeakVersion VersionFunc
	// SkipEspeak skips the espeak-ng check (e.g. only zh/ja voices configured).
	SkipEspeak bool
	// ONNXRuntimeVersion returns the loaded ONNX Runtime's version string.
	ONNXRuntimeVersion VersionFunc
	// VoicePackPath is the configured KVP1 voice-pack file to verify exists
	// and parses. Empty skips the check.
	VoicePackPath string
	// VoicePackLoad loads and validates the pack at VoicePackPath,
	// returning the number of voices it contains.
	VoicePackLoad func(path string) (int, error)
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	if cfg.SkipEspeak {
		fmt.Fprintf(w, "%s espeak-ng: skipped\n", PassMark)
	} else if cfg.EspeakVersion == nil {
		res.fail("espeak-ng: no version probe configured")
		fmt.Fprintf(w, "%s espeak-ng: no version probe configured\n", FailMark)
	} else {
		ver, err := cfg.EspeakVersion()
		if err != nil {
			res.fail(fmt.Sprintf("espeak-ng: %v", err))
			fmt.Fprintf(w, "%s espeak-ng: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s espeak-ng: %s\n", PassMark, ver)
		}
	}

	if cfg.ONNXRuntimeVersion == nil {
		res.fail("onnxruntime: no version probe configured")
		fmt.Fprintf(w, "%s onnxruntime: no version probe configured\n", FailMark)
	} else {
		ver, err := cfg.ONNXRuntimeVersion()
		if err != nil {
			res.fail(fmt.Sprintf("onnxruntime: %v", err))
			fmt.Fprintf(w, "%s onnxruntime: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s onnxruntime: %s\n", PassMark, ver)
		}
	}

	if cfg.VoicePackPath != "" {
		if _, err := os.Stat(cfg.VoicePackPath); err != nil {
			res.fail(fmt.Sprintf("voice pack %q: %v", cfg.VoicePackPath, err))
			fmt.Fprintf(w, "%s voice pack: %s not found\n", FailMark, cfg.VoicePackPath)
		} else if cfg.VoicePackLoad != nil {
			n, err := cfg.VoicePackLoad(cfg.VoicePackPath)
			if err != nil {
				res.fail(fmt.Sprintf("voice pack %q: %v", cfg.VoicePackPath, err))
				fmt.Fprintf(w, "%s voice pack: %s failed to load (%v)\n", FailMark, cfg.VoicePackPath, err)
			} else {
				fmt.Fprintf(w, "%s voice pack: %s (%d voices)\n", PassMark, cfg.VoicePackPath, n)
			}
		} else {
			fmt.Fprintf(w, "%s voice pack: %s\n", PassMark, cfg.VoicePackPath)
		}
	}

	return res
}
