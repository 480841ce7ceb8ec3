package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// VariantSpec names one interchangeable Kokoro model file: the standard
// checkpoint or a quantized one. Path is resolved relative to the
// manifest file at load time.
type VariantSpec struct {
	Name string
	Path string
}

// Manifest describes the model files the engine may load. The JSON on
// disk looks like:
//
//	{
//	  "model": "kokoro-82m",
//	  "variants": [
//	    {"name": "standard", "filename": "kokoro-v1.0.onnx"},
//	    {"name": "quantized", "filename": "kokoro-v1.0.int8.onnx"}
//	  ]
//	}
type Manifest struct {
	Model    string
	Variants []VariantSpec
}

type manifestJSON struct {
	Model    string `json:"model"`
	Variants []struct {
		Name     string `json:"name"`
		Filename string `json:"filename"`
	} `json:"variants"`
}

// LoadManifest reads and validates a model manifest, resolving each
// variant's filename against the manifest's own directory and verifying
// the files exist. A "standard" variant is mandatory; others are
// optional.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model manifest: %w", err)
	}

	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode model manifest: %w", err)
	}

	if len(raw.Variants) == 0 {
		return nil, errors.New("model manifest lists no variants")
	}

	baseDir := filepath.Dir(path)
	m := &Manifest{Model: raw.Model, Variants: make([]VariantSpec, 0, len(raw.Variants))}
	seen := make(map[string]bool, len(raw.Variants))

	for _, v := range raw.Variants {
		if v.Name == "" {
			return nil, errors.New("manifest variant has empty name")
		}

		if v.Filename == "" {
			return nil, fmt.Errorf("manifest variant %q has empty filename", v.Name)
		}

		if seen[v.Name] {
			return nil, fmt.Errorf("duplicate variant %q in manifest", v.Name)
		}
		seen[v.Name] = true

		modelPath := v.Filename
		if !filepath.IsAbs(modelPath) {
			modelPath = filepath.Join(baseDir, v.Filename)
		}

		modelPath = filepath.Clean(modelPath)
		if _, err := os.Stat(modelPath); err != nil {
			return nil, fmt.Errorf("model file for variant %q: %w", v.Name, err)
		}

		m.Variants = append(m.Variants, VariantSpec{Name: v.Name, Path: modelPath})

		slog.Info("found model variant", "model", raw.Model, "variant", v.Name, "path", modelPath)
	}

	if !seen["standard"] {
		return nil, errors.New("model manifest must include a \"standard\" variant")
	}

	return m, nil
}

// Variant returns the named variant's spec, if the manifest lists it.
func (m *Manifest) Variant(name string) (VariantSpec, bool) {
	for _, v := range m.Variants {
		if v.Name == name {
			return v, true
		}
	}

	return VariantSpec{}, false
}
