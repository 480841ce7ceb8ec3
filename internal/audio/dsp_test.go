package audio

import "testing"

func TestPeakNormalize(t *testing.T) {
	out := PeakNormalize([]float32{0.5, -2.0, 1.0})
	if out[1] != -1.0 {
		t.Fatalf("out[1] = %v, want -1.0 (peak normalized)", out[1])
	}
}

func TestPeakNormalizeSilence(t *testing.T) {
	silent := []float32{0, 0, 0}

	out := PeakNormalize(silent)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
	}
}

func TestFadeInRampsFromZero(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 1.0
	}

	out := FadeIn(samples, 1000, 50) // 50 samples @ 1000Hz

	if out[0] != 0 {
		t.Fatalf("out[0] = %v, want 0 at fade start", out[0])
	}

	if out[99] != 1.0 {
		t.Fatalf("out[99] = %v, want 1.0 (outside fade region)", out[99])
	}
}

func TestFadeOutRampsToZero(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 1.0
	}

	out := FadeOut(samples, 1000, 50)

	if out[0] != 1.0 {
		t.Fatalf("out[0] = %v, want 1.0 (outside fade region)", out[0])
	}

	last := out[len(out)-1]
	if last >= 1.0 {
		t.Fatalf("out[last] = %v, want < 1.0 (faded toward zero)", last)
	}
}

func TestDCBlockPreservesLength(t *testing.T) {
	samples := []float32{1, -1, 1, -1, 1}

	out := DCBlock(samples, 24000)
	if len(out) != len(samples) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(samples))
	}
}
