package audio

import "math"

// Hook is a post-assembly transform over a whole PCM buffer.
type Hook func(samples []float32) []float32

// ApplyHooks runs hooks over samples in order, feeding each hook the
// previous one's output.
func ApplyHooks(samples []float32, hooks ...Hook) []float32 {
	out := samples
	for _, hook := range hooks {
		out = hook(out)
	}

	return out
}

// PeakNormalize scales samples so the peak absolute amplitude reaches
// 1.0. Silent input (all-zero) is returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	peak := float32(0)

	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}

		if a > peak {
			peak = a
		}
	}

	if peak == 0 {
		return samples
	}

	out := make([]float32, len(samples))
	scale := 1.0 / peak

	for i, s := range samples {
		out[i] = s * scale
	}

	return out
}

// DCBlock removes DC offset with a one-pole high-pass filter:
// y[n] = x[n] - x[n-1] + r*y[n-1], r tuned near 1 for a ~20Hz corner
// at 24kHz, the cutoff low enough to leave speech content untouched.
func DCBlock(samples []float32, sampleRate int) []float32 {
	if len(samples) == 0 {
		return samples
	}

	r := float32(1.0 - (2*math.Pi*20.0)/float64(sampleRate))

	out := make([]float32, len(samples))
	var prevX, prevY float32

	for i, x := range samples {
		y := x - prevX + r*prevY
		out[i] = y
		prevX = x
		prevY = y
	}

	return out
}

// FadeIn applies a linear fade-in ramp over the given duration.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	n := fadeSampleCount(sampleRate, ms, len(samples))
	if n == 0 {
		return samples
	}

	out := append([]float32(nil), samples...)

	for i := 0; i < n; i++ {
		gain := float32(i) / float32(n)
		out[i] *= gain
	}

	return out
}

// FadeOut applies a linear fade-out ramp over the given duration.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	n := fadeSampleCount(sampleRate, ms, len(samples))
	if n == 0 {
		return samples
	}

	out := append([]float32(nil), samples...)

	start := len(out) - n
	for i := 0; i < n; i++ {
		gain := 1.0 - float32(i)/float32(n)
		out[start+i] *= gain
	}

	return out
}

func fadeSampleCount(sampleRate int, ms float64, total int) int {
	n := int(float64(sampleRate) * ms / 1000.0)
	if n > total {
		n = total
	}

	if n < 0 {
		n = 0
	}

	return n
}
