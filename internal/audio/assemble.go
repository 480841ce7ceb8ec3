package audio

// Assemble concatenates ordered PCM segments with an optional
// crossfade of overlap samples between consecutive segments, and
// prepends initialSilenceMs of zero samples.
//
// Guarantee: len(result) == Σ len(segments) + prependedSilence -
// overlap*(len(segments)-1), for overlap <= min(adjacent segment
// lengths); a segment shorter than overlap clamps the crossfade region
// to its own length rather than reading out of bounds.
func Assemble(segments [][]float32, sampleRate int, overlap int, initialSilenceMs float64) []float32 {
	silenceSamples := int(float64(sampleRate) * initialSilenceMs / 1000.0)
	if silenceSamples < 0 {
		silenceSamples = 0
	}

	total := silenceSamples
	for _, s := range segments {
		total += len(s)
	}

	if overlap > 0 && len(segments) > 1 {
		for i := 1; i < len(segments); i++ {
			total -= effectiveOverlap(segments[i-1], segments[i], overlap)
		}
	}

	if total < 0 {
		total = 0
	}

	out := make([]float32, 0, total)

	for i := 0; i < silenceSamples; i++ {
		out = append(out, 0)
	}

	for i, seg := range segments {
		if i == 0 || overlap <= 0 {
			out = append(out, seg...)

			continue
		}

		ov := effectiveOverlap(segments[i-1], seg, overlap)
		if ov == 0 {
			out = append(out, seg...)

			continue
		}

		// Crossfade the last ov samples already written against the
		// first ov samples of seg, then append the remainder.
		fadeStart := len(out) - ov

		for j := 0; j < ov; j++ {
			t := float32(j+1) / float32(ov+1)
			out[fadeStart+j] = out[fadeStart+j]*(1-t) + seg[j]*t
		}

		out = append(out, seg[ov:]...)
	}

	return out
}

func effectiveOverlap(prev, next []float32, overlap int) int {
	ov := overlap
	if len(prev) < ov {
		ov = len(prev)
	}

	if len(next) < ov {
		ov = len(next)
	}

	return ov
}
