package testutil

import (
	"encoding/binary"
	"errors"
	"testing"
)

// wavHeader is the subset of a PCM WAV file's fmt chunk the assertions
// below care about, plus the located data-chunk size.
type wavHeader struct {
	audioFormat uint16
	channels    uint16
	sampleRate  uint32
	bitDepth    uint16
	dataSize    uint32
}

// AssertValidWAV checks that data is a valid PCM WAV file in the
// engine's output format: RIFF container, 24000 Hz, mono, 16-bit, with
// at least one sample in the data chunk.
func AssertValidWAV(tb testing.TB, data []byte) {
	tb.Helper()

	hdr, err := parseWAVHeader(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if hdr.audioFormat != 1 {
		tb.Fatalf("WAV: expected PCM format (1), got %d", hdr.audioFormat)
	}

	if hdr.channels != 1 {
		tb.Fatalf("WAV: expected mono (1 channel), got %d", hdr.channels)
	}

	if hdr.sampleRate != 24000 {
		tb.Fatalf("WAV: expected sample rate 24000, got %d", hdr.sampleRate)
	}

	if hdr.bitDepth != 16 {
		tb.Fatalf("WAV: expected 16-bit depth, got %d", hdr.bitDepth)
	}

	if hdr.dataSize/2 == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}
}

// AssertWAVDurationApprox asserts that the audio duration falls within
// [minSec, maxSec], reading the sample count from the data chunk at the
// engine's fixed 24000 Hz rate.
func AssertWAVDurationApprox(tb testing.TB, data []byte, minSec, maxSec float64) {
	tb.Helper()

	hdr, err := parseWAVHeader(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	const sampleRate = 24000

	durationSec := float64(hdr.dataSize/2) / float64(sampleRate)
	if durationSec < minSec || durationSec > maxSec {
		tb.Fatalf("WAV duration %.3fs out of expected range [%.3fs, %.3fs]", durationSec, minSec, maxSec)
	}
}

func parseWAVHeader(data []byte) (wavHeader, error) {
	if len(data) < 44 {
		return wavHeader{}, errors.New("file too short for a WAV header")
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return wavHeader{}, errors.New("missing RIFF/WAVE markers")
	}

	if string(data[12:16]) != "fmt " {
		return wavHeader{}, errors.New("missing fmt chunk")
	}

	hdr := wavHeader{
		audioFormat: binary.LittleEndian.Uint16(data[20:22]),
		channels:    binary.LittleEndian.Uint16(data[22:24]),
		sampleRate:  binary.LittleEndian.Uint32(data[24:28]),
		bitDepth:    binary.LittleEndian.Uint16(data[34:36]),
	}

	// Walk the chunk list for the data sub-chunk; encoders may insert
	// LIST/fact chunks between fmt and data.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])

		if id == "data" {
			hdr.dataSize = size
			return hdr, nil
		}

		offset += 8 + int(size)
		if size%2 != 0 {
			offset++ // chunks are word-aligned
		}
	}

	return wavHeader{}, errors.New("data chunk not found")
}
