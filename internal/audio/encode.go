package audio

import (
	"fmt"
	"io"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// EncodeWAV renders float32 PCM samples as a complete in-memory WAV
// file in the engine's fixed output format (24 kHz mono 16-bit PCM).
// Every one-shot surface (CLI text/file/pipe, POST /v1/audio/speech,
// WebSocket audio_chunk) goes through here; the streaming surfaces use
// WriteWAVHeaderStreaming + WritePCM16Samples instead.
func EncodeWAV(samples []float32) ([]byte, error) {
	// wav.NewEncoder wants an io.WriteSeeker so it can backpatch the
	// RIFF/data sizes on Close; encode into a seekable byte slice.
	sink := &memWriteSeeker{}

	enc := wav.NewEncoder(sink, ExpectedSampleRate, ExpectedBitDepth, ExpectedChannels, 1) // 1 = PCM

	buf := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: ExpectedSampleRate, NumChannels: ExpectedChannels},
		SourceBitDepth: ExpectedBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("writing PCM: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	return sink.data, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker over a growable byte
// slice, just enough for the WAV encoder's append-then-backpatch write
// pattern.
type memWriteSeeker struct {
	data []byte
	pos  int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if grow := m.pos + len(p) - len(m.data); grow > 0 {
		m.data = append(m.data, make([]byte, grow)...)
	}

	copy(m.data[m.pos:], p)
	m.pos += len(p)

	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int

	switch whence {
	case io.SeekStart:
		pos = int(offset)
	case io.SeekCurrent:
		pos = m.pos + int(offset)
	case io.SeekEnd:
		pos = len(m.data) + int(offset)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if pos < 0 {
		return 0, fmt.Errorf("seek before start")
	}

	m.pos = pos

	return int64(pos), nil
}
