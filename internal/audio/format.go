package audio

// Kokoro's acoustic model emits 24kHz mono 16-bit PCM; every encoder in
// this package targets exactly this format.
const (
	ExpectedSampleRate = 24000
	ExpectedChannels   = 1
	ExpectedBitDepth   = 16
)
