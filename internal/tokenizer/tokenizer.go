// Package tokenizer maps phoneme symbols to the integer vocabulary IDs
// the Kokoro ONNX graph expects.
package tokenizer

// Tokenizer encodes a phoneme symbol sequence into model vocabulary
// IDs.
type Tokenizer interface {
	// Encode maps phonemes to token IDs. Unknown symbols are dropped,
	// not errored — G2P backends drift over time and an unrecognized
	// symbol should degrade gracefully rather than fail the whole
	// request.
	Encode(phonemes []string) ([]int64, error)

	// DroppedCount returns the number of phoneme symbols dropped across
	// every Encode call so far.
	DroppedCount() uint64
}
