package tokenizer

import "sync/atomic"

// boundaryID is the reserved vocabulary id for the phonemizer's
// sentence-boundary marker, always present regardless of which
// phonemizer backend produced the symbol stream.
const boundaryID int64 = 0

// VocabTokenizer encodes phoneme symbols using a static symbol→id
// table bundled with the model checkpoint.
type VocabTokenizer struct {
	ids     map[string]int64
	dropped atomic.Uint64
}

// NewVocabTokenizer builds a tokenizer from a symbol→id table. The
// caller is expected to reserve id 0 for the boundary marker;
// NewVocabTokenizer adds it automatically if the given table omits it.
func NewVocabTokenizer(table map[string]int64) *VocabTokenizer {
	ids := make(map[string]int64, len(table)+1)
	for k, v := range table {
		ids[k] = v
	}

	if _, ok := ids["_"]; !ok {
		ids["_"] = boundaryID
	}

	return &VocabTokenizer{ids: ids}
}

// NewDefaultVocabTokenizer builds a tokenizer from the bundled default
// phoneme vocabulary (DefaultVocab).
func NewDefaultVocabTokenizer() *VocabTokenizer {
	return NewVocabTokenizer(DefaultVocab)
}

func (v *VocabTokenizer) Encode(phonemes []string) ([]int64, error) {
	ids := make([]int64, 0, len(phonemes))

	for _, p := range phonemes {
		id, ok := v.ids[p]
		if !ok {
			v.dropped.Add(1)

			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (v *VocabTokenizer) DroppedCount() uint64 {
	return v.dropped.Load()
}
