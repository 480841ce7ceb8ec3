package tokenizer

import "testing"

func TestEncodeBasic(t *testing.T) {
	tok := NewVocabTokenizer(map[string]int64{"_": 0, "h": 1, "ə": 2, "l": 3, "oʊ": 4})

	ids, err := tok.Encode([]string{"_", "h", "ə", "l", "oʊ", "_"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []int64{0, 1, 2, 3, 4, 0}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d", len(ids), len(want))
	}

	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestEncodeDropsUnknownSymbols(t *testing.T) {
	tok := NewVocabTokenizer(map[string]int64{"_": 0, "a": 1})

	ids, err := tok.Encode([]string{"_", "a", "ʁ", "a", "_"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(ids) != 4 {
		t.Fatalf("got %d ids, want 4 (ʁ dropped)", len(ids))
	}

	if tok.DroppedCount() != 1 {
		t.Fatalf("DroppedCount() = %d, want 1", tok.DroppedCount())
	}
}

func TestBoundaryMarkerAlwaysPresent(t *testing.T) {
	tok := NewVocabTokenizer(map[string]int64{"a": 5})

	ids, err := tok.Encode([]string{"_"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(ids) != 1 || ids[0] != boundaryID {
		t.Fatalf("boundary marker not mapped to reserved id: %v", ids)
	}
}

func TestDefaultVocabIsDeterministic(t *testing.T) {
	a := buildDefaultVocab()
	b := buildDefaultVocab()

	if len(a) != len(b) {
		t.Fatalf("vocab size differs between builds: %d vs %d", len(a), len(b))
	}

	for k, v := range a {
		if b[k] != v {
			t.Fatalf("id for %q differs between builds: %d vs %d", k, v, b[k])
		}
	}
}

func TestDefaultVocabReservesBoundaryID(t *testing.T) {
	if DefaultVocab["_"] != boundaryID {
		t.Fatalf("boundary marker id = %d, want %d", DefaultVocab["_"], boundaryID)
	}
}
