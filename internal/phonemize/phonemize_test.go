package phonemize

import (
	"context"
	"testing"

	"github.com/byteowlz/kokorox/internal/ttserr"
)

type stubBackend struct {
	phonemes []string
	err      error
}

func (s stubBackend) Phonemize(_ context.Context, _ string) ([]string, error) {
	return s.phonemes, s.err
}

func TestDispatchAddsBoundaryMarkers(t *testing.T) {
	d := NewDispatch(map[string]Backend{
		"en-us": stubBackend{phonemes: []string{"h", "ə", "l", "oʊ"}},
	})

	out, err := d.Phonemize(context.Background(), "en-us", "hello")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}

	if out[0] != BoundaryMarker || out[len(out)-1] != BoundaryMarker {
		t.Fatalf("expected boundary markers at both ends, got %v", out)
	}

	if len(out) != 6 {
		t.Fatalf("got %d symbols, want 6 (4 phonemes + 2 markers)", len(out))
	}
}

func TestDispatchUnknownLanguage(t *testing.T) {
	d := NewDispatch(map[string]Backend{})

	_, err := d.Phonemize(context.Background(), "xx", "text")
	if !ttserr.Is(err, ttserr.PhonemizerUnavailable) {
		t.Fatalf("want PhonemizerUnavailable, got %v", err)
	}
}

func TestHasBackend(t *testing.T) {
	d := NewDispatch(map[string]Backend{"zh": stubBackend{}})

	if !d.HasBackend("zh") {
		t.Fatal("expected zh backend to be registered")
	}

	if d.HasBackend("ja") {
		t.Fatal("ja should not be registered")
	}
}

func TestZhBackendBasic(t *testing.T) {
	b := NewZhBackend()

	out, err := b.Phonemize(context.Background(), "你好")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}

	if len(out) == 0 {
		t.Fatal("expected non-empty phoneme output for 你好")
	}
}

func TestZhToneSandhi(t *testing.T) {
	// 你好 (ni3 hao3) should sandhi to ni2 hao3.
	syllables := applyToneSandhi([]string{"ni3", "hao3"})
	if syllables[0] != "ni2" {
		t.Fatalf("applyToneSandhi([ni3 hao3])[0] = %q, want ni2", syllables[0])
	}
}

func TestRewriteChineseNumerals(t *testing.T) {
	got := rewriteChineseNumerals("3")
	if got != "三" {
		t.Fatalf("rewriteChineseNumerals(3) = %q, want 三", got)
	}
}

func TestKanaToIPABasicMora(t *testing.T) {
	out := kanaToIPA("コンニチハ")
	if len(out) == 0 {
		t.Fatal("expected non-empty IPA output")
	}
}

func TestKanaToIPAPalatalized(t *testing.T) {
	out := kanaToIPA("キャ")
	if len(out) != 3 {
		t.Fatalf("kanaToIPA(キャ) = %v, want 3 symbols (k, j, a)", out)
	}
}
