package style

import (
	"bytes"
	"testing"

	"github.com/byteowlz/kokorox/internal/ttserr"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

func testPack(t *testing.T) *voicepack.Pack {
	t.Helper()

	sky := make([]float32, 510*256)
	nicole := make([]float32, 510*256)

	for i := range sky {
		sky[i] = 1.0
		nicole[i] = 2.0
	}

	entries := []voicepack.Entry{
		{Name: "af_sky", Style: sky},
		{Name: "af_nicole", Style: nicole},
	}

	var buf bytes.Buffer
	if err := voicepack.Write(&buf, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	pack, err := voicepack.LoadReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}

	return pack
}

func TestParseSimpleVoice(t *testing.T) {
	e, err := Parse("af_sky")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(e.Terms) != 1 || e.Terms[0].VoiceID != "af_sky" || e.Terms[0].Weight != 1.0 {
		t.Fatalf("unexpected parse result: %+v", e.Terms)
	}
}

func TestParseWeightedMix(t *testing.T) {
	e, err := Parse("af_sky*0.6+af_nicole*0.4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(e.Terms) != 2 {
		t.Fatalf("got %d terms, want 2", len(e.Terms))
	}

	if e.Terms[0].VoiceID != "af_sky" || e.Terms[0].Weight != 0.6 {
		t.Fatalf("term 0 = %+v", e.Terms[0])
	}

	if e.Terms[1].VoiceID != "af_nicole" || e.Terms[1].Weight != 0.4 {
		t.Fatalf("term 1 = %+v", e.Terms[1])
	}
}

func TestParseSubtraction(t *testing.T) {
	e, err := Parse("af_sky-af_nicole*0.3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if e.Terms[1].Weight != -0.3 {
		t.Fatalf("subtracted term weight = %v, want -0.3", e.Terms[1].Weight)
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("   ")
	if !ttserr.Is(err, ttserr.BadInput) {
		t.Fatalf("want BadInput, got %v", err)
	}
}

func TestParseBadSyntax(t *testing.T) {
	cases := []string{"af_sky**0.5", "+", "af_sky*", "af_sky+", "af_sky af_nicole"}

	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("Parse(%q) should have failed", c)
		}
	}
}

// TestResolveNotRenormalized verifies the documented invariant: mix
// weights are applied as-is, not scaled to sum to 1.
func TestResolveNotRenormalized(t *testing.T) {
	pack := testPack(t)

	e, err := Parse("af_sky*0.6+af_nicole*0.4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v, err := e.Resolve(pack)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := float32(0.6*1.0 + 0.4*2.0)
	if v.Style[0] != want {
		t.Fatalf("Style[0] = %v, want %v", v.Style[0], want)
	}

	// Weights summing well above 1 are not clamped.
	e2, err := Parse("af_sky*2+af_nicole*2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v2, err := e2.Resolve(pack)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want2 := float32(2*1.0 + 2*2.0)
	if v2.Style[0] != want2 {
		t.Fatalf("Style[0] = %v, want %v (unrenormalized overscale)", v2.Style[0], want2)
	}
}

// TestResolveIdentityWeight checks the degenerate mix A*1+B*0 equals
// tensor(A) exactly, element for element.
func TestResolveIdentityWeight(t *testing.T) {
	pack := testPack(t)

	e, err := Parse("af_sky*1+af_nicole*0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v, err := e.Resolve(pack)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	sky, _ := pack.Get("af_sky")
	for i := range sky.Style {
		if v.Style[i] != sky.Style[i] {
			t.Fatalf("Style[%d] = %v, want exact tensor(af_sky) value %v", i, v.Style[i], sky.Style[i])
		}
	}
}

func TestResolveUnknownVoice(t *testing.T) {
	pack := testPack(t)

	e, err := Parse("af_ghost")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, err := e.Resolve(pack); !ttserr.Is(err, ttserr.BadInput) {
		t.Fatalf("want BadInput for unknown voice, got %v", err)
	}
}

func TestSingle(t *testing.T) {
	e := Single("af_sky")
	if e.String() != "af_sky" {
		t.Fatalf("String() = %q, want af_sky", e.String())
	}
}
