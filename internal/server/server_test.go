package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/byteowlz/kokorox/internal/onnx"
	"github.com/byteowlz/kokorox/internal/phonemize"
	"github.com/byteowlz/kokorox/internal/registry"
	"github.com/byteowlz/kokorox/internal/testutil"
	"github.com/byteowlz/kokorox/internal/tokenizer"
	"github.com/byteowlz/kokorox/internal/tts"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

type stubBackend struct {
	phonemes []string
}

func (s stubBackend) Phonemize(_ context.Context, _ string) ([]string, error) {
	return s.phonemes, nil
}

type fakeRunner struct{}

func (fakeRunner) Name() string { return "standard" }
func (fakeRunner) Close()       {}

func (fakeRunner) Infer(_ context.Context, _ []int64, _ []float32, _ float32) ([]float32, error) {
	out := make([]float32, 240)
	for i := range out {
		out[i] = 0.5
	}

	return out, nil
}

func testPack(t *testing.T) *voicepack.Pack {
	t.Helper()

	var buf bytes.Buffer
	style := make([]float32, 510*256)
	for i := range style {
		style[i] = 0.01
	}

	if err := voicepack.Write(&buf, []voicepack.Entry{{Name: "af_heart", Style: style}}); err != nil {
		t.Fatalf("voicepack.Write: %v", err)
	}

	pack, err := voicepack.LoadReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("voicepack.LoadReader: %v", err)
	}

	return pack
}

func testHandler(t *testing.T) (http.Handler, *voicepack.Pack) {
	t.Helper()

	pack := testPack(t)

	dispatch := phonemize.NewDispatch(map[string]phonemize.Backend{
		"en-us": stubBackend{phonemes: []string{"h", "ə", "l", "oʊ"}},
	})

	tok := tokenizer.NewDefaultVocabTokenizer()

	onnxEngine := onnx.NewEngineWithRunner("standard", fakeRunner{})

	reg, err := registry.New(map[registry.Variant]*onnx.Engine{
		registry.VariantStandard: onnxEngine,
	})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	eng := tts.NewEngine(pack, dispatch, tok, reg, tts.Options{})

	return NewHandler(eng, pack, reg, Options{}), pack
}

func TestHealthReturns200(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestVoicesListsKnownIDs(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/audio/voices", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var body struct {
		Voices []string `json:"voices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(body.Voices) != 1 || body.Voices[0] != "af_heart" {
		t.Fatalf("unexpected voices: %v", body.Voices)
	}
}

func TestVoicesDetailedIncludesLanguageAndGender(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/audio/voices/detailed", nil)
	h.ServeHTTP(rec, req)

	var details []voiceDetail
	if err := json.NewDecoder(rec.Body).Decode(&details); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(details) != 1 || details[0].ID != "af_heart" {
		t.Fatalf("unexpected detail list: %+v", details)
	}
}

func TestSpeechMissingBodyReturns400(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestSpeechEmptyInputReturns400(t *testing.T) {
	h, _ := testHandler(t)

	body := bytes.NewBufferString(`{"input":"","voice":"af_heart"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", body)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestSpeechReturnsWAVOnSuccess(t *testing.T) {
	h, _ := testHandler(t)

	body := bytes.NewBufferString(`{"input":"hello there.","voice":"af_heart"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", body)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q; want audio/wav", ct)
	}

	testutil.AssertValidWAV(t, rec.Body.Bytes())
}

func TestSpeechUnknownVoiceReturns4xx(t *testing.T) {
	h, _ := testHandler(t)

	body := bytes.NewBufferString(`{"input":"hello there.","voice":"af_nonexistent"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", body)
	h.ServeHTTP(rec, req)

	if rec.Code < 400 || rec.Code >= 500 {
		t.Fatalf("want 4xx for unknown voice, got %d", rec.Code)
	}
}

func TestSpeechTextTooLargeReturns413(t *testing.T) {
	pack := testPack(t)

	dispatch := phonemize.NewDispatch(map[string]phonemize.Backend{
		"en-us": stubBackend{phonemes: []string{"h"}},
	})
	tok := tokenizer.NewDefaultVocabTokenizer()
	onnxEngine := onnx.NewEngineWithRunner("standard", fakeRunner{})

	reg, err := registry.New(map[registry.Variant]*onnx.Engine{registry.VariantStandard: onnxEngine})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	eng := tts.NewEngine(pack, dispatch, tok, reg, tts.Options{})
	h := NewHandler(eng, pack, reg, Options{MaxTextBytes: 4})

	body := bytes.NewBufferString(`{"input":"this text is way too long","voice":"af_heart"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", body)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if rec.Body.Len() == 0 {
		t.Error("expected non-empty metrics body")
	}
}
