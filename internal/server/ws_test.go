package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	h, _ := testHandler(t)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return srv, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}

	return ev
}

func TestWebSocketSendsVoicesOnConnect(t *testing.T) {
	_, conn := newWSTestServer(t)

	ev := readEvent(t, conn)
	if ev.Type != "voices" {
		t.Fatalf("want voices event first, got %q", ev.Type)
	}

	if len(ev.Voices) != 1 || ev.Voices[0] != "af_heart" {
		t.Fatalf("unexpected voices: %v", ev.Voices)
	}
}

func TestWebSocketSetVoiceAndSpeed(t *testing.T) {
	_, conn := newWSTestServer(t)
	readEvent(t, conn) // initial voices event

	if err := conn.WriteJSON(wsCommand{Type: "set_voice", Voice: "af_heart"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != "voice_changed" || ev.Voice != "af_heart" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if err := conn.WriteJSON(wsCommand{Type: "set_speed", Speed: 1.5}); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev = readEvent(t, conn)
	if ev.Type != "speed_changed" || ev.Speed != 1.5 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWebSocketSetSpeedRejectsNonPositive(t *testing.T) {
	_, conn := newWSTestServer(t)
	readEvent(t, conn)

	if err := conn.WriteJSON(wsCommand{Type: "set_speed", Speed: 0}); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("want error event, got %q", ev.Type)
	}
}

func TestWebSocketSynthesizeProducesAudioChunk(t *testing.T) {
	_, conn := newWSTestServer(t)
	readEvent(t, conn)

	if err := conn.WriteJSON(wsCommand{Type: "synthesize", Voice: "af_heart", Text: "hello there."}); err != nil {
		t.Fatalf("write: %v", err)
	}

	started := readEvent(t, conn)
	if started.Type != "synthesis_started" {
		t.Fatalf("want synthesis_started, got %q", started.Type)
	}

	chunk := readEvent(t, conn)
	if chunk.Type != "audio_chunk" || chunk.Chunk == "" {
		t.Fatalf("want non-empty audio_chunk, got %+v", chunk)
	}

	done := readEvent(t, conn)
	if done.Type != "synthesis_completed" {
		t.Fatalf("want synthesis_completed, got %q", done.Type)
	}
}

func TestWebSocketStreamLifecycle(t *testing.T) {
	_, conn := newWSTestServer(t)
	readEvent(t, conn)

	if err := conn.WriteJSON(wsCommand{Type: "stream_start", Voice: "af_heart"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	started := readEvent(t, conn)
	if started.Type != "stream_started" || started.StreamID == "" {
		t.Fatalf("want stream_started with id, got %+v", started)
	}

	if err := conn.WriteJSON(wsCommand{Type: "stream_append", StreamID: started.StreamID, Text: "hello there. "}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := conn.WriteJSON(wsCommand{Type: "stream_end", StreamID: started.StreamID}); err != nil {
		t.Fatalf("write: %v", err)
	}

	sawChunk := false

	for {
		ev := readEvent(t, conn)
		if ev.StreamID != started.StreamID {
			continue
		}

		switch ev.Type {
		case "stream_chunk":
			sawChunk = true
		case "stream_ended":
			if !sawChunk {
				t.Fatal("stream_ended without any stream_chunk")
			}

			return
		case "stream_cancelled":
			t.Fatal("unexpected stream_cancelled")
		}
	}
}

func TestWebSocketUnknownCommandReturnsError(t *testing.T) {
	_, conn := newWSTestServer(t)
	readEvent(t, conn)

	if err := conn.WriteJSON(wsCommand{Type: "not_a_real_command"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("want error event, got %q", ev.Type)
	}
}
