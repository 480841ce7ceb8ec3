package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/byteowlz/kokorox/internal/audio"
	"github.com/byteowlz/kokorox/internal/stream"
)

const pingInterval = 30 * time.Second

// upgrader uses a permissive local-dev CORS posture; production
// deployments terminate TLS/origin checks in front of this process.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// wsCommand is an inbound WebSocket message.
type wsCommand struct {
	Type string `json:"type"`

	// set_voice / synthesize / stream_start
	Voice string `json:"voice,omitempty"`
	// set_speed / synthesize / stream_start
	Speed float64 `json:"speed,omitempty"`
	// synthesize / stream_append
	Text string `json:"text,omitempty"`
	// stream_append / stream_end / stream_cancel
	StreamID string `json:"stream_id,omitempty"`
}

// wsEvent is the outbound shape for simple events (voices,
// voice_changed, speed_changed, synthesis lifecycle, stream lifecycle,
// error). Chunk-bearing events use wsChunkEvent so index 0 is never
// dropped by omitempty.
type wsEvent struct {
	Type string `json:"type"`

	Voices []string `json:"voices,omitempty"`
	Voice  string   `json:"voice,omitempty"`
	Speed  float64  `json:"speed,omitempty"`

	Chunk      string `json:"chunk,omitempty"`
	Index      int    `json:"index,omitempty"`
	Total      int    `json:"total,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`

	StreamID    string `json:"stream_id,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`

	Message string `json:"error,omitempty"`
}

// wsChunkEvent carries one base64-encoded WAV chunk; index and
// sample_rate are always present on the wire, even when zero.
type wsChunkEvent struct {
	Type       string `json:"type"`
	StreamID   string `json:"stream_id,omitempty"`
	Chunk      string `json:"chunk"`
	Index      int    `json:"index"`
	Total      int    `json:"total,omitempty"`
	SampleRate int    `json:"sample_rate"`
}

// wsStreamEndedEvent reports a normally-drained stream; total_chunks
// zero is meaningful (a stream ended before any sentence completed).
type wsStreamEndedEvent struct {
	Type        string `json:"type"`
	StreamID    string `json:"stream_id"`
	TotalChunks int    `json:"total_chunks"`
}

// wsSession tracks one WebSocket connection's conversational state:
// the currently selected voice/speed (for bare `synthesize` commands)
// and the streaming sessions it has open, so a dropped connection
// cancels them instead of leaking them.
type wsSession struct {
	h       *handler
	conn    *websocket.Conn
	writeMu sync.Mutex

	voice string
	speed float64

	streamMu sync.Mutex
	streams  map[string]bool
}

func (h *handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	defer func() { _ = conn.Close() }()

	s := &wsSession{h: h, conn: conn, voice: "af_heart", speed: 1.0, streams: make(map[string]bool)}
	defer s.cancelOpenStreams()

	s.send(wsEvent{Type: "voices", Voices: h.voices.List()})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(pingDone)

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}

		s.handle(r.Context(), cmd)
	}
}

// cancelOpenStreams aborts every streaming session this connection
// still holds open; called when the socket closes for any reason.
func (s *wsSession) cancelOpenStreams() {
	s.streamMu.Lock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	s.streams = make(map[string]bool)
	s.streamMu.Unlock()

	for _, id := range ids {
		_ = s.h.streams.Cancel(id)
	}
}

func (s *wsSession) trackStream(id string) {
	s.streamMu.Lock()
	s.streams[id] = true
	s.streamMu.Unlock()
}

func (s *wsSession) untrackStream(id string) {
	s.streamMu.Lock()
	delete(s.streams, id)
	s.streamMu.Unlock()
}

// pingLoop keeps intermediary proxies from idling out a long-lived
// streaming connection by writing a control ping on pingInterval until
// the connection is closed.
func (s *wsSession) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()

			if err != nil {
				return
			}
		}
	}
}

func (s *wsSession) send(ev any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(ev); err != nil {
		slog.Debug("websocket write failed", "error", err)
	}
}

func (s *wsSession) sendError(msg string) {
	s.send(wsEvent{Type: "error", Message: msg})
}

func (s *wsSession) handle(ctx context.Context, cmd wsCommand) {
	switch cmd.Type {
	case "list_voices":
		s.send(wsEvent{Type: "voices", Voices: s.h.voices.List()})

	case "set_voice":
		s.voice = cmd.Voice
		s.send(wsEvent{Type: "voice_changed", Voice: s.voice})

	case "set_speed":
		if cmd.Speed <= 0 {
			s.sendError("speed must be positive")
			return
		}

		s.speed = cmd.Speed
		s.send(wsEvent{Type: "speed_changed", Speed: s.speed})

	case "synthesize":
		s.synthesize(ctx, cmd)

	case "stream_start":
		s.streamStart(cmd)

	case "stream_append":
		s.streamAppend(cmd)

	case "stream_end":
		s.streamEnd(cmd)

	case "stream_cancel":
		s.streamCancel(cmd)

	default:
		s.sendError("unknown command type " + cmd.Type)
	}
}

func (s *wsSession) synthesize(ctx context.Context, cmd wsCommand) {
	voiceExpr := cmd.Voice
	if voiceExpr == "" {
		voiceExpr = s.voice
	}

	speed := cmd.Speed
	if speed <= 0 {
		speed = s.speed
	}

	s.send(wsEvent{Type: "synthesis_started"})

	timer := s.h.metrics.StartSynthesis()
	result, err := s.h.engine.Synthesize(ctx, cmd.Text, voiceExpr, speed, s.h.registry.Active())
	timer.ObserveError(err)

	if err != nil {
		s.sendError(err.Error())
		return
	}

	wavBytes, err := audio.EncodeWAV(result.Samples)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	s.send(wsChunkEvent{
		Type:       "audio_chunk",
		Chunk:      base64.StdEncoding.EncodeToString(wavBytes),
		Index:      0,
		Total:      1,
		SampleRate: audio.ExpectedSampleRate,
	})
	s.send(wsEvent{Type: "synthesis_completed"})
}

func (s *wsSession) streamStart(cmd wsCommand) {
	voiceExpr := cmd.Voice
	if voiceExpr == "" {
		voiceExpr = s.voice
	}

	speed := cmd.Speed
	if speed <= 0 {
		speed = s.speed
	}

	voice, langTag, err := resolveVoice(s.h.voices, voiceExpr, "", "", true)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	sess := s.h.streams.Open(stream.OpenOptions{
		Voice:   voice,
		LangTag: langTag,
		Speed:   speed,
		Variant: s.h.registry.Active(),
	})

	s.trackStream(sess.ID())
	s.send(wsEvent{Type: "stream_started", StreamID: sess.ID()})

	go s.pumpStream(sess)
}

// pumpStream relays a streaming session's ordered chunk channel to the
// WebSocket as stream_chunk events, finishing with stream_ended or
// stream_cancelled.
func (s *wsSession) pumpStream(sess *stream.Session) {
	total := 0

	for chunk := range sess.Chunks() {
		wavBytes, err := audio.EncodeWAV(chunk.Samples)
		if err != nil {
			s.sendError(err.Error())
			continue
		}

		total++
		s.h.metrics.IncStreamChunks(1)
		s.send(wsChunkEvent{
			Type:       "stream_chunk",
			StreamID:   sess.ID(),
			Chunk:      base64.StdEncoding.EncodeToString(wavBytes),
			Index:      chunk.Index,
			SampleRate: audio.ExpectedSampleRate,
		})
	}

	s.untrackStream(sess.ID())

	if sess.State() == stream.StateCancelled {
		s.send(wsEvent{Type: "stream_cancelled", StreamID: sess.ID()})
		return
	}

	s.send(wsStreamEndedEvent{Type: "stream_ended", StreamID: sess.ID(), TotalChunks: total})
}

func (s *wsSession) streamAppend(cmd wsCommand) {
	if err := s.h.streams.Append(cmd.StreamID, cmd.Text); err != nil {
		s.sendError(err.Error())
	}
}

func (s *wsSession) streamEnd(cmd wsCommand) {
	if err := s.h.streams.End(cmd.StreamID); err != nil {
		s.sendError(err.Error())
	}
}

func (s *wsSession) streamCancel(cmd wsCommand) {
	if err := s.h.streams.Cancel(cmd.StreamID); err != nil {
		s.sendError(err.Error())
	}
}
