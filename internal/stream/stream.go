// Package stream implements the streaming session manager: low-latency
// incremental synthesis where text arrives fragment-by-fragment,
// sentences are detected as the buffer grows, synthesis of completed
// sentences overlaps with further input, and PCM chunks are delivered
// to the caller in strict submission order.
package stream

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/byteowlz/kokorox/internal/registry"
	"github.com/byteowlz/kokorox/internal/text"
	"github.com/byteowlz/kokorox/internal/ttserr"
	"github.com/byteowlz/kokorox/internal/voicepack"
)

// State is a StreamSession's lifecycle state.
type State int

const (
	StateOpen State = iota
	StateFlushing
	StateCancelled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFlushing:
		return "flushing"
	case StateCancelled:
		return "cancelled"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// defaultInFlight and defaultMinChunkChars mirror
// internal/config.SynthesisConfig's stream_in_flight and
// min_chunk_chars defaults.
const (
	defaultInFlight      = 4
	defaultMinChunkChars = 8
)

// Chunk is one ordered unit of synthesized audio delivered to a
// streaming caller.
type Chunk struct {
	Index   int
	Samples []float32
	// Final marks the last chunk of a session that ended normally. It is
	// set at emission time, once End has fixed the session's chunk count;
	// a cancelled session never emits a Final chunk.
	Final bool
}

// Synthesizer is the subset of *tts.Engine the session manager depends
// on: phonemize→tokenize→infer for one already-segmented unit of text
// against a pre-resolved voice and language tag.
type Synthesizer interface {
	SynthesizeChunk(ctx context.Context, variant registry.Variant, chunk, langTag string, voice voicepack.Voice, speed float64) ([]float32, error)
}

// Options configures a Manager's streaming defaults. Per-session values
// may override InFlight and MinChunkChars at Open time via OpenOptions.
type Options struct {
	InFlight      int
	MinChunkChars int
}

func (o Options) withDefaults() Options {
	if o.InFlight <= 0 {
		o.InFlight = defaultInFlight
	}

	if o.MinChunkChars <= 0 {
		o.MinChunkChars = defaultMinChunkChars
	}

	return o
}

// OpenOptions configures a single streaming session.
type OpenOptions struct {
	Voice   voicepack.Voice
	LangTag string
	Speed   float64
	Variant registry.Variant
	// InFlight and MinChunkChars override the Manager's Options for this
	// session only; zero means "use the Manager's default".
	InFlight      int
	MinChunkChars int
}

// Manager owns every open StreamSession. Each session is mutated only
// under its own lock; the Manager's own lock only guards the
// session-id map, under a fixed lock order (never take the Manager
// lock while holding a session lock).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	synth    Synthesizer
	opts     Options
}

// NewManager builds a streaming session manager over synth.
func NewManager(synth Synthesizer, opts Options) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		synth:    synth,
		opts:     opts.withDefaults(),
	}
}

// Open allocates a new streaming session and returns it. The caller
// reads ordered chunks from Session.Chunks() until it closes (End) or
// is cancelled (Cancel).
func (m *Manager) Open(opts OpenOptions) *Session {
	merged := m.opts
	if opts.InFlight > 0 {
		merged.InFlight = opts.InFlight
	}

	if opts.MinChunkChars > 0 {
		merged.MinChunkChars = opts.MinChunkChars
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       uuid.NewString(),
		voice:    opts.Voice,
		langTag:  opts.LangTag,
		speed:    opts.Speed,
		variant:  opts.Variant,
		state:    StateOpen,
		pending:  make(map[int]Chunk),
		out:      make(chan Chunk),
		sem:      semaphore.NewWeighted(int64(merged.InFlight)),
		synth:    m.synth,
		minChars: merged.MinChunkChars,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.cond = sync.NewCond(&s.mu)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	go s.pump()

	return s
}

// Get returns the session for id, or SessionNotFound if it doesn't
// exist (or has already been closed/cancelled and removed).
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return nil, ttserr.Newf(ttserr.SessionNotFound, "stream.Manager.Get", "unknown stream session %q", id)
	}

	return s, nil
}

// Append buffers fragment and schedules synthesis for every sentence
// the fragment completes. It blocks (applying backpressure) while the
// session's in-flight worker pool is full.
func (m *Manager) Append(id, fragment string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	return s.append(fragment)
}

// End treats the session's remaining buffer as a final sentence (if
// non-empty), waits for every in-flight sentence to finish, then
// transitions the session to Closed; its Chunks() channel closes once
// the delivery stage has drained. The session is removed from the
// Manager immediately.
func (m *Manager) End(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	s.end()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	return nil
}

// Cancel transitions a session to Cancelled, signals its in-flight
// workers, and discards every chunk not yet emitted. Subsequent calls
// to Append/End/Cancel on id fail with SessionNotFound.
func (m *Manager) Cancel(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	s.cancelSession()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	return nil
}

// Session is one streaming conversation: pending text buffer, ordered
// queue of completed-but-not-yet-emitted chunks, and the worker
// bookkeeping that enforces the contiguous-index invariant.
type Session struct {
	id string

	mu      sync.Mutex
	cond    *sync.Cond // signals the pump when ready grows or state changes
	buf     strings.Builder
	state   State
	nextIdx int // next index to assign to a scheduled sentence
	emitIdx int // next index the caller is owed
	pending map[int]Chunk
	ready   []Chunk // contiguous run awaiting emission, in index order

	voice    voicepack.Voice
	langTag  string
	speed    float64
	variant  registry.Variant
	minChars int

	out chan Chunk
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	synth  Synthesizer
	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Chunks returns the channel the caller reads ordered audio chunks
// from. It is closed once the session has drained (End) or is
// cancelled (Cancel).
func (s *Session) Chunks() <-chan Chunk { return s.out }

func (s *Session) append(fragment string) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ttserr.Newf(ttserr.SessionNotFound, "stream.Session.append", "session %q is not open (state=%s)", s.id, s.state)
	}

	s.buf.WriteString(fragment)
	sentences := drainCompleteSentences(&s.buf, s.minChars)
	s.mu.Unlock()

	for _, sent := range sentences {
		if err := s.schedule(sent); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		s.wg.Wait()

		return
	}

	remainder := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	s.state = StateFlushing
	s.mu.Unlock()

	if remainder != "" {
		// A scheduling error here (context cancellation mid-flush) is not
		// fatal to End: the session still drains whatever was already
		// in flight.
		_ = s.schedule(remainder)
	}

	s.wg.Wait()

	s.mu.Lock()
	if s.state == StateFlushing {
		s.state = StateClosed
	}
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *Session) cancelSession() {
	s.mu.Lock()
	if s.state == StateCancelled || s.state == StateClosed {
		s.mu.Unlock()
		return
	}

	s.state = StateCancelled
	s.pending = make(map[int]Chunk)
	s.ready = nil
	s.cond.Signal()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// schedule assigns the next contiguous index to sent, acquires a
// worker slot (blocking the caller under backpressure), and runs
// synthesis in a goroutine.
func (s *Session) schedule(sent string) error {
	s.mu.Lock()
	idx := s.nextIdx
	s.nextIdx++
	s.mu.Unlock()

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		// Context cancelled while waiting for a slot: the session was
		// cancelled out from under this Append/End call.
		return ttserr.New(ttserr.Backpressure, "stream.Session.schedule", err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		samples, err := s.runSynthesis(sent)
		if err != nil {
			slog.Warn("stream sentence synthesis failed",
				"session", s.id, "index", idx, "error", err)
			// A failed sentence is replaced by silence, not dropped —
			// dropping it would violate the contiguous-index invariant.
			samples = nil
		}

		s.deliver(Chunk{Index: idx, Samples: samples})
	}()

	return nil
}

func (s *Session) runSynthesis(sent string) ([]float32, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	return s.synth.SynthesizeChunk(s.ctx, s.variant, sent, s.langTag, s.voice, s.speed)
}

// deliver holds chunk until every earlier index has arrived, then moves
// the contiguous run starting at the emit cursor onto the ready queue
// and wakes the pump. It never blocks: emission to the (possibly slow)
// consumer happens on the pump goroutine, outside the session lock, so
// Cancel and Append can always take the lock. A cancelled session
// discards deliveries outright.
func (s *Session) deliver(chunk Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCancelled {
		return
	}

	s.pending[chunk.Index] = chunk

	for {
		next, ok := s.pending[s.emitIdx]
		if !ok {
			break
		}

		delete(s.pending, s.emitIdx)
		s.emitIdx++
		s.ready = append(s.ready, next)
	}

	s.cond.Signal()
}

// pump is the session's ordered delivery stage: it moves chunks from
// the ready queue to the output channel one at a time, marking the last
// chunk of a normally-ended session as Final, and closes the channel
// when the session is drained or cancelled.
func (s *Session) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.ready) == 0 && s.state != StateClosed && s.state != StateCancelled {
			s.cond.Wait()
		}

		if s.state == StateCancelled {
			s.mu.Unlock()
			return
		}

		if len(s.ready) == 0 {
			// Closed and fully drained.
			s.mu.Unlock()
			return
		}

		next := s.ready[0]
		s.ready = s.ready[1:]

		// Once End has run, nextIdx is frozen, so the chunk carrying
		// nextIdx-1 is known to be the session's last.
		if (s.state == StateFlushing || s.state == StateClosed) && next.Index == s.nextIdx-1 {
			next.Final = true
		}
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.ctx.Done():
			return
		}
	}
}

// drainCompleteSentences scans buf for sentence terminators and line
// breaks, splitting off every completed sentence of at least minChars
// runes. The trailing partial sentence (no terminator yet) is left in
// buf. This mirrors internal/text.Segment's terminal-punctuation pass
// but operates incrementally on a growing buffer instead of a fixed
// string.
func drainCompleteSentences(buf *strings.Builder, minChars int) []string {
	s := buf.String()
	if s == "" {
		return nil
	}

	var out []string

	runes := []rune(s)
	start := 0

	for i, r := range runes {
		if !text.IsTerminator(r) && r != '\n' {
			continue
		}

		if i+1-start < minChars {
			// Too short to emit on its own (punctuation-heavy input);
			// keep accumulating into the next sentence.
			continue
		}

		candidate := strings.TrimSpace(string(runes[start : i+1]))
		start = i + 1

		if candidate != "" {
			out = append(out, candidate)
		}
	}

	buf.Reset()
	buf.WriteString(string(runes[start:]))

	return out
}
