package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the Prometheus series exposed at GET /metrics:
// synthesis latency, in-flight request count, and streaming chunk
// throughput.
type Metrics struct {
	synthesisDuration prometheus.Histogram
	synthesisInFlight prometheus.Gauge
	synthesisErrors   *prometheus.CounterVec
	streamChunksTotal prometheus.Counter
}

// NewMetrics builds a fresh set of collectors and registers them with
// the default registry. Called once per handler; only the first call in
// a process registers successfully. Later calls (e.g. in tests that
// build multiple handlers) get an AlreadyRegisteredError, which is
// ignored, so their collectors are updated but not exported at
// GET /metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		synthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kokorox",
			Name:      "synthesis_duration_seconds",
			Help:      "Time to synthesize a one-shot /v1/audio/speech request.",
			Buckets:   prometheus.DefBuckets,
		}),
		synthesisInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kokorox",
			Name:      "synthesis_in_flight",
			Help:      "Number of synthesis requests currently executing.",
		}),
		synthesisErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kokorox",
			Name:      "synthesis_errors_total",
			Help:      "Synthesis requests that returned an error, by error kind.",
		}, []string{"kind"}),
		streamChunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kokorox",
			Name:      "stream_chunks_total",
			Help:      "Total streaming audio chunks emitted across all sessions.",
		}),
	}

	// A second registration under the same names (e.g. across tests
	// sharing a process) returns AlreadyRegisteredError; it is ignored and
	// the collector registered first stays the exported one.
	for _, c := range []prometheus.Collector{
		m.synthesisDuration, m.synthesisInFlight, m.synthesisErrors, m.streamChunksTotal,
	} {
		if err := prometheus.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = are
				continue
			}
		}
	}

	return m
}

// synthesisTimer tracks one in-flight synthesis call.
type synthesisTimer struct {
	m     *Metrics
	start time.Time
}

// StartSynthesis marks the beginning of a synthesis call; call
// ObserveError(err) when it completes.
func (m *Metrics) StartSynthesis() *synthesisTimer {
	m.synthesisInFlight.Inc()
	return &synthesisTimer{m: m, start: time.Now()}
}

// ObserveError records the call's duration and, if err is non-nil,
// increments the error counter under its ttserr.Kind (or "unknown").
func (t *synthesisTimer) ObserveError(err error) {
	t.m.synthesisInFlight.Dec()
	t.m.synthesisDuration.Observe(time.Since(t.start).Seconds())

	if err != nil {
		t.m.synthesisErrors.WithLabelValues(errorKind(err)).Inc()
	}
}

// IncStreamChunks records n streaming chunks emitted.
func (m *Metrics) IncStreamChunks(n int) {
	m.streamChunksTotal.Add(float64(n))
}
