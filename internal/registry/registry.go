// Package registry tracks inference session variants (standard,
// quantized) and serializes access to each underlying session.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/byteowlz/kokorox/internal/onnx"
	"github.com/byteowlz/kokorox/internal/ttserr"
)

var errMissingStandard = errors.New("standard variant is required")

// Variant names a model variant in the registry.
type Variant string

const (
	VariantStandard  Variant = "standard"
	VariantQuantized Variant = "quantized"
)

// session pairs an Engine with the mutex that serializes Run calls on
// it — a given ONNX session is treated as non-reentrant.
type session struct {
	mu     sync.Mutex
	engine *onnx.Engine
}

// Lease is an acquired, exclusive handle on one of a variant's session
// replicas. The caller must call Release when done; while held, no
// other caller can run inference on the same underlying session.
type Lease struct {
	sess *session
}

// Engine returns the inference engine this lease guards.
func (l *Lease) Engine() *onnx.Engine { return l.sess.engine }

// Release frees the lease, allowing the next waiter to acquire it.
func (l *Lease) Release() {
	l.sess.mu.Unlock()
}

// Registry owns a small pool of sessions per variant: one by default,
// more when the caller replicates sessions for concurrency (each
// replica is its own ONNX session, so replicas can run in parallel).
// Switching the active variant is an atomic swap; sentences already
// scheduled against a session continue running on it even after the
// active variant changes — the registry never tears down a session out
// from under an in-flight lease.
type Registry struct {
	mu       sync.Mutex
	sessions map[Variant][]*session
	next     atomic.Uint64
	active   atomic.Value // Variant
}

// New builds a Registry with a single session per variant. At least
// VariantStandard must be present.
func New(engines map[Variant]*onnx.Engine) (*Registry, error) {
	pools := make(map[Variant][]*onnx.Engine, len(engines))
	for v, e := range engines {
		pools[v] = []*onnx.Engine{e}
	}

	return NewPool(pools)
}

// NewPool builds a Registry from variant→replica bindings. Every
// variant needs at least one engine, and VariantStandard must be
// present.
func NewPool(pools map[Variant][]*onnx.Engine) (*Registry, error) {
	if len(pools[VariantStandard]) == 0 {
		return nil, ttserr.New(ttserr.InternalInvariant, "registry.NewPool", errMissingStandard)
	}

	r := &Registry{sessions: make(map[Variant][]*session, len(pools))}

	for v, engines := range pools {
		if len(engines) == 0 {
			return nil, ttserr.Newf(ttserr.InternalInvariant, "registry.NewPool", "variant %q has no sessions", v)
		}

		replicas := make([]*session, len(engines))
		for i, e := range engines {
			replicas[i] = &session{engine: e}
		}

		r.sessions[v] = replicas
	}

	r.active.Store(VariantStandard)

	return r, nil
}

// Active returns the currently active variant.
func (r *Registry) Active() Variant {
	return r.active.Load().(Variant)
}

// SetActive atomically swaps the active variant. Returns
// InternalInvariant if variant has no registered session.
func (r *Registry) SetActive(variant Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[variant]; !ok {
		return ttserr.Newf(ttserr.InternalInvariant, "registry.SetActive", "unknown variant %q", variant)
	}

	r.active.Store(variant)

	return nil
}

// Acquire takes the Registry lock only to look up variant's replica
// pool, releases it, then locks one replica — a fixed lock order
// (Registry lock strictly before any session lease lock) that prevents
// deadlock against concurrent SetActive calls. An idle replica is
// preferred; when all are busy, the caller blocks on a round-robin
// choice so waiters spread across the pool.
func (r *Registry) Acquire(variant Variant) (*Lease, error) {
	r.mu.Lock()
	replicas, ok := r.sessions[variant]
	r.mu.Unlock()

	if !ok {
		return nil, ttserr.Newf(ttserr.InternalInvariant, "registry.Acquire", "unknown variant %q", variant)
	}

	for _, sess := range replicas {
		if sess.mu.TryLock() {
			return &Lease{sess: sess}, nil
		}
	}

	sess := replicas[r.next.Add(1)%uint64(len(replicas))]
	sess.mu.Lock()

	return &Lease{sess: sess}, nil
}

// AcquireActive is a convenience for Acquire(Active()).
func (r *Registry) AcquireActive() (*Lease, error) {
	return r.Acquire(r.Active())
}

// Close releases every replica's engine.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, replicas := range r.sessions {
		for _, s := range replicas {
			s.engine.Close()
		}
	}
}
