package runner

import (
	"sync"
)

// Registry tracks in-flight runs so HTTP cancel requests can reach the
// coordinator goroutine. Cancellation is soft: the flag is polled between
// test cases and the current case always finishes.
type Registry struct {
	mu     sync.Mutex
	active map[string]*runHandle
}

type runHandle struct {
	cancelled bool
	abort     func()
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*runHandle)}
}

// Register records a run as in-flight. abort force-cancels the run's context
// and is invoked on process shutdown, not on soft cancel. Launch registers the
// handle with a nil abort; Execute re-registers to arm it, so an existing
// handle keeps its cancel flag.
func (r *Registry) Register(evalID string, abort func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.active[evalID]; ok {
		h.abort = abort
		return
	}
	r.active[evalID] = &runHandle{abort: abort}
}

// Unregister removes a finished run.
func (r *Registry) Unregister(evalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, evalID)
}

// Cancel flags a run for soft cancellation. Returns false when the run is not
// in flight.
func (r *Registry) Cancel(evalID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.active[evalID]
	if !ok {
		return false
	}
	h.cancelled = true
	return true
}

// IsCancelled reports whether a soft cancel was requested.
func (r *Registry) IsCancelled(evalID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.active[evalID]
	return ok && h.cancelled
}

// AbortAll force-cancels every in-flight run. Called on shutdown so in-flight
// LLM calls stop within the cooperative latency target.
func (r *Registry) AbortAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.active {
		h.cancelled = true
		if h.abort != nil {
			h.abort()
		}
	}
}
