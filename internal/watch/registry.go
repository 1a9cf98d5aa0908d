// Package watch implements the watcher registry (spec component C10):
// long-poll waiters keyed by (pattern), completed when a commit touches a
// matching path, with cancellation and a terminal shutdown. Per spec
// section 4.10, completion callbacks must never run while holding the
// registry lock, since a callback may call back into the repository.
package watch

import (
	"context"
	"sync"

	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/pattern"
)

// Result is what a Waiter resolves to: a matching revision, or an error
// (ShuttingDown on registry shutdown).
type Result struct {
	Revision int64
	Err      error
}

// Waiter is a single pending long-poll registration.
type Waiter struct {
	id      uint64
	pattern *pattern.Pattern
	done    chan Result
}

// Wait blocks until the waiter resolves, ctx is done, or the caller
// cancels. A ctx cancellation/deadline yields (0, Timeout); the registry
// is not notified automatically and the caller should call Cancel.
func (w *Waiter) Wait(ctx context.Context) (int64, error) {
	select {
	case r := <-w.done:
		return r.Revision, r.Err
	case <-ctx.Done():
		return 0, engineerr.Newf(engineerr.Timeout, "watch timed out: %v", ctx.Err())
	}
}

// Registry holds all pending waiters for one repository.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	waiters map[uint64]*Waiter
	closed  bool
	cause   error
}

func New() *Registry {
	return &Registry{waiters: make(map[uint64]*Waiter)}
}

// Register adds a new waiter for pattern p. If the registry has already
// been shut down, the waiter resolves immediately with ShuttingDown.
func (r *Registry) Register(p *pattern.Pattern) *Waiter {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		w := &Waiter{pattern: p, done: make(chan Result, 1)}
		w.done <- Result{Err: r.cause}
		return w
	}
	r.nextID++
	w := &Waiter{id: r.nextID, pattern: p, done: make(chan Result, 1)}
	r.waiters[w.id] = w
	r.mu.Unlock()
	return w
}

// Cancel removes a waiter without resolving it; the caller has already
// given up on the result (e.g. its own context expired).
func (r *Registry) Cancel(w *Waiter) {
	r.mu.Lock()
	delete(r.waiters, w.id)
	r.mu.Unlock()
}

// Notify completes every waiter whose pattern matches at least one path
// in changedPaths, passing revision as the result (spec section 4.10).
// Must be called outside the commit pipeline's write lock (spec section
// 4.8 step 10) to avoid deadlocking a callback that re-enters the
// repository.
func (r *Registry) Notify(revision int64, changedPaths []string) {
	var toComplete []*Waiter

	r.mu.Lock()
	for id, w := range r.waiters {
		if matchesAny(w.pattern, changedPaths) {
			toComplete = append(toComplete, w)
			delete(r.waiters, id)
		}
	}
	r.mu.Unlock()

	for _, w := range toComplete {
		w.done <- Result{Revision: revision}
	}
}

// Shutdown resolves every pending waiter with the given failure cause and
// rejects all future registrations (spec section 4.11, "Close").
func (r *Registry) Shutdown(cause error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.cause = cause
	pending := r.waiters
	r.waiters = make(map[uint64]*Waiter)
	r.mu.Unlock()

	for _, w := range pending {
		w.done <- Result{Err: cause}
	}
}

// Stats is a point-in-time snapshot of registry occupancy (SPEC_FULL
// supplement: a metrics-free observability hook).
type Stats struct {
	Pending int
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Pending: len(r.waiters)}
}

func matchesAny(p *pattern.Pattern, paths []string) bool {
	for _, path := range paths {
		if p.Match(path) {
			return true
		}
	}
	return false
}
