// Package worker provides the bounded dispatch pool every repository
// operation runs blocking I/O and diff work on (spec section 5,
// "Scheduling model"). Go has no native Future type; the teacher's own
// domain code (pkg/zeta) exposes ordinary blocking methods taking a
// context.Context rather than returning promise objects, so "operations
// return futures" is realized the same way here: Run blocks the calling
// goroutine until the work finishes, a worker-pool slot frees up, or ctx
// is done, which is the idiomatic Go rendition of a future/promise.
package worker

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/retzger/centraldogma/internal/engineerr"
)

// Pool bounds how many blocking operations run concurrently against one
// repository's object store.
type Pool struct {
	sem *semaphore.Weighted
}

// New creates a Pool with the given capacity (spec section 5: "a
// repository-scoped worker pool (multiple threads)").
func New(capacity int64) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{sem: semaphore.NewWeighted(capacity)}
}

// Run dispatches fn onto the pool and blocks until it completes. If ctx is
// done before a slot is acquired, Run fails fast with Timeout rather than
// acquiring expensive resources (spec section 5, "Cancellation").
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, engineerr.Newf(engineerr.Timeout, "deadline elapsed before dispatch: %v", err)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, engineerr.Newf(engineerr.Timeout, "deadline elapsed waiting for a worker: %v", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
