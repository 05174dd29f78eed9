// Package genpool is the explicit worker-pool abstraction DESIGN NOTES
// (spec.md §9) calls for in place of the original's "async scheduling that
// silently degrades when no loop is running": candidate generation runs on
// a bounded number of goroutines so a burst of apply_action calls across
// many tasks can't all hit the LM concurrently, while per-task mutation
// itself never holds a lock for the duration of the LM call. Adapted from
// the teacher's internal/jobs/worker.Worker goroutine-pool shape, rebuilt
// over golang.org/x/sync/semaphore (the capacity primitive) and
// golang.org/x/sync/errgroup (batched draining, used by Wait for tests and
// graceful shutdown) instead of a DB-claimed job queue.
package genpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/riverglen/coursecraft/internal/logger"
)

// Scheduler is the interface the orchestrator depends on. Pool
// implements it with a bounded background pool; Immediate implements it by
// running inline, for deterministic tests (spec.md §9: "synchronous mode
// becomes an explicit 'immediate' executor used in tests").
type Scheduler interface {
	Submit(fn func(ctx context.Context))
}

// Pool bounds concurrent generation jobs to a fixed capacity. Submit never
// blocks the caller past acquiring a slot becoming available is handled in
// the background goroutine, not in Submit itself, so the apply_action call
// path returns immediately after dispatch.
type Pool struct {
	sem *semaphore.Weighted
	log *logger.Logger

	mu    sync.Mutex
	group *errgroup.Group
}

// New builds a Pool capped at concurrency simultaneous jobs.
func New(concurrency int, log *logger.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		sem:   semaphore.NewWeighted(int64(concurrency)),
		log:   log,
		group: &errgroup.Group{},
	}
}

// Submit dispatches fn to run on a pool goroutine as soon as a capacity
// slot frees up. fn runs with a background context: generation must
// outlive the HTTP request that triggered it.
func (p *Pool) Submit(fn func(ctx context.Context)) {
	p.mu.Lock()
	g := p.group
	p.mu.Unlock()

	g.Go(func() error {
		ctx := context.Background()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			if p.log != nil {
				p.log.Error("genpool: acquire failed", "error", err)
			}
			return err
		}
		defer p.sem.Release(1)
		fn(ctx)
		return nil
	})
}

// Wait blocks until every job submitted so far has completed, then resets
// the internal group so further Submit calls form a fresh batch. Used by
// tests that want to assert on an async job's effects, and by graceful
// shutdown.
func (p *Pool) Wait() {
	p.mu.Lock()
	g := p.group
	p.group = &errgroup.Group{}
	p.mu.Unlock()
	_ = g.Wait()
}
