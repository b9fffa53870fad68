package server

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// gate is a weight-1 semaphore with cancelable acquisition and an
// idempotent release. Releasing a gate that is not held is a no-op,
// which the read gate relies on: read continuation is driven externally
// and may race with the transport becoming secured.
type gate struct {
	sem *semaphore.Weighted

	mu   sync.Mutex
	held bool
}

func newGate() *gate {
	return &gate{sem: semaphore.NewWeighted(1)}
}

// acquire blocks until the gate is free or ctx is done, in which case it
// returns the context error.
func (g *gate) acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.mu.Lock()
	g.held = true
	g.mu.Unlock()
	return nil
}

// tryAcquire acquires the gate without blocking.
func (g *gate) tryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.mu.Lock()
	g.held = true
	g.mu.Unlock()
	return true
}

// release frees the gate if it is held.
func (g *gate) release() {
	g.mu.Lock()
	if !g.held {
		g.mu.Unlock()
		return
	}
	g.held = false
	g.mu.Unlock()
	g.sem.Release(1)
}

// isHeld reports whether the gate is currently held. Diagnostic only;
// the answer may be stale by the time the caller acts on it.
func (g *gate) isHeld() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}
