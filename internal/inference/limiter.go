package inference

// limiter.go bounds concurrent review runs with a semaphore. The master
// dataset has a single-writer merge discipline, so the service allows only
// a small number of runs at once; extra requests wait briefly for a slot
// and then fail with ErrTooManyRuns.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when all run slots are occupied and the wait
// timeout expires. Clients should retry after the current run completes.
var ErrTooManyRuns = errors.New("a review run is already in progress, please try again later")

// DefaultMaxConcurrentRuns allows one run at a time.
const DefaultMaxConcurrentRuns = 1

// DefaultRunWaitTime is how long to wait for a slot before rejecting.
const DefaultRunWaitTime = 2 * time.Second

// RunLimiter controls concurrent review runs using a semaphore.
type RunLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewRunLimiter creates a limiter allowing at most maxConcurrent runs.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultRunWaitTime
	}
	return &RunLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire a run slot. Returns nil on success,
// ErrTooManyRuns if the wait timeout expires. The caller MUST call
// Release() when the run completes (use defer).
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
}

// TryAcquire attempts to acquire a slot without blocking.
func (l *RunLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release releases a previously acquired slot. Must be called exactly once
// for each successful Acquire/TryAcquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// ActiveCount returns the number of currently active runs.
func (l *RunLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until all active runs complete or the context is
// cancelled. Used for graceful shutdown.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}
