// limiter.go bounds how many builds run at once and keeps outcome counters.
package execute

import (
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Limiter admits at most max concurrent builds. Builds beyond the bound are
// rejected, not queued. Counter methods are safe for concurrent use.
type Limiter struct {
	sem *semaphore.Weighted
	max int

	mu      sync.Mutex
	running int
	counts  Counts
}

// Counts tallies finished builds by terminal state.
type Counts struct {
	Completed int
	Failed    int
	TimedOut  int
	Cancelled int
}

// NewLimiter creates a Limiter admitting max builds. max < 1 is treated as 1.
func NewLimiter(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{
		sem: semaphore.NewWeighted(int64(max)),
		max: max,
	}
}

// TryAcquire takes a slot if one is free.
func (l *Limiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.mu.Lock()
	l.running++
	l.mu.Unlock()
	return true
}

// Release returns a slot taken by TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.running--
	l.mu.Unlock()
	l.sem.Release(1)
}

// Record counts a finished build by its terminal state.
func (l *Limiter) Record(st State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch st {
	case StateCompleted:
		l.counts.Completed++
	case StateFailed:
		l.counts.Failed++
	case StateTimedOut:
		l.counts.TimedOut++
	case StateCancelled:
		l.counts.Cancelled++
	}
}

// Running returns the number of slots in use.
func (l *Limiter) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Counts returns a copy of the outcome counters.
func (l *Limiter) Counts() Counts {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts
}

// Progress returns a summary like "[1/2 running] 3 ok, 1 failed, 0 timed out, 0 cancelled".
func (l *Limiter) Progress() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("[%d/%d running] %d ok, %d failed, %d timed out, %d cancelled",
		l.running, l.max, l.counts.Completed, l.counts.Failed, l.counts.TimedOut, l.counts.Cancelled)
}
