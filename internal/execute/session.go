// session.go holds the state of one generation run.
package execute

import (
	"sync"
	"sync/atomic"
	"time"
)

// Request is what a build was asked to do. It is fixed once the session exists.
type Request struct {
	Owner  string // external identifier used in the work dir name
	Prompt string
	Model  string // empty means the generator's default
}

// BuildSession is one generation run tied to one working directory and at
// most one generator process.
type BuildSession struct {
	id      string
	workDir string
	req     Request
	output  OutputBuffer
	now     func() time.Time

	mu        sync.Mutex
	status    Status
	cancelled bool

	started    atomic.Bool
	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

func newBuildSession(id, workDir string, req Request, now func() time.Time) *BuildSession {
	if now == nil {
		now = time.Now
	}
	return &BuildSession{
		id:       id,
		workDir:  workDir,
		req:      req,
		now:      now,
		status:   Status{State: StatePending, ExitCode: -1},
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *BuildSession) ID() string       { return s.id }
func (s *BuildSession) WorkDir() string  { return s.workDir }
func (s *BuildSession) Request() Request { return s.req }

// Output returns everything the generator has printed so far.
func (s *BuildSession) Output() string { return s.output.Snapshot() }

// Status returns a copy of the current status.
func (s *BuildSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed when the session reaches a terminal state.
func (s *BuildSession) Done() <-chan struct{} { return s.done }

// Cancel asks the run to stop. It is safe to call more than once and from
// any goroutine. Once requested, cancellation wins over a natural exit that
// has not been observed yet.
func (s *BuildSession) Cancel() {
	s.cancelOnce.Do(func() {
		s.mu.Lock()
		s.cancelled = true
		s.mu.Unlock()
		close(s.cancelCh)
	})
}

func (s *BuildSession) cancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// transition moves the session forward to next. States only move forward,
// and nothing leaves a terminal state. edit, if set, runs under the lock
// before the change becomes visible. Returns false if the move was rejected.
func (s *BuildSession) transition(next State, edit func(*Status)) bool {
	s.mu.Lock()
	cur := s.status.State
	if cur.Terminal() || next <= cur {
		s.mu.Unlock()
		return false
	}

	now := s.now()
	s.status.State = next
	if next == StateRunning {
		s.status.StartedAt = now
	}
	if next.Terminal() {
		s.status.EndedAt = now
	}
	if edit != nil {
		edit(&s.status)
	}
	s.mu.Unlock()

	if next.Terminal() {
		close(s.done)
	}
	return true
}

// fail moves the session to StateFailed with detail attached.
func (s *BuildSession) fail(detail *ErrorDetail) bool {
	return s.transition(StateFailed, func(st *Status) {
		st.Err = detail
		if detail.Kind == ErrorExit {
			st.ExitCode = detail.ExitCode
		}
	})
}
