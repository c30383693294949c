// status.go defines the build session state machine values.
package execute

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a build session.
type State int

const (
	StatePending   State = iota // Directory created, process not started
	StateRunning                // Process spawned and registered
	StateCompleted              // Process exited 0
	StateFailed                 // Spawn failure or nonzero exit
	StateTimedOut               // Wall-clock deadline elapsed
	StateCancelled              // Cancellation requested
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// ErrorKind classifies why a session failed.
type ErrorKind string

const (
	ErrorSpawn    ErrorKind = "spawn"
	ErrorExit     ErrorKind = "exit"
	ErrorWait     ErrorKind = "wait"
	ErrorInternal ErrorKind = "internal"
)

// ErrorDetail is attached to a session that ended in StateFailed.
type ErrorDetail struct {
	Kind     ErrorKind
	Message  string
	ExitCode int
}

func (e *ErrorDetail) Error() string {
	if e.Kind == ErrorExit {
		return fmt.Sprintf("generator exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Status is a point-in-time view of a session. Text rendering is left to
// the render sink.
type Status struct {
	State     State
	ExitCode  int // -1 until the process has exited
	Err       *ErrorDetail
	StartedAt time.Time
	EndedAt   time.Time
}

// Elapsed returns run time so far, or the total once the session ended.
func (s Status) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.EndedAt.IsZero() {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}
