package execute

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTerminal(t *testing.T) {
	for _, st := range []State{StatePending, StateRunning} {
		assert.False(t, st.Terminal(), st.String())
	}
	for _, st := range []State{StateCompleted, StateFailed, StateTimedOut, StateCancelled} {
		assert.True(t, st.Terminal(), st.String())
	}
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestErrorDetailMessage(t *testing.T) {
	assert.Equal(t, "generator exited with code 2", (&ErrorDetail{Kind: ErrorExit, ExitCode: 2}).Error())
	assert.Equal(t, "spawn: not found", (&ErrorDetail{Kind: ErrorSpawn, Message: "not found"}).Error())
}

func TestStatusElapsed(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Zero(t, Status{}.Elapsed(start))

	running := Status{StartedAt: start}
	assert.Equal(t, 3*time.Second, running.Elapsed(start.Add(3*time.Second)))

	ended := Status{StartedAt: start, EndedAt: start.Add(5 * time.Second)}
	assert.Equal(t, 5*time.Second, ended.Elapsed(start.Add(time.Hour)))
}

func TestSessionTransitionsOnlyMoveForward(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	sess := newBuildSession("s1", t.TempDir(), Request{Prompt: "p"}, now)

	st := sess.Status()
	assert.Equal(t, StatePending, st.State)
	assert.Equal(t, -1, st.ExitCode)

	require.True(t, sess.transition(StateRunning, nil))
	assert.False(t, sess.transition(StatePending, nil))
	assert.False(t, sess.transition(StateRunning, nil))
	assert.Equal(t, clock, sess.Status().StartedAt)

	select {
	case <-sess.Done():
		t.Fatal("done closed before terminal state")
	default:
	}

	clock = clock.Add(2 * time.Second)
	require.True(t, sess.transition(StateCompleted, func(st *Status) { st.ExitCode = 0 }))
	<-sess.Done()

	clock = clock.Add(time.Minute)
	assert.False(t, sess.fail(&ErrorDetail{Kind: ErrorInternal, Message: "late"}))
	assert.False(t, sess.transition(StateCancelled, nil))

	final := sess.Status()
	assert.Equal(t, StateCompleted, final.State)
	assert.Nil(t, final.Err)
	assert.Equal(t, 2*time.Second, final.Elapsed(clock))
}

func TestSessionFailRecordsExitCode(t *testing.T) {
	sess := newBuildSession("s1", t.TempDir(), Request{}, nil)
	require.True(t, sess.transition(StateRunning, nil))
	require.True(t, sess.fail(&ErrorDetail{Kind: ErrorExit, ExitCode: 7}))

	st := sess.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, 7, st.ExitCode)
	assert.Equal(t, ErrorExit, st.Err.Kind)
}

func TestSessionConcurrentTerminalTransitions(t *testing.T) {
	sess := newBuildSession("s1", t.TempDir(), Request{}, nil)
	require.True(t, sess.transition(StateRunning, nil))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, st := range []State{StateCompleted, StateFailed, StateTimedOut, StateCancelled} {
		st := st
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sess.transition(st, nil) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Higher states may overtake lower ones but only while non-terminal,
	// so exactly one terminal transition lands.
	assert.Equal(t, 1, wins)
	assert.True(t, sess.Status().State.Terminal())
}

func TestSessionCancelIdempotent(t *testing.T) {
	sess := newBuildSession("s1", t.TempDir(), Request{}, nil)
	assert.False(t, sess.cancelRequested())
	sess.Cancel()
	sess.Cancel()
	assert.True(t, sess.cancelRequested())
	<-sess.cancelCh
	// Cancel only signals; the state is moved by the runner.
	assert.Equal(t, StatePending, sess.Status().State)
}
