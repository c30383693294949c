package execute

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTerminateAlreadyExited(t *testing.T) {
	p := newFakeProcess(1)
	p.exit(0)
	require.NoError(t, Terminate(p, time.Second))
	assert.Zero(t, p.interrupts.Load())
	assert.Zero(t, p.kills.Load())
}

func TestTerminatePoliteExit(t *testing.T) {
	p := newFakeProcess(1)
	require.NoError(t, Terminate(p, time.Second))
	assert.Equal(t, int32(1), p.interrupts.Load())
	assert.Zero(t, p.kills.Load())
}

func TestTerminateEscalatesToKill(t *testing.T) {
	p := newFakeProcess(1)
	p.stubborn = true
	require.NoError(t, Terminate(p, 20*time.Millisecond))
	assert.Equal(t, int32(1), p.interrupts.Load())
	assert.Equal(t, int32(1), p.kills.Load())
}

func TestTerminateGivesUpOnUnkillable(t *testing.T) {
	p := newFakeProcess(1)
	p.stubborn, p.unkillable = true, true
	err := Terminate(p, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrKillTimeout)
	assert.Equal(t, int32(1), p.kills.Load())
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	a := r.Register(newFakeProcess(1), "b-session")
	b := r.Register(newFakeProcess(2), "a-session")
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.ActiveCount())
	assert.Equal(t, []string{"a-session", "b-session"}, r.Sessions())

	r.Unregister(a)
	r.Unregister(a)
	r.Unregister(Token(999))
	assert.Equal(t, 1, r.ActiveCount())
	assert.Equal(t, []string{"a-session"}, r.Sessions())
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := r.Register(newFakeProcess(i), "s")
			_ = r.ActiveCount()
			r.Unregister(tok)
		}()
	}
	wg.Wait()
	assert.Zero(t, r.ActiveCount())
}

func TestRegistryKillAll(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, nil)
	polite := newFakeProcess(1)
	stubborn := newFakeProcess(2)
	stubborn.stubborn = true
	exited := newFakeProcess(3)
	exited.exit(0)

	r.Register(polite, "one")
	r.Register(stubborn, "two")
	r.Register(exited, "three")

	assert.Equal(t, 3, r.KillAll())
	assert.Zero(t, r.ActiveCount())

	for _, p := range []*fakeProcess{polite, stubborn, exited} {
		select {
		case <-p.Done():
		default:
			t.Fatalf("pid %d still running", p.pid)
		}
	}
	assert.Equal(t, int32(1), stubborn.kills.Load())
	assert.Zero(t, polite.kills.Load())

	assert.Zero(t, r.KillAll())
}

func TestRegistryKillAllUnregistersUnkillable(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRegistry(10*time.Millisecond, zap.New(core))

	zombie := newFakeProcess(7)
	zombie.stubborn, zombie.unkillable = true, true
	polite := newFakeProcess(8)
	r.Register(zombie, "zombie")
	r.Register(polite, "polite")

	assert.Equal(t, 2, r.KillAll())
	assert.Zero(t, r.ActiveCount())
	assert.Empty(t, r.Sessions())

	warnings := logs.FilterMessage("terminate generator").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "zombie", warnings[0].ContextMap()["session_id"])
	assert.Contains(t, warnings[0].ContextMap()["error"], ErrKillTimeout.Error())
}

func TestRegistryKillAllCancelsSession(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, nil)
	sess := newBuildSession("s1", t.TempDir(), Request{}, time.Now)
	p := newFakeProcess(1)
	r.RegisterSession(p, sess)
	assert.Equal(t, []string{"s1"}, r.Sessions())

	r.KillAll()
	assert.True(t, sess.cancelRequested())
	assert.Zero(t, r.ActiveCount())
}
