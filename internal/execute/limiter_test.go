package execute

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBound(t *testing.T) {
	l := NewLimiter(2)
	require.True(t, l.TryAcquire())
	require.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	assert.Equal(t, 2, l.Running())

	l.Release()
	assert.Equal(t, 1, l.Running())
	assert.True(t, l.TryAcquire())
}

func TestLimiterMinimumOne(t *testing.T) {
	l := NewLimiter(0)
	require.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
}

func TestLimiterProgress(t *testing.T) {
	l := NewLimiter(3)
	require.True(t, l.TryAcquire())
	l.Record(StateCompleted)
	l.Record(StateCompleted)
	l.Record(StateFailed)
	l.Record(StateTimedOut)
	l.Record(StateRunning)

	assert.Equal(t, "[1/3 running] 2 ok, 1 failed, 1 timed out, 0 cancelled", l.Progress())
	assert.Equal(t, Counts{Completed: 2, Failed: 1, TimedOut: 1}, l.Counts())
}

func TestLimiterCountsConcurrently(t *testing.T) {
	l := NewLimiter(1)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(StateCancelled)
			_ = l.Counts()
		}()
	}
	wg.Wait()
	assert.Equal(t, 40, l.Counts().Cancelled)
}
