package execute

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBufferConcurrentAppends(t *testing.T) {
	var buf OutputBuffer
	const writers, appends, width = 8, 200, 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		chunk := strings.Repeat(string(rune('a'+w)), width)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < appends; i++ {
				buf.Append(chunk)
			}
		}()
	}
	wg.Wait()

	got := buf.Snapshot()
	require.Equal(t, writers*appends*width, len(got))
	assert.Equal(t, len(got), buf.Len())
	// Appends are atomic, so every width-aligned slice comes from one writer.
	for i := 0; i < len(got); i += width {
		piece := got[i : i+width]
		assert.Equal(t, strings.Repeat(piece[:1], width), piece, "torn write at %d", i)
	}
}

func TestOutputBufferWrite(t *testing.T) {
	var buf OutputBuffer
	n, err := buf.Write([]byte("partial line"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	buf.Append("")
	assert.Equal(t, "partial line", buf.Snapshot())
}
