package execute

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCommandSpecFlagMode(t *testing.T) {
	c := CommandConfig{
		Command:    "copilot",
		Flags:      []string{"--allow-all-tools"},
		PromptFlag: "-p",
		ModelFlag:  "--model",
		Template:   "  Build it.  ",
	}
	spec := c.Spec("/tmp/w", Request{Prompt: "a todo app", Model: "gpt-5"})

	assert.Equal(t, "/tmp/w", spec.Dir)
	assert.Empty(t, spec.Stdin)
	assert.Equal(t, []string{"copilot", "-p", "Build it.\n\na todo app", "--allow-all-tools", "--model", "gpt-5"}, spec.Argv)
}

func TestCommandSpecStdinMode(t *testing.T) {
	c := CommandConfig{Command: "gen", PromptFlag: "-p", ModelFlag: "--model", PromptViaStdin: true}
	spec := c.Spec("/tmp/w", Request{Prompt: "hello"})

	assert.Equal(t, []string{"gen"}, spec.Argv)
	assert.Equal(t, "hello", spec.Stdin)
}

func TestCommandFullPromptWithoutTemplate(t *testing.T) {
	assert.Equal(t, "x", CommandConfig{}.FullPrompt("x"))
}

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestDrainAppendsPartialChunks(t *testing.T) {
	var buf OutputBuffer
	err := drain(&chunkReader{chunks: []string{"Build", "ing...", "\ndone"}}, &buf, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "Building...\ndone", buf.Snapshot())
}

func TestDrainClosedPipeIsClean(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var buf OutputBuffer
	require.NoError(t, drain(r, &buf, zap.NewNop()))
	assert.Equal(t, "abc", buf.Snapshot())
	require.NoError(t, r.Close())

	// Reading from an already closed file reports os.ErrClosed.
	var empty OutputBuffer
	assert.NoError(t, drain(r, &empty, zap.NewNop()))
	assert.Zero(t, empty.Len())
}
