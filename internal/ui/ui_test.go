package ui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berth-dev/slipway/internal/execute"
)

func frame(state execute.State) execute.Frame {
	return execute.Frame{
		SessionID: "0123456789abcdef",
		WorkDir:   "/projects/alice_20240101_120000_ab12cd34",
		Prompt:    "a todo app",
		State:     state,
		ExitCode:  -1,
		Elapsed:   65 * time.Second,
		Output:    "Creating files...\n",
		Tree:      "└ index.html",
		Files:     1,
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", TruncateHead("abc", 3))
	assert.Equal(t, "ab...", TruncateHead("abcdefgh", 5))
	assert.Equal(t, "...gh", TruncateTail("abcdefgh", 5))
	assert.Equal(t, "abcdefgh", TruncateTail("abcdefgh", 0))
	assert.Equal(t, "…é", TruncateTail("ééé…é", 2))
}

func TestStatusText(t *testing.T) {
	f := frame(execute.StateRunning)
	assert.Equal(t, "🔄 IN PROGRESS", StatusText(f, 0))

	f.State = execute.StateTimedOut
	assert.Equal(t, "⏰ TIMED OUT - process was killed after 10m 0s", StatusText(f, 10*time.Minute))

	f.State = execute.StateFailed
	f.ExitCode = 2
	assert.Equal(t, "⚠️ COMPLETED WITH EXIT CODE 2", StatusText(f, 0))

	f.ExitCode = -1
	f.Error = "spawn: exec: \"copilot\": executable file not found in $PATH"
	assert.True(t, strings.HasPrefix(StatusText(f, 0), "❌ ERROR: spawn:"))
}

func TestLayoutPlaceholders(t *testing.T) {
	f := frame(execute.StateRunning)
	f.Output, f.Tree = "", ""
	s := Layout(f, DefaultLimits())
	assert.Equal(t, "📁 alice_20240101_120000_ab12cd34/\n(initializing...)", s.Tree)
	assert.Equal(t, "(waiting for output...)", s.Output)
	assert.Contains(t, s.Summary, "Model: default")
	assert.Contains(t, s.Summary, "Elapsed: 1m 5s")
}

func TestFormatFrameKeepsOutputTail(t *testing.T) {
	f := frame(execute.StateCompleted)
	f.Output = strings.Repeat("x", 5000) + "THE END"
	lim := DefaultLimits()

	msg := FormatFrame(f, lim)
	assert.LessOrEqual(t, len([]rune(msg)), lim.MaxMessage)
	assert.Contains(t, msg, "...x")
	assert.Contains(t, msg, "THE END")
	assert.Contains(t, msg, "✅ COMPLETED SUCCESSFULLY")
}

func TestFormatFrameShrinksOutputBeforeSummary(t *testing.T) {
	f := frame(execute.StateCompleted)
	f.Output = strings.Repeat("y", 900) + "tail"
	lim := DefaultLimits()
	lim.MaxMessage = 500

	msg := FormatFrame(f, lim)
	assert.LessOrEqual(t, len([]rune(msg)), 500)
	assert.True(t, strings.HasSuffix(msg, "Elapsed: 1m 5s"), msg)
	assert.Contains(t, msg, "tail\n```")
}

func TestFormatFrameEscapesFences(t *testing.T) {
	f := frame(execute.StateRunning)
	f.Output = "```go\nfmt.Println()\n```"
	msg := FormatFrame(f, DefaultLimits())
	assert.Equal(t, 4, strings.Count(msg, "```"))
}

func TestSummaryPublish(t *testing.T) {
	f := frame(execute.StateCompleted)
	f.RepoURL = "https://github.com/alice/todo"
	assert.Contains(t, Summary(f, DefaultLimits()), "Repository: https://github.com/alice/todo")

	f.RepoURL, f.Publish = "", "publish failed: boom"
	assert.Contains(t, Summary(f, DefaultLimits()), "Publish: publish failed: boom")
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "Live": ModeLive, "stream": ModeStream, "message": ModeMessage} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("fancy")
	assert.Error(t, err)
}

func TestConsoleSinkAutoOnPipeIsStream(t *testing.T) {
	assert.Equal(t, ModeStream, NewConsoleSink(&bytes.Buffer{}, ModeAuto, DefaultLimits()).Mode())
}

func TestConsoleSinkStream(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, ModeStream, DefaultLimits())
	ctx := context.Background()

	f := frame(execute.StateRunning)
	f.Output = "step 1\n"
	require.NoError(t, sink.Render(ctx, f))
	require.NoError(t, sink.Render(ctx, f))
	f.Output += "step 2"
	require.NoError(t, sink.Render(ctx, f))
	f.State = execute.StateCompleted
	f.ExitCode = 0
	require.NoError(t, sink.Render(ctx, f))
	f.Publish = "published https://github.com/alice/todo"
	require.NoError(t, sink.Render(ctx, f))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "step 1"))
	assert.Contains(t, out, "==> build 01234567 in /projects/")
	assert.Contains(t, out, "step 2\n==> completed\n")
	assert.Contains(t, out, "✅ COMPLETED SUCCESSFULLY")
	assert.True(t, strings.HasSuffix(out, "==> published https://github.com/alice/todo\n"), out)
}

func TestConsoleSinkLiveRedraws(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, ModeLive, DefaultLimits())

	require.NoError(t, sink.Render(context.Background(), frame(execute.StateRunning)))
	first := buf.String()
	lines := strings.Count(first, "\n")
	require.Positive(t, lines)

	require.NoError(t, sink.Render(context.Background(), frame(execute.StateCompleted)))
	second := buf.String()[len(first):]
	assert.True(t, strings.HasPrefix(second, fmt.Sprintf("\033[%dA\033[J", lines)))
	assert.Contains(t, second, "completed")
}

func TestConsoleSinkMessage(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, ModeMessage, DefaultLimits())
	require.NoError(t, sink.Render(context.Background(), frame(execute.StateRunning)))
	assert.True(t, strings.HasPrefix(buf.String(), "```\n📁 alice_"))
}

func TestRenderMarkdown(t *testing.T) {
	assert.Empty(t, RenderMarkdown("   ", 80))
	out := RenderMarkdown("# Questions\n\n- Which **framework**?\n- Dark mode?", 80)
	assert.Contains(t, out, "Questions")
	assert.Contains(t, out, "framework")
}
