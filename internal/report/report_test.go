package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRecord(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := Record{
		SessionID: "abc",
		Owner:     "ada",
		Prompt:    "build a todo app",
		State:     "completed",
		ExitCode:  0,
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		Files:     3,
		Dirs:      1,
		Tree:      "└ main.go",
		Output:    "done\n```\n",
	}

	out := FormatRecord(r)
	assert.Contains(t, out, "- Model: default")
	assert.Contains(t, out, "- State: completed")
	assert.Contains(t, out, "- Duration: 1m 30s")
	assert.Contains(t, out, "- Files: 3 | Dirs: 1")
	assert.Contains(t, out, "build a todo app")
	assert.Equal(t, 4, strings.Count(out, "```"), "generator fences must not break the record")
}

func TestFormatRecordNoOutput(t *testing.T) {
	out := FormatRecord(Record{State: "failed", ExitCode: -1, Error: "spawn: not found"})
	assert.Contains(t, out, "(no output)")
	assert.Contains(t, out, "- Error: spawn: not found")
	assert.NotContains(t, out, "Exit code")
	assert.Contains(t, out, "- Duration: < 1s")
}

func TestWriteRecordAndPrompt(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WritePrompt(dir, "  make a game  "))
	data, err := os.ReadFile(filepath.Join(dir, PromptFile))
	require.NoError(t, err)
	assert.Equal(t, "# Prompt\n\nmake a game\n", string(data))

	path, err := WriteRecord(dir, Record{State: "timed_out"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, RecordFile), path)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "< 1s"},
		{42 * time.Second, "42s"},
		{2*time.Minute + 3*time.Second, "2m 3s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}

func TestFormatRecordPublishOutcome(t *testing.T) {
	out := FormatRecord(Record{State: "completed", RepoURL: "https://github.com/ada/todo"})
	assert.Contains(t, out, "- Repository: https://github.com/ada/todo")

	out = FormatRecord(Record{State: "completed", PublishError: "gh: not logged in"})
	assert.Contains(t, out, "- Publish failed: gh: not logged in")
}
