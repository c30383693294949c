// Package report writes the files a build leaves in its work dir: the
// prompt it was given and the record of how the run went.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/reflow/wordwrap"
)

const (
	// PromptFile holds the user's prompt, without any template.
	PromptFile = "PROMPT.md"
	// RecordFile holds the run record.
	RecordFile = "BUILD-LOG.md"

	wrapWidth = 100
)

// Record is the final account of one build.
type Record struct {
	SessionID string
	Owner     string
	Prompt    string
	Model     string
	State     string
	ExitCode  int
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
	Files     int
	Dirs      int
	Tree      string
	Output    string

	RepoURL      string
	PublishError string
}

// Duration returns the run time, zero when the build never started.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// WritePrompt writes prompt to PROMPT.md in dir.
func WritePrompt(dir, prompt string) error {
	var b strings.Builder
	b.WriteString("# Prompt\n\n")
	b.WriteString(wordwrap.String(strings.TrimSpace(prompt), wrapWidth))
	b.WriteString("\n")

	if err := os.WriteFile(filepath.Join(dir, PromptFile), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing prompt file: %w", err)
	}
	return nil
}

// FormatRecord renders r as markdown.
func FormatRecord(r Record) string {
	var b strings.Builder

	b.WriteString("# Build log\n\n")
	fmt.Fprintf(&b, "- Session: `%s`\n", r.SessionID)
	if r.Owner != "" {
		fmt.Fprintf(&b, "- Owner: %s\n", r.Owner)
	}
	model := r.Model
	if model == "" {
		model = "default"
	}
	fmt.Fprintf(&b, "- Model: %s\n", model)
	fmt.Fprintf(&b, "- State: %s\n", r.State)
	if r.ExitCode >= 0 {
		fmt.Fprintf(&b, "- Exit code: %d\n", r.ExitCode)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "- Error: %s\n", r.Error)
	}
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.Format(time.RFC3339))
	}
	if !r.EndedAt.IsZero() {
		fmt.Fprintf(&b, "- Ended: %s\n", r.EndedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Duration: %s\n", FormatDuration(r.Duration()))
	fmt.Fprintf(&b, "- Files: %d | Dirs: %d\n", r.Files, r.Dirs)
	switch {
	case r.RepoURL != "":
		fmt.Fprintf(&b, "- Repository: %s\n", r.RepoURL)
	case r.PublishError != "":
		fmt.Fprintf(&b, "- Publish failed: %s\n", r.PublishError)
	}

	b.WriteString("\n## Prompt\n\n")
	b.WriteString(wordwrap.String(strings.TrimSpace(r.Prompt), wrapWidth))
	b.WriteString("\n")

	if r.Tree != "" {
		b.WriteString("\n## Files\n\n```\n")
		b.WriteString(strings.TrimRight(r.Tree, "\n"))
		b.WriteString("\n```\n")
	}

	b.WriteString("\n## Output\n\n```\n")
	out := strings.TrimRight(r.Output, "\n")
	if out == "" {
		out = "(no output)"
	}
	// Keep the fence intact if the generator printed one.
	b.WriteString(strings.ReplaceAll(out, "```", "'''"))
	b.WriteString("\n```\n")

	return b.String()
}

// WriteRecord writes the record to BUILD-LOG.md in dir and returns its path.
func WriteRecord(dir string, r Record) (string, error) {
	path := filepath.Join(dir, RecordFile)
	if err := os.WriteFile(path, []byte(FormatRecord(r)), 0644); err != nil {
		return "", fmt.Errorf("writing run record: %w", err)
	}
	return path, nil
}

// FormatDuration renders d as "1h 2m 3s", "2m 3s" or "3s".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
