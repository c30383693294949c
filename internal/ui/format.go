// Package ui provides terminal output for slipway: the build status view,
// its text layout and markdown rendering for assistant replies.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/berth-dev/slipway/internal/execute"
	"github.com/berth-dev/slipway/internal/report"
)

const ellipsis = "..."

// Limits bound the sections of a formatted frame, in characters.
type Limits struct {
	MaxMessage int
	MaxTree    int
	MaxOutput  int
	MaxSummary int
	MaxPrompt  int           // prompt preview in the summary
	Timeout    time.Duration // shown in the timed out status when set
}

// DefaultLimits returns the limits used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxMessage: 4000,
		MaxTree:    1500,
		MaxOutput:  1800,
		MaxSummary: 600,
		MaxPrompt:  200,
	}
}

// Sections is a frame split into its three display parts, each already
// truncated to its limit.
type Sections struct {
	Tree    string
	Output  string
	Summary string
}

// Layout splits f into sections. The tree keeps its head, the output keeps
// its tail.
func Layout(f execute.Frame, lim Limits) Sections {
	tree := f.Tree
	if tree == "" {
		tree = "(initializing...)"
	}
	header := "📁 " + filepath.Base(f.WorkDir) + "/"
	if f.WorkDir == "" {
		header = "📁 ./"
	}

	output := f.Output
	if output == "" {
		output = "(waiting for output...)"
	}

	return Sections{
		Tree:    TruncateHead(header+"\n"+tree, lim.MaxTree),
		Output:  TruncateTail(strings.TrimRight(output, "\n"), lim.MaxOutput),
		Summary: TruncateHead(Summary(f, lim), lim.MaxSummary),
	}
}

// FormatFrame renders f as one message: tree and output in fenced blocks
// followed by the summary, never longer than lim.MaxMessage. When the whole
// message is too long the output shrinks first so the summary survives.
func FormatFrame(f execute.Frame, lim Limits) string {
	s := Layout(f, lim)
	msg := joinSections(s)
	if lim.MaxMessage <= 0 {
		return msg
	}

	over := runeLen(msg) - lim.MaxMessage
	if over <= 0 {
		return msg
	}
	if keep := runeLen(s.Output) - over - len(ellipsis); keep > 0 {
		s.Output = TruncateTail(s.Output, keep+len(ellipsis))
		msg = joinSections(s)
	}
	return TruncateHead(msg, lim.MaxMessage)
}

func joinSections(s Sections) string {
	fence := "```"
	out := strings.ReplaceAll(s.Output, fence, "'''")
	tree := strings.ReplaceAll(s.Tree, fence, "'''")
	return fence + "\n" + tree + "\n" + fence + "\n" + fence + "\n" + out + "\n" + fence + "\n" + s.Summary
}

// Summary returns the status block shown under the tree and output.
func Summary(f execute.Frame, lim Limits) string {
	var b strings.Builder
	b.WriteString("📋 Summary\n")
	fmt.Fprintf(&b, "Status: %s\n", StatusText(f, lim.Timeout))
	fmt.Fprintf(&b, "Prompt: %s\n", TruncateHead(oneLine(f.Prompt), lim.MaxPrompt))
	model := f.Model
	if model == "" {
		model = "default"
	}
	fmt.Fprintf(&b, "Model: %s\n", model)
	fmt.Fprintf(&b, "Files: %d | Dirs: %d\n", f.Files, f.Dirs)
	fmt.Fprintf(&b, "Elapsed: %s", report.FormatDuration(f.Elapsed))
	switch {
	case f.RepoURL != "":
		fmt.Fprintf(&b, "\nRepository: %s", f.RepoURL)
	case f.Publish != "":
		fmt.Fprintf(&b, "\nPublish: %s", f.Publish)
	}
	return b.String()
}

// StatusText describes the frame's state in one line.
func StatusText(f execute.Frame, timeout time.Duration) string {
	switch f.State {
	case execute.StateCompleted:
		return "✅ COMPLETED SUCCESSFULLY"
	case execute.StateTimedOut:
		if timeout > 0 {
			return "⏰ TIMED OUT - process was killed after " + report.FormatDuration(timeout)
		}
		return "⏰ TIMED OUT"
	case execute.StateCancelled:
		return "🛑 CANCELLED"
	case execute.StateFailed:
		if f.ExitCode > 0 {
			return fmt.Sprintf("⚠️ COMPLETED WITH EXIT CODE %d", f.ExitCode)
		}
		msg := f.Error
		if msg == "" {
			msg = "unknown error"
		}
		return "❌ ERROR: " + TruncateHead(msg, 100)
	default:
		return "🔄 IN PROGRESS"
	}
}

// TruncateHead keeps the first max characters of s, ending in "..." when
// anything was cut. max <= 0 means no limit.
func TruncateHead(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(r[:max])
	}
	return string(r[:max-len(ellipsis)]) + ellipsis
}

// TruncateTail keeps the last max characters of s, starting with "..."
// when anything was cut. max <= 0 means no limit.
func TruncateTail(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(r[len(r)-max:])
	}
	return ellipsis + string(r[len(r)-(max-len(ellipsis)):])
}

func runeLen(s string) int { return len([]rune(s)) }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
