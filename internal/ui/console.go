// console.go draws build frames on a terminal or writes them as a plain
// stream when output is piped.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"

	"github.com/berth-dev/slipway/internal/execute"
	"github.com/berth-dev/slipway/internal/report"
)

// Mode selects how a ConsoleSink draws frames.
type Mode int

const (
	ModeAuto    Mode = iota // live on a terminal, stream otherwise
	ModeLive                // redraw one status view in place
	ModeStream              // print new output and state changes only
	ModeMessage             // print every frame as a full message
)

// ParseMode parses "auto", "live", "stream" or "message".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "live":
		return ModeLive, nil
	case "stream":
		return ModeStream, nil
	case "message":
		return ModeMessage, nil
	default:
		return ModeAuto, fmt.Errorf("unknown output mode %q (want auto, live, stream or message)", s)
	}
}

const defaultWidth = 100

// ConsoleSink is an execute.RenderSink that writes to a terminal or pipe.
// One sink serves one build.
type ConsoleSink struct {
	mu    sync.Mutex
	out   io.Writer
	mode  Mode
	lim   Limits
	width int

	spin       spinner.Spinner
	tick       int
	linesDrawn int

	// stream mode
	started     bool
	printed     int
	lastState   execute.State
	lastPublish string
}

// NewConsoleSink creates a sink writing to out. ModeAuto resolves to
// ModeLive only when out is a terminal.
func NewConsoleSink(out io.Writer, mode Mode, lim Limits) *ConsoleSink {
	isTTY, width := false, defaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		isTTY = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	if mode == ModeAuto {
		mode = ModeStream
		if isTTY {
			mode = ModeLive
		}
	}
	return &ConsoleSink{
		out:   out,
		mode:  mode,
		lim:   lim,
		width: width,
		spin:  spinner.MiniDot,
	}
}

// Mode returns the resolved mode.
func (c *ConsoleSink) Mode() Mode { return c.mode }

// Render implements execute.RenderSink.
func (c *ConsoleSink) Render(_ context.Context, f execute.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ModeLive:
		return c.renderLive(f)
	case ModeMessage:
		_, err := fmt.Fprintf(c.out, "%s\n\n", FormatFrame(f, c.lim))
		return err
	default:
		return c.renderStream(f)
	}
}

// renderLive redraws the status view in place using ANSI cursor movement.
// Every line is cut to the terminal width so the line count stays exact.
func (c *ConsoleSink) renderLive(f execute.Frame) error {
	s := Layout(f, c.lim)

	icon := "●"
	if !f.State.Terminal() {
		icon = c.spin.Frames[c.tick%len(c.spin.Frames)]
		c.tick++
	}
	header := TitleStyle.Render("slipway") + " " +
		StateStyle(f.State).Render(icon+" "+f.State.String()) + " " +
		DimStyle.Render(report.FormatDuration(f.Elapsed))

	var b strings.Builder
	b.WriteString(header + "\n")
	b.WriteString(sectionStyle.Render(s.Tree) + "\n")
	b.WriteString(sectionStyle.Render(s.Output) + "\n")
	b.WriteString(s.Summary)

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = truncate.String(line, uint(c.width))
	}

	var out strings.Builder
	if c.linesDrawn > 0 {
		fmt.Fprintf(&out, "\033[%dA\033[J", c.linesDrawn)
	}
	out.WriteString(strings.Join(lines, "\n"))
	out.WriteString("\n")
	c.linesDrawn = len(lines)

	_, err := io.WriteString(c.out, out.String())
	return err
}

// renderStream prints only what is new since the last frame: output bytes,
// state changes, the final summary and the publish outcome.
func (c *ConsoleSink) renderStream(f execute.Frame) error {
	var b strings.Builder
	if !c.started {
		c.started = true
		fmt.Fprintf(&b, "==> build %s in %s\n", shortID(f.SessionID), f.WorkDir)
	}
	if len(f.Output) > c.printed {
		b.WriteString(f.Output[c.printed:])
		c.printed = len(f.Output)
	}
	if f.State != c.lastState {
		c.lastState = f.State
		if f.State.Terminal() {
			if c.printed > 0 && !strings.HasSuffix(f.Output, "\n") {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "==> %s\n%s\n", f.State, Summary(f, c.lim))
			c.lastPublish = f.Publish
		} else if f.State == execute.StateRunning {
			b.WriteString("==> running\n")
		}
	}
	if f.Publish != "" && f.Publish != c.lastPublish {
		c.lastPublish = f.Publish
		fmt.Fprintf(&b, "==> %s\n", f.Publish)
	}

	if b.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(c.out, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
