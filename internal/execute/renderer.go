// renderer.go periodically pushes session snapshots to a render sink.
package execute

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Frame is everything a sink needs to draw one status update. It is
// comparable so unchanged frames can be skipped with ==.
type Frame struct {
	SessionID string
	WorkDir   string
	Prompt    string
	Model     string
	State     State
	ExitCode  int
	Error     string
	Elapsed   time.Duration // truncated by the frame source
	Output    string
	Tree      string
	Files     int
	Dirs      int
	RepoURL   string
	Publish   string // publish outcome note, empty while running
}

// RenderSink displays frames to the requester. It must tolerate being called
// repeatedly with the same frame.
type RenderSink interface {
	Render(ctx context.Context, f Frame) error
}

// RenderFunc adapts a function to RenderSink.
type RenderFunc func(ctx context.Context, f Frame) error

func (fn RenderFunc) Render(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Renderer samples a frame source every interval and forwards changed
// frames to a sink.
type Renderer struct {
	interval time.Duration
	sink     RenderSink
	frame    func() Frame
	logger   *zap.Logger

	last    Frame
	hasLast bool
	renders atomic.Int64
}

// NewRenderer creates a Renderer. frame is called from the renderer's
// goroutine only.
func NewRenderer(interval time.Duration, sink RenderSink, frame func() Frame, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Renderer{interval: interval, sink: sink, frame: frame, logger: logger}
}

// Run renders once immediately, then every interval while the frame differs
// from the last one sent. When done closes it renders one last time
// unconditionally and returns. Sink errors are logged and never stop the
// loop. Cancelling ctx does not stop Run; only done does.
func (r *Renderer) Run(ctx context.Context, done <-chan struct{}) {
	ctx = context.WithoutCancel(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.render(ctx, false)
	for {
		select {
		case <-done:
			r.render(ctx, true)
			return
		case <-ticker.C:
			r.render(ctx, false)
		}
	}
}

// Renders returns how many times the sink was called. It is safe to call
// while Run is in progress.
func (r *Renderer) Renders() int { return int(r.renders.Load()) }

func (r *Renderer) render(ctx context.Context, force bool) {
	f := r.frame()
	if !force && r.hasLast && f == r.last {
		return
	}
	r.last, r.hasLast = f, true
	r.renders.Add(1)
	if err := r.sink.Render(ctx, f); err != nil {
		r.logger.Warn("render status",
			zap.String("session_id", f.SessionID),
			zap.String("state", f.State.String()),
			zap.Error(err))
	}
}
