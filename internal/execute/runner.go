// runner.go drives a build session from work dir creation to teardown.
package execute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/berth-dev/slipway/internal/history"
	eventlog "github.com/berth-dev/slipway/internal/log"
	"github.com/berth-dev/slipway/internal/report"
)

var (
	ErrTooManyBuilds  = errors.New("too many builds running")
	ErrAlreadyStarted = errors.New("build session already started")
)

// RunnerConfig holds the tunables for every build a Runner starts.
type RunnerConfig struct {
	ProjectsDir         string
	Timeout             time.Duration
	RenderInterval      time.Duration
	ElapsedStep         time.Duration // frame elapsed time is truncated to this
	KillGrace           time.Duration
	DrainGrace          time.Duration // how long to wait for output after exit
	ProgressLogInterval time.Duration
	SuffixLength        int
	Command             CommandConfig

	Publish             bool
	CleanupAfterPublish bool
}

// Publisher hands a finished work dir to version control hosting. It is
// called at most once per session and never retried here.
type Publisher interface {
	Publish(ctx context.Context, dir, name, description string) (url string, err error)
}

// Namer suggests a repository name and description for a prompt.
type Namer interface {
	Suggest(ctx context.Context, prompt string) (name, description string)
}

// TreeSnapshot summarises a work dir for display.
type TreeSnapshot struct {
	Tree  string
	Files int
	Dirs  int
}

// TreeView is a live view of one work dir.
type TreeView interface {
	Snapshot() TreeSnapshot
	Close() error
}

// TreeSource opens a TreeView on dir.
type TreeSource func(dir string) (TreeView, error)

// Recorder stores a summary of every finished build.
type Recorder interface {
	RecordBuild(b history.Build) error
}

// Deps are the collaborators a Runner uses. Spawner, Registry and Limiter
// are required; the rest may be nil.
type Deps struct {
	Spawner   Spawner
	Registry  *Registry
	Limiter   *Limiter
	Publisher Publisher
	Namer     Namer
	Trees     TreeSource
	History   Recorder
	Journal   *eventlog.Logger
	Logger    *zap.Logger
}

// Result is what Run reports once teardown is over.
type Result struct {
	SessionID  string
	WorkDir    string
	Status     Status
	Output     string
	RecordPath string
	RepoName   string
	RepoURL    string
	PublishErr error // set when the build completed but publishing failed
	Cleaned    bool  // work dir removed after a confirmed publish
}

// PartialSuccess reports a completed build whose publish step failed.
func (r *Result) PartialSuccess() bool {
	return r.Status.State == StateCompleted && r.PublishErr != nil
}

// Runner creates and runs build sessions. A Runner is safe for concurrent
// use; sessions share nothing but the registry and the limiter.
type Runner struct {
	cfg    RunnerConfig
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Spawner == nil {
		deps.Spawner = ExecSpawner{}
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = 2 * time.Second
	}
	if cfg.ElapsedStep <= 0 {
		cfg.ElapsedStep = time.Second
	}
	if cfg.ProgressLogInterval <= 0 {
		cfg.ProgressLogInterval = 30 * time.Second
	}
	return &Runner{cfg: cfg, deps: deps, logger: deps.Logger, now: time.Now}
}

// Start admits a build and creates its work dir. The returned session is
// Pending and holds a limiter slot until it is passed to Run, which every
// caller must do.
func (r *Runner) Start(ctx context.Context, req Request) (*BuildSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.deps.Limiter.TryAcquire() {
		return nil, fmt.Errorf("%w (%s)", ErrTooManyBuilds, r.deps.Limiter.Progress())
	}

	now := r.now()
	dir, err := CreateWorkDir(r.cfg.ProjectsDir, req.Owner, now, r.cfg.SuffixLength)
	if err != nil {
		r.deps.Limiter.Release()
		return nil, err
	}

	sess := newBuildSession(uuid.NewString(), dir, req, r.now)
	if err := report.WritePrompt(dir, req.Prompt); err != nil {
		r.logger.Warn("write prompt file", zap.String("work_dir", dir), zap.Error(err))
	}
	return sess, nil
}

// Run drives sess to a terminal state, then tears it down. Frames are sent
// to sink while the generator runs, once more after it stops, and once after
// publishing when a publish was attempted. The returned error is only for
// misuse; build failures are reported through Result.Status.
func (r *Runner) Run(ctx context.Context, sess *BuildSession, sink RenderSink) (*Result, error) {
	if !sess.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	defer r.deps.Limiter.Release()
	if sink == nil {
		sink = RenderFunc(func(context.Context, Frame) error { return nil })
	}

	logger := r.logger.With(zap.String("session_id", sess.ID()), zap.String("work_dir", sess.WorkDir()))
	r.journal(eventlog.LogEvent{Event: eventlog.EventBuildStarted, SessionID: sess.ID(), WorkDir: sess.WorkDir(), Model: sess.req.Model})

	view := r.openTree(sess.WorkDir(), logger)
	frame := r.frameSource(sess, view)

	if sess.cancelRequested() || ctx.Err() != nil {
		sess.transition(StateCancelled, nil)
		r.renderOnce(ctx, sink, frame(), logger)
	} else if proc, err := r.spawn(ctx, sess); err != nil {
		logger.Warn("spawn generator", zap.Error(err))
		sess.fail(&ErrorDetail{Kind: ErrorSpawn, Message: err.Error(), ExitCode: -1})
		r.renderOnce(ctx, sink, frame(), logger)
	} else {
		r.supervise(ctx, sess, proc, sink, frame, logger)
	}

	snap := TreeSnapshot{}
	if view != nil {
		snap = view.Snapshot()
		if err := view.Close(); err != nil {
			logger.Debug("close tree view", zap.Error(err))
		}
	}

	res := r.teardown(ctx, sess, snap, logger)
	r.deps.Limiter.Record(res.Status.State)

	if res.RepoURL != "" || res.PublishErr != nil {
		f := frame()
		f.RepoURL = res.RepoURL
		f.Publish = publishNote(res)
		r.renderOnce(ctx, sink, f, logger)
	}
	return res, nil
}

// spawn starts the generator and registers it before any output is read.
func (r *Runner) spawn(ctx context.Context, sess *BuildSession) (Process, error) {
	spec := r.cfg.Command.Spec(sess.WorkDir(), sess.req)
	return r.deps.Spawner.Spawn(ctx, spec)
}

// supervise runs the drain and render tasks against a spawned process and
// waits for the outcome.
func (r *Runner) supervise(ctx context.Context, sess *BuildSession, proc Process, sink RenderSink, frame func() Frame, logger *zap.Logger) {
	tok := r.deps.Registry.RegisterSession(proc, sess)
	sess.transition(StateRunning, nil)
	logger.Info("generator started", zap.Int("pid", proc.Pid()))
	r.journal(eventlog.LogEvent{Event: eventlog.EventBuildRunning, SessionID: sess.ID(), Pid: proc.Pid()})

	drained := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(drained)
		if err := drain(proc.Output(), &sess.output, logger); err != nil {
			logger.Warn("read generator output", zap.Error(err))
		}
		return nil
	})
	renderer := NewRenderer(r.cfg.RenderInterval, sink, frame, logger)
	g.Go(func() error {
		renderer.Run(ctx, sess.Done())
		return nil
	})

	next, detail := r.await(ctx, sess, proc, logger)
	r.finish(sess, proc, tok, drained, next, detail, logger)
	_ = g.Wait()
}

// await blocks until the process exits, the deadline passes, or the build
// is cancelled. A timeout beats everything else, and a pending cancellation
// beats an exit observed after it.
func (r *Runner) await(ctx context.Context, sess *BuildSession, proc Process, logger *zap.Logger) (State, *ErrorDetail) {
	start := time.Now()
	deadline := start.Add(r.cfg.Timeout)
	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()
	progress := time.NewTicker(r.cfg.ProgressLogInterval)
	defer progress.Stop()

	for {
		select {
		case <-proc.Done():
			return classifyExit(proc, !time.Now().Before(deadline), sess.cancelRequested() || ctx.Err() != nil)
		case <-timer.C:
			logger.Warn("generator timed out", zap.Duration("timeout", r.cfg.Timeout))
			return StateTimedOut, nil
		case <-sess.cancelCh:
			if !time.Now().Before(deadline) {
				return StateTimedOut, nil
			}
			logger.Info("build cancelled")
			return StateCancelled, nil
		case <-ctx.Done():
			sess.Cancel()
			if !time.Now().Before(deadline) {
				return StateTimedOut, nil
			}
			logger.Info("build cancelled", zap.Error(ctx.Err()))
			return StateCancelled, nil
		case <-progress.C:
			logger.Info("build in progress",
				zap.Duration("elapsed", time.Since(start).Round(time.Second)),
				zap.Int("output_bytes", sess.output.Len()))
		}
	}
}

// classifyExit maps an observed exit to a terminal state.
func classifyExit(proc Process, pastDeadline, cancelled bool) (State, *ErrorDetail) {
	switch {
	case pastDeadline:
		return StateTimedOut, nil
	case cancelled:
		return StateCancelled, nil
	}
	if err := proc.WaitErr(); err != nil {
		return StateFailed, &ErrorDetail{Kind: ErrorWait, Message: err.Error(), ExitCode: -1}
	}
	if code := proc.ExitCode(); code != 0 {
		return StateFailed, &ErrorDetail{Kind: ErrorExit, Message: fmt.Sprintf("exit status %d", code), ExitCode: code}
	}
	return StateCompleted, nil
}

// finish is the single exit path for a spawned process: stop it if it is
// still alive, drop it from the registry, collect the remaining output and
// only then publish the terminal state.
func (r *Runner) finish(sess *BuildSession, proc Process, tok Token, drained <-chan struct{}, next State, detail *ErrorDetail, logger *zap.Logger) {
	if err := Terminate(proc, r.cfg.KillGrace); err != nil {
		logger.Error("terminate generator", zap.Int("pid", proc.Pid()), zap.Error(err))
	}
	r.deps.Registry.Unregister(tok)

	// A grandchild may still hold the pipe open; stop waiting eventually.
	timer := time.NewTimer(r.cfg.DrainGrace)
	select {
	case <-drained:
	case <-timer.C:
		logger.Warn("output still open after exit", zap.Duration("waited", r.cfg.DrainGrace))
		_ = proc.Output().Close()
		<-drained
	}
	timer.Stop()
	_ = proc.Output().Close()

	if detail != nil {
		sess.fail(detail)
	} else {
		sess.transition(next, func(st *Status) {
			if next == StateCompleted {
				st.ExitCode = 0
			}
		})
	}
	st := sess.Status()
	logger.Info("generator finished",
		zap.String("state", st.State.String()),
		zap.Int("exit_code", st.ExitCode),
		zap.Duration("elapsed", st.Elapsed(st.EndedAt)))
}

func (r *Runner) openTree(dir string, logger *zap.Logger) TreeView {
	if r.deps.Trees == nil {
		return nil
	}
	view, err := r.deps.Trees(dir)
	if err != nil {
		logger.Warn("watch work dir", zap.Error(err))
		return nil
	}
	return view
}

// frameSource returns the function the renderer samples.
func (r *Runner) frameSource(sess *BuildSession, view TreeView) func() Frame {
	return func() Frame {
		st := sess.Status()
		f := Frame{
			SessionID: sess.ID(),
			WorkDir:   sess.WorkDir(),
			Prompt:    sess.req.Prompt,
			Model:     sess.req.Model,
			State:     st.State,
			ExitCode:  st.ExitCode,
			Elapsed:   st.Elapsed(r.now()).Truncate(r.cfg.ElapsedStep),
			Output:    sess.Output(),
		}
		if st.Err != nil {
			f.Error = st.Err.Error()
		}
		if view != nil {
			snap := view.Snapshot()
			f.Tree, f.Files, f.Dirs = snap.Tree, snap.Files, snap.Dirs
		}
		return f
	}
}

func (r *Runner) renderOnce(ctx context.Context, sink RenderSink, f Frame, logger *zap.Logger) {
	if err := sink.Render(context.WithoutCancel(ctx), f); err != nil {
		logger.Warn("render status", zap.String("state", f.State.String()), zap.Error(err))
	}
}

func (r *Runner) journal(e eventlog.LogEvent) {
	if r.deps.Journal == nil {
		return
	}
	if err := r.deps.Journal.Append(e); err != nil {
		r.logger.Warn("append journal event", zap.String("event", e.Event), zap.Error(err))
	}
}

func publishNote(res *Result) string {
	switch {
	case res.RepoURL != "":
		return "published " + res.RepoURL
	case res.PublishErr != nil:
		return "publish failed: " + res.PublishErr.Error()
	default:
		return ""
	}
}
