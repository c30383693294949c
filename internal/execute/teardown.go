// teardown.go runs the best-effort steps after a build reaches a terminal
// state: write the run record, publish, clean up, remember.
package execute

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/berth-dev/slipway/internal/history"
	eventlog "github.com/berth-dev/slipway/internal/log"
	"github.com/berth-dev/slipway/internal/report"
)

// teardown never changes the session's state; failures here are logged and
// surfaced on the Result.
func (r *Runner) teardown(ctx context.Context, sess *BuildSession, snap TreeSnapshot, logger *zap.Logger) *Result {
	st := sess.Status()
	res := &Result{
		SessionID: sess.ID(),
		WorkDir:   sess.WorkDir(),
		Status:    st,
		Output:    sess.Output(),
	}

	rec := report.Record{
		SessionID: sess.ID(),
		Owner:     sess.req.Owner,
		Prompt:    sess.req.Prompt,
		Model:     sess.req.Model,
		State:     st.State.String(),
		ExitCode:  st.ExitCode,
		StartedAt: st.StartedAt,
		EndedAt:   st.EndedAt,
		Files:     snap.Files,
		Dirs:      snap.Dirs,
		Tree:      snap.Tree,
		Output:    res.Output,
	}
	if st.Err != nil {
		rec.Error = st.Err.Error()
	}
	// Written before publishing so the record is part of the pushed repo.
	res.RecordPath = r.writeRecord(sess.WorkDir(), rec, logger)

	if st.State == StateCompleted && r.cfg.Publish && r.deps.Publisher != nil {
		r.publish(ctx, sess, res, logger)
	}

	if res.RepoURL != "" && r.cfg.CleanupAfterPublish {
		if err := os.RemoveAll(sess.WorkDir()); err != nil {
			logger.Warn("remove work dir after publish", zap.Error(err))
		} else {
			res.Cleaned = true
			res.RecordPath = ""
		}
	}

	if !res.Cleaned && (res.RepoURL != "" || res.PublishErr != nil) {
		rec.RepoURL = res.RepoURL
		if res.PublishErr != nil {
			rec.PublishError = res.PublishErr.Error()
		}
		res.RecordPath = r.writeRecord(sess.WorkDir(), rec, logger)
	}

	r.remember(sess, res, logger)

	ev := eventlog.LogEvent{
		Event:      eventlog.EventBuildFinished,
		SessionID:  res.SessionID,
		WorkDir:    res.WorkDir,
		State:      st.State.String(),
		ExitCode:   st.ExitCode,
		DurationMs: st.Elapsed(st.EndedAt).Milliseconds(),
	}
	if st.Err != nil {
		ev.Error = st.Err.Error()
	}
	r.journal(ev)
	return res
}

func (r *Runner) writeRecord(dir string, rec report.Record, logger *zap.Logger) string {
	path, err := report.WriteRecord(dir, rec)
	if err != nil {
		logger.Warn("write run record", zap.Error(err))
	}
	return path
}

// publish hands the work dir to the publisher exactly once.
func (r *Runner) publish(ctx context.Context, sess *BuildSession, res *Result, logger *zap.Logger) {
	name, desc := "project-"+sess.ID()[:8], ""
	if r.deps.Namer != nil {
		name, desc = r.deps.Namer.Suggest(ctx, sess.req.Prompt)
	}
	res.RepoName = name

	url, err := r.deps.Publisher.Publish(ctx, sess.WorkDir(), name, desc)
	if err != nil {
		res.PublishErr = err
		logger.Warn("publish failed", zap.String("repo", name), zap.Error(err))
		r.journal(eventlog.LogEvent{Event: eventlog.EventPublishFailed, SessionID: sess.ID(), Repo: name, Error: err.Error()})
		return
	}
	res.RepoURL = url
	logger.Info("published", zap.String("repo", name), zap.String("url", url))
	r.journal(eventlog.LogEvent{Event: eventlog.EventPublishFinished, SessionID: sess.ID(), Repo: name, URL: url})
}

func (r *Runner) remember(sess *BuildSession, res *Result, logger *zap.Logger) {
	if r.deps.History == nil {
		return
	}
	b := history.Build{
		ID:        res.SessionID,
		Owner:     sess.req.Owner,
		Prompt:    sess.req.Prompt,
		Model:     sess.req.Model,
		WorkDir:   res.WorkDir,
		State:     res.Status.State.String(),
		ExitCode:  res.Status.ExitCode,
		RepoURL:   res.RepoURL,
		StartedAt: res.Status.StartedAt,
		EndedAt:   res.Status.EndedAt,
	}
	if res.PublishErr != nil {
		b.PublishError = res.PublishErr.Error()
	}
	if err := r.deps.History.RecordBuild(b); err != nil {
		logger.Warn("record build history", zap.Error(err))
	}
}
