// registry.go tracks every live generator so shutdown can stop them all.
package execute

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Token identifies one registration.
type Token uint64

type registration struct {
	proc      Process
	sessionID string
	since     time.Time
	cancel    func() // marks the owning build cancelled; may be nil
}

// Registry is the table of generator processes believed alive. Its size is
// the authoritative active build count.
type Registry struct {
	mu      sync.Mutex
	next    Token
	entries map[Token]registration

	grace  time.Duration
	logger *zap.Logger
}

// NewRegistry creates an empty Registry. grace bounds each termination phase
// in KillAll.
func NewRegistry(grace time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[Token]registration),
		grace:   grace,
		logger:  logger,
	}
}

// Register adds p and returns the token to unregister it with.
func (r *Registry) Register(p Process, sessionID string) Token {
	return r.add(registration{proc: p, sessionID: sessionID})
}

// RegisterSession adds the process running sess. KillAll cancels sess
// before stopping p, so a build killed at shutdown ends as cancelled
// whichever way the kill was triggered.
func (r *Registry) RegisterSession(p Process, sess *BuildSession) Token {
	return r.add(registration{proc: p, sessionID: sess.ID(), cancel: sess.Cancel})
}

func (r *Registry) add(e registration) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	e.since = time.Now()
	r.entries[r.next] = e
	return r.next
}

// Unregister removes tok. Unknown or already removed tokens are ignored.
func (r *Registry) Unregister(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, tok)
}

// ActiveCount returns the number of registered processes.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sessions returns the session IDs of registered processes, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		ids = append(ids, e.sessionID)
	}
	sort.Strings(ids)
	return ids
}

// KillAll terminates every process registered when the call began, in
// parallel, and unregisters each one even if termination failed. Processes
// registered after the snapshot is taken are left running. Returns the
// number of processes it handled.
func (r *Registry) KillAll() int {
	r.mu.Lock()
	snapshot := make(map[Token]registration, len(r.entries))
	for tok, e := range r.entries {
		snapshot[tok] = e
	}
	r.mu.Unlock()

	var g errgroup.Group
	for tok, e := range snapshot {
		tok, e := tok, e
		g.Go(func() error {
			defer r.Unregister(tok)
			if e.cancel != nil {
				e.cancel()
			}
			if err := Terminate(e.proc, r.grace); err != nil {
				r.logger.Warn("terminate generator",
					zap.String("session_id", e.sessionID),
					zap.Int("pid", e.proc.Pid()),
					zap.Duration("age", time.Since(e.since)),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(snapshot) > 0 {
		r.logger.Info("killed all generators", zap.Int("count", len(snapshot)))
	}
	return len(snapshot)
}
