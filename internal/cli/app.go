// app.go wires the configured components shared by the commands.
package cli

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/berth-dev/slipway/internal/assistant"
	"github.com/berth-dev/slipway/internal/config"
	"github.com/berth-dev/slipway/internal/execute"
	"github.com/berth-dev/slipway/internal/git"
	"github.com/berth-dev/slipway/internal/history"
	eventlog "github.com/berth-dev/slipway/internal/log"
	"github.com/berth-dev/slipway/internal/tree"
	"github.com/berth-dev/slipway/internal/ui"
	"github.com/berth-dev/slipway/prompts"
)

// app holds what one command invocation needs. Nothing here is global:
// each command builds its own and closes it when done.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	journal *eventlog.Logger
	history *history.Store

	registry *execute.Registry
	limiter  *execute.Limiter
}

// loadConfig reads the config for the working directory and applies the
// --projects-dir override. Relative projects dirs resolve against the
// working directory.
func loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := config.Load(dir, configPath)
	if err != nil {
		return nil, err
	}
	if projectsDir != "" {
		cfg.ProjectsDir = projectsDir
	}
	if !filepath.IsAbs(cfg.ProjectsDir) {
		cfg.ProjectsDir = filepath.Join(dir, cfg.ProjectsDir)
	}
	return cfg, nil
}

// newApp loads the config and opens the journal and history store.
func newApp(logger *zap.Logger) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ProjectsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating projects dir: %w", err)
	}

	journal, err := eventlog.NewLogger(cfg.ProjectsDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		journal:  journal,
		registry: execute.NewRegistry(cfg.KillGrace(), logger),
		limiter:  execute.NewLimiter(cfg.Build.MaxParallel),
	}

	store, err := history.NewStore(filepath.Join(cfg.StateDir(), "history.db"))
	if err != nil {
		// History is informational; builds run without it.
		logger.Warn("open history store", zap.Error(err))
	} else {
		a.history = store
	}
	return a, nil
}

// Close releases the history store.
func (a *app) Close() {
	if a.history == nil {
		return
	}
	if err := a.history.Close(); err != nil {
		a.logger.Warn("close history store", zap.Error(err))
	}
}

// completer returns the configured language model, or nil when none is.
func (a *app) completer() assistant.Completer {
	c, err := assistant.NewClient(a.cfg.Assistant, a.logger)
	if err != nil {
		if !errors.Is(err, assistant.ErrNotConfigured) {
			a.logger.Warn("assistant client", zap.Error(err))
		}
		return nil
	}
	return c
}

// commandConfig maps build settings onto the generator invocation.
func (a *app) commandConfig() execute.CommandConfig {
	b := a.cfg.Build
	tmpl := b.Template
	switch strings.TrimSpace(tmpl) {
	case "":
		tmpl = prompts.BuildPreamble
	case "none":
		tmpl = ""
	}
	return execute.CommandConfig{
		Command:        b.Command,
		Flags:          b.Flags,
		PromptFlag:     b.PromptFlag,
		ModelFlag:      b.ModelFlag,
		Template:       tmpl,
		PromptViaStdin: b.PromptVia == "stdin",
	}
}

// publishOptions are the per-invocation publish overrides.
type publishOptions struct {
	enabled bool
	owner   string
}

// runner builds an execute.Runner over the app's registry and limiter.
func (a *app) runner(pub publishOptions) *execute.Runner {
	rc := execute.RunnerConfig{
		ProjectsDir:         a.cfg.ProjectsDir,
		Timeout:             a.cfg.BuildTimeout(),
		RenderInterval:      a.cfg.RenderInterval(),
		ElapsedStep:         a.cfg.ElapsedStep(),
		KillGrace:           a.cfg.KillGrace(),
		DrainGrace:          2 * time.Second,
		ProgressLogInterval: a.cfg.ProgressLogInterval(),
		SuffixLength:        a.cfg.Build.UniqueIDLength,
		Command:             a.commandConfig(),
		Publish:             pub.enabled,
		CleanupAfterPublish: a.cfg.Publish.CleanupAfterPush,
	}
	deps := execute.Deps{
		Spawner:  execute.ExecSpawner{},
		Registry: a.registry,
		Limiter:  a.limiter,
		Trees: tree.Source(tree.Options{
			MaxDepth:       a.cfg.Render.TreeDepth,
			MaxFilesInline: a.cfg.Render.MaxFilesInline,
		}, a.logger),
		Journal: a.journal,
		Logger:  a.logger,
	}
	if a.history != nil {
		deps.History = a.history
	}
	if pub.enabled {
		owner := pub.owner
		if owner == "" {
			owner = a.cfg.Publish.Owner
		}
		deps.Publisher = git.NewPublisher(owner, a.cfg.Publish.Private, a.logger)
		deps.Namer = assistant.NewNamer(a.completer(), a.logger)
	}
	return execute.NewRunner(rc, deps)
}

// limits maps render settings onto the console layout.
func (a *app) limits() ui.Limits {
	lim := ui.DefaultLimits()
	r := a.cfg.Render
	if r.MaxMessageLength > 0 {
		lim.MaxMessage = r.MaxMessageLength
	}
	if r.MaxTreeLength > 0 {
		lim.MaxTree = r.MaxTreeLength
	}
	if r.MaxOutputLength > 0 {
		lim.MaxOutput = r.MaxOutputLength
	}
	lim.Timeout = a.cfg.BuildTimeout()
	return lim
}

// shutdown kills any generator still registered. It runs after the root
// context is cancelled, so sessions have already been marked cancelled.
func (a *app) shutdown() {
	n := a.registry.KillAll()
	if n == 0 {
		return
	}
	a.logger.Warn("killed remaining generators", zap.Int("count", n))
	if err := a.journal.Append(eventlog.LogEvent{Event: eventlog.EventShutdownKillAll, Count: n}); err != nil {
		a.logger.Warn("journal append", zap.Error(err))
	}
}

// currentOwner names the local user for work dir names.
func currentOwner() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "local"
}
