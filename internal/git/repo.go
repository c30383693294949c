// Package git wraps the git and gh command lines used to publish finished
// builds. Every command runs inside an explicit directory.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrGitNotFound = errors.New("git not found in PATH")
	ErrGHNotFound  = errors.New("gh CLI not found in PATH; install GitHub CLI first")
	ErrNoChanges   = errors.New("no changes to commit")
)

// Fallback identity for machines where git has none configured.
const (
	fallbackName  = "slipway"
	fallbackEmail = "slipway@localhost"
)

// ensureGit checks that git is available in PATH.
func ensureGit() error {
	_, err := exec.LookPath("git")
	if err != nil {
		return ErrGitNotFound
	}
	return nil
}

// run executes name with args in dir and returns trimmed combined output.
// Errors carry the command line and its output.
func run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("%s %s: %s: %w", name, strings.Join(args, " "), text, err)
	}
	return text, nil
}

// EnsureRepo runs `git init` in dir unless dir is already the top of a repository.
func EnsureRepo(ctx context.Context, dir string) error {
	if err := ensureGit(); err != nil {
		return err
	}
	top, err := run(ctx, dir, "git", "rev-parse", "--show-toplevel")
	if err == nil && sameDir(top, dir) {
		return nil
	}
	_, err = run(ctx, dir, "git", "init")
	return err
}

// CurrentBranch returns the checked-out branch of the repository in dir.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	if err := ensureGit(); err != nil {
		return "", err
	}
	return run(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
}
