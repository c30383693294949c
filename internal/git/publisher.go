// publisher.go turns a finished work dir into a hosted repository.
package git

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/berth-dev/slipway/prompts"
)

const defaultPublishTimeout = 2 * time.Minute

// Publisher creates a repository from a work dir and pushes it.
type Publisher struct {
	Owner   string
	Private bool
	Timeout time.Duration // bounds the whole publish; 0 means two minutes

	logger *zap.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(owner string, private bool, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{Owner: owner, Private: private, logger: logger}
}

// Publish commits everything in dir and pushes it to a new repository
// called name. It is not retried; the caller decides what a failure means.
func (p *Publisher) Publish(ctx context.Context, dir, name, description string) (string, error) {
	if err := ensureGit(); err != nil {
		return "", err
	}
	if err := ensureGH(); err != nil {
		return "", err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := EnsureRepo(ctx, dir); err != nil {
		return "", err
	}
	if seeded, err := SeedGitignore(dir, prompts.GitIgnore); err != nil {
		p.logger.Warn("seed .gitignore", zap.String("dir", dir), zap.Error(err))
	} else if seeded {
		p.logger.Debug("seeded .gitignore", zap.String("dir", dir))
	}
	if err := CommitAll(ctx, dir, "Initial commit"); err != nil {
		return "", fmt.Errorf("commit project: %w", err)
	}

	opts := RepoOptions{Owner: p.Owner, Name: name, Description: description, Private: p.Private}
	url, err := CreateRepo(ctx, dir, opts)
	if err != nil {
		return "", fmt.Errorf("create repository %s: %w", opts.FullName(), err)
	}
	p.logger.Info("repository created", zap.String("repo", opts.FullName()), zap.String("url", url))
	return url, nil
}
