// gh.go creates hosted repositories via the gh CLI.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ensureGH checks that the GitHub CLI (gh) is available in PATH.
func ensureGH() error {
	_, err := exec.LookPath("gh")
	if err != nil {
		return ErrGHNotFound
	}
	return nil
}

// RepoOptions describe a repository to create.
type RepoOptions struct {
	Owner       string // org or user; empty means the authenticated user
	Name        string
	Description string
	Private     bool
}

// FullName returns "owner/name", or just the name without an owner.
func (o RepoOptions) FullName() string {
	if o.Owner == "" {
		return o.Name
	}
	return o.Owner + "/" + o.Name
}

// CreateRepoArgs builds the gh arguments that create the repository from
// dir and push its current branch.
func CreateRepoArgs(dir string, o RepoOptions) []string {
	visibility := "--public"
	if o.Private {
		visibility = "--private"
	}
	args := []string{"repo", "create", o.FullName(), visibility}
	if o.Description != "" {
		args = append(args, "--description", o.Description)
	}
	return append(args, "--source", dir, "--remote", "origin", "--push")
}

// CreateRepo creates the repository and pushes dir to it. Returns the URL
// gh reports.
func CreateRepo(ctx context.Context, dir string, o RepoOptions) (string, error) {
	if err := ensureGH(); err != nil {
		return "", err
	}
	out, err := run(ctx, dir, "gh", CreateRepoArgs(dir, o)...)
	if err != nil {
		return "", err
	}
	if url := findURL(out); url != "" {
		return url, nil
	}
	// Older gh versions only print the URL to a terminal.
	url, err := run(ctx, dir, "gh", "repo", "view", o.FullName(), "--json", "url", "--jq", ".url")
	if err != nil {
		return "", fmt.Errorf("look up repository url: %w", err)
	}
	return url, nil
}

// AuthStatus returns nil when gh is installed and logged in.
func AuthStatus(ctx context.Context) error {
	if err := ensureGH(); err != nil {
		return err
	}
	_, err := run(ctx, "", "gh", "auth", "status")
	return err
}

func findURL(out string) string {
	for _, line := range strings.Split(out, "\n") {
		for _, field := range strings.Fields(line) {
			if strings.HasPrefix(field, "https://") {
				return strings.TrimSuffix(field, ".git")
			}
		}
	}
	return ""
}
