// commit.go stages and commits a work dir.
package git

import (
	"context"
	"os"
	"path/filepath"
)

// HasChanges reports whether the working tree in dir has anything to commit.
func HasChanges(ctx context.Context, dir string) (bool, error) {
	if err := ensureGit(); err != nil {
		return false, err
	}
	out, err := run(ctx, dir, "git", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CommitAll stages everything in dir and commits it. It returns
// ErrNoChanges when there is nothing to commit.
func CommitAll(ctx context.Context, dir, message string) error {
	has, err := HasChanges(ctx, dir)
	if err != nil {
		return err
	}
	if !has {
		return ErrNoChanges
	}

	if _, err := run(ctx, dir, "git", "add", "-A"); err != nil {
		return err
	}

	args := append(identityArgs(ctx, dir), "commit", "-m", message)
	_, err = run(ctx, dir, "git", args...)
	return err
}

// identityArgs supplies a committer identity when git has none configured.
func identityArgs(ctx context.Context, dir string) []string {
	if email, err := run(ctx, dir, "git", "config", "user.email"); err == nil && email != "" {
		return nil
	}
	return []string{"-c", "user.name=" + fallbackName, "-c", "user.email=" + fallbackEmail}
}

// SeedGitignore writes content to dir/.gitignore unless the file exists.
// Returns true if it wrote the file.
func SeedGitignore(dir, content string) (bool, error) {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, err
	}
	return true, nil
}

func sameDir(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ra == rb
}
