// Package tree renders compact folder trees of build work dirs and keeps
// them current while the generator writes files.
package tree

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile holds gitignore-style patterns for paths hidden from trees and counts.
const IgnoreFile = ".folderignore"

var builtinIgnores = []string{
	".git",
	"node_modules",
	"__pycache__",
	".venv",
	".DS_Store",
}

// Matcher decides which paths are hidden.
type Matcher struct {
	gi *gitignore.GitIgnore
}

// LoadMatcher builds a Matcher from the built-in patterns, the nearest
// .folderignore found in dir or one of its parents, and extra.
func LoadMatcher(dir string, extra ...string) *Matcher {
	patterns := append([]string(nil), builtinIgnores...)
	if path, ok := findIgnoreFile(dir); ok {
		patterns = append(patterns, readPatterns(path)...)
	}
	patterns = append(patterns, extra...)
	return &Matcher{gi: gitignore.CompileIgnoreLines(patterns...)}
}

// Ignored reports whether rel, a slash-separated path relative to the tree
// root, is hidden.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	if m == nil || m.gi == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if m.gi.MatchesPath(rel) {
		return true
	}
	return isDir && m.gi.MatchesPath(rel+"/")
}

func findIgnoreFile(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(abs, IgnoreFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

func readPatterns(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
