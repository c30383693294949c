// Package testutil provides test helper utilities for slipway tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// GeneratedProject returns file contents resembling what a generator
// leaves behind for a small web app.
func GeneratedProject() map[string]string {
	return map[string]string{
		"README.md":              "# todo app\n",
		"package.json":           `{"name":"todo-app","version":"1.0.0"}`,
		"src/index.ts":           "export {}\n",
		"src/components/App.tsx": "export const App = () => null\n",
		"public/index.html":      "<html></html>\n",
		"node_modules/x/a.js":    "",
	}
}

// FakeGenerator writes script to an executable shell file and returns its
// path. The script receives the generator's argv as "$@" and runs in the
// build's work dir. Tests using it are skipped on Windows.
func FakeGenerator(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake generator needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake-generator")
	body := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		t.Fatalf("writing fake generator: %v", err)
	}
	return path
}
