// Package cleanup prunes old build work dirs from the projects directory.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/berth-dev/slipway/internal/execute"
)

// projectDir is a work dir and the creation time embedded in its name.
type projectDir struct {
	name    string
	created time.Time
}

// listProjects returns the work dirs in projectsDir, oldest first. Hidden
// entries such as .slipway and names without a timestamp are skipped.
func listProjects(projectsDir string) ([]projectDir, error) {
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading projects directory: %w", err)
	}

	var dirs []projectDir
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		t, ok := execute.ParseWorkDirTime(entry.Name())
		if !ok {
			continue
		}
		dirs = append(dirs, projectDir{name: entry.Name(), created: t})
	}

	sort.SliceStable(dirs, func(i, j int) bool {
		if dirs[i].created.Equal(dirs[j].created) {
			return dirs[i].name < dirs[j].name
		}
		return dirs[i].created.Before(dirs[j].created)
	})
	return dirs, nil
}

// PruneByAge removes work dirs created more than maxAgeDays ago.
// If dryRun is true, no directories are deleted; the function only returns
// the names that would be removed. Returns the list of pruned directory names.
func PruneByAge(projectsDir string, maxAgeDays int, dryRun bool) ([]string, error) {
	dirs, err := listProjects(projectsDir)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	var pruned []string
	for _, d := range dirs {
		if !d.created.Before(cutoff) {
			continue
		}
		if err := remove(projectsDir, d.name, dryRun); err != nil {
			return pruned, err
		}
		pruned = append(pruned, d.name)
	}
	return pruned, nil
}

// PruneKeepRecent removes all work dirs except the keep most recent ones.
// If dryRun is true, no directories are deleted. Returns the list of pruned
// directory names, oldest first.
func PruneKeepRecent(projectsDir string, keep int, dryRun bool) ([]string, error) {
	dirs, err := listProjects(projectsDir)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(dirs) <= keep {
		return nil, nil
	}

	var pruned []string
	for _, d := range dirs[:len(dirs)-keep] {
		if err := remove(projectsDir, d.name, dryRun); err != nil {
			return pruned, err
		}
		pruned = append(pruned, d.name)
	}
	return pruned, nil
}

func remove(projectsDir, name string, dryRun bool) error {
	if dryRun {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(projectsDir, name)); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}
