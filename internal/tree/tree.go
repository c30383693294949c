// tree.go renders and counts directory contents.
package tree

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Options control tree rendering.
type Options struct {
	MaxDepth       int // deeper levels render as "..."
	MaxFilesInline int // files listed per line before "(+N files)"
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = 4
	}
	if o.MaxFilesInline <= 0 {
		o.MaxFilesInline = 10
	}
	return o
}

const (
	// NotCreated is rendered for a directory that does not exist yet.
	NotCreated = "(folder not yet created)"
	// Empty is rendered for a directory with nothing visible in it.
	Empty = "(empty folder)"
)

type entry struct {
	name  string
	isDir bool
}

// Render draws dir as a compact tree. Directories come first; the files of
// a directory share one line; chains of single-child directories collapse
// into one "a/b/c" entry and empty directories are left out.
func Render(dir string, opts Options, m *Matcher) string {
	opts = opts.withDefaults()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NotCreated
	}

	r := renderer{root: dir, opts: opts, m: m}
	r.dir("", "", 0)
	if len(r.lines) == 0 {
		return Empty
	}
	return strings.Join(r.lines, "\n")
}

type renderer struct {
	root  string
	opts  Options
	m     *Matcher
	lines []string
}

// chain is a directory entry after collapsing single-child runs.
type chain struct {
	label    string // "a" or "a/b/c"
	rel      string // path of the deepest directory in the chain
	depth    int    // depth of that directory
	terminal bool   // the chain ends in a single file; nothing to recurse into
}

func (r *renderer) dir(rel, prefix string, depth int) {
	if depth > r.opts.MaxDepth {
		r.lines = append(r.lines, prefix+"...")
		return
	}

	dirs, files := r.list(rel)

	var chains []chain
	for _, d := range dirs {
		c, ok := r.collapse(join(rel, d), d, depth+1)
		if ok {
			chains = append(chains, c)
		}
	}

	for i, c := range chains {
		last := i == len(chains)-1 && len(files) == 0
		connector, ext := "├ ", "│   "
		if last {
			connector, ext = "└ ", "    "
		}
		if c.terminal {
			r.lines = append(r.lines, prefix+connector+c.label)
			continue
		}
		r.lines = append(r.lines, prefix+connector+c.label+"/")
		r.dir(c.rel, prefix+ext, c.depth)
	}

	if len(files) > 0 {
		shown := files
		more := 0
		if len(files) > r.opts.MaxFilesInline {
			shown = files[:r.opts.MaxFilesInline]
			more = len(files) - r.opts.MaxFilesInline
		}
		line := strings.Join(shown, ", ")
		if more > 0 {
			line += " (+" + strconv.Itoa(more) + " files)"
		}
		r.lines = append(r.lines, prefix+"└ "+line)
	}
}

// collapse follows rel while it has exactly one visible child. ok is false
// when the chain contains no files at all.
func (r *renderer) collapse(rel, label string, depth int) (chain, bool) {
	dirs, files := r.list(rel)
	switch {
	case len(dirs) == 0 && len(files) == 0:
		return chain{}, false
	case len(dirs) == 0 && len(files) == 1:
		return chain{label: label + "/" + files[0], rel: rel, depth: depth, terminal: true}, true
	case len(dirs) == 1 && len(files) == 0 && depth < r.opts.MaxDepth:
		return r.collapse(join(rel, dirs[0]), label+"/"+dirs[0], depth+1)
	default:
		return chain{label: label, rel: rel, depth: depth}, true
	}
}

// list returns the visible subdirectories and files of rel, each sorted
// case-insensitively.
func (r *renderer) list(rel string) (dirs, files []string) {
	entries, err := os.ReadDir(filepath.Join(r.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, nil
	}
	for _, e := range entries {
		path := join(rel, e.Name())
		if r.m.Ignored(path, e.IsDir()) {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	byFold := func(s []string) {
		sort.Slice(s, func(i, j int) bool { return strings.ToLower(s[i]) < strings.ToLower(s[j]) })
	}
	byFold(dirs)
	byFold(files)
	return dirs, files
}

// Count returns the number of visible files and directories under dir,
// not counting dir itself. Ignored directories are not descended into.
func Count(dir string, m *Matcher) (files, dirs int) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) && d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		if m.Ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs++
		} else {
			files++
		}
		return nil
	})
	return files, dirs
}

func join(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
