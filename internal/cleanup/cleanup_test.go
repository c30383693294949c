package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berth-dev/slipway/internal/execute"
)

var base = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

func mkdir(t *testing.T, root, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0755))
	return name
}

func run(t *testing.T, root, owner string, daysAgo int) string {
	t.Helper()
	return mkdir(t, root, execute.WorkDirName(owner, base.AddDate(0, 0, -daysAgo), "ab12cd34"))
}

func remaining(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestListProjects(t *testing.T) {
	tests := []struct {
		name  string
		dirs  []string
		files []string
		want  []string
	}{
		{
			name: "owner with underscores",
			dirs: []string{"my_team_bot_20250314_092653_ab12cd34"},
			want: []string{"my_team_bot_20250314_092653_ab12cd34"},
		},
		{
			name: "oldest first across owners",
			dirs: []string{
				"zed_20250314_092653_aaaa",
				"amy_20250101_000000_bbbb",
				"a_b_20250201_120000_cccc",
			},
			want: []string{
				"amy_20250101_000000_bbbb",
				"a_b_20250201_120000_cccc",
				"zed_20250314_092653_aaaa",
			},
		},
		{
			name: "same second sorts by name",
			dirs: []string{"bob_20250314_092653_ffff", "bob_20250314_092653_0000"},
			want: []string{"bob_20250314_092653_0000", "bob_20250314_092653_ffff"},
		},
		{
			name: "hidden and unparsable names skipped",
			dirs: []string{
				".slipway",
				".alice_20250314_092653_ab12",
				"not-a-timestamp",
				"alice_20250314_092653",
				"alice_2025-03-14_092653_ab12",
				"alice_20251399_092653_ab12",
			},
		},
		{
			name:  "files skipped",
			files: []string{"alice_20250314_092653_ab12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, d := range tt.dirs {
				mkdir(t, root, d)
			}
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(root, f), nil, 0644))
			}

			got, err := listProjects(root)
			require.NoError(t, err)
			var names []string
			for _, d := range got {
				names = append(names, d.name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestPruneByAge(t *testing.T) {
	tests := []struct {
		name       string
		dryRun     bool
		wantPruned []int
		wantLeft   []int
	}{
		{name: "removes old runs", wantPruned: []int{0}, wantLeft: []int{1}},
		{name: "dry run keeps everything", dryRun: true, wantPruned: []int{0}, wantLeft: []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			now := time.Now()
			runs := []string{
				mkdir(t, root, execute.WorkDirName("alice", now.AddDate(0, 0, -60), "ab12")),
				mkdir(t, root, execute.WorkDirName("alice", now.AddDate(0, 0, -5), "cd34")),
			}
			mkdir(t, root, ".slipway")

			pruned, err := PruneByAge(root, 30, tt.dryRun)
			require.NoError(t, err)
			assert.Equal(t, pick(runs, tt.wantPruned), pruned)
			assert.ElementsMatch(t, append(pick(runs, tt.wantLeft), ".slipway"), remaining(t, root))
		})
	}
}

func TestPruneKeepRecent(t *testing.T) {
	tests := []struct {
		name       string
		keep       int
		dryRun     bool
		wantPruned []int
		wantLeft   []int
	}{
		{name: "keeps newest", keep: 2, wantPruned: []int{0, 1}, wantLeft: []int{2, 3}},
		{name: "keep more than exist", keep: 5, wantLeft: []int{0, 1, 2, 3}},
		{name: "keep zero", keep: 0, wantPruned: []int{0, 1, 2, 3}},
		{name: "negative keep is zero", keep: -1, wantPruned: []int{0, 1, 2, 3}},
		{name: "dry run", keep: 1, dryRun: true, wantPruned: []int{0, 1, 2}, wantLeft: []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			// Owners are chosen so name order differs from time order.
			runs := []string{
				run(t, root, "zed", 4),
				run(t, root, "my_team_bot", 3),
				run(t, root, "amy", 2),
				run(t, root, "bob_smith", 1),
			}
			mkdir(t, root, ".slipway")

			pruned, err := PruneKeepRecent(root, tt.keep, tt.dryRun)
			require.NoError(t, err)
			assert.Equal(t, pick(runs, tt.wantPruned), pruned)
			assert.ElementsMatch(t, append(pick(runs, tt.wantLeft), ".slipway"), remaining(t, root))
		})
	}
}

func TestPruneMissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	pruned, err := PruneByAge(missing, 30, false)
	require.NoError(t, err)
	assert.Empty(t, pruned)

	pruned, err = PruneKeepRecent(missing, 5, false)
	require.NoError(t, err)
	assert.Empty(t, pruned)
}

func pick(names []string, idx []int) []string {
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, names[i])
	}
	return out
}
