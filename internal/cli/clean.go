// clean.go implements the "slipway clean" command for pruning project dirs.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/slipway/internal/cleanup"
	"github.com/berth-dev/slipway/internal/execute"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old project directories",
	Long: `Remove old project directories from the projects dir.

By default, removes projects older than cleanup.max_age_days (default 30).
Use --keep to keep only the N most recent projects instead.
Use --dry-run to preview what would be removed.`,
	RunE: runClean,
}

var (
	keepFlag   int
	maxAgeFlag int
	dryRunFlag bool
)

func init() {
	cleanCmd.Flags().IntVar(&keepFlag, "keep", 0, "Keep only the last N projects (0 = use age-based cleanup)")
	cleanCmd.Flags().IntVar(&maxAgeFlag, "max-age", 0, "Remove projects older than N days (default from config)")
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview what would be removed without deleting")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pruned, err := prune(cfg.ProjectsDir, keepFlag, maxAgeDays(cfg.Cleanup.MaxAgeDays), dryRunFlag)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	if len(pruned) == 0 {
		fmt.Println("No projects to clean up.")
		return nil
	}

	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}
	now := time.Now()
	for _, name := range pruned {
		age := ""
		if at, ok := execute.ParseWorkDirTime(name); ok {
			age = fmt.Sprintf(" (%d days old)", int(now.Sub(at).Hours()/24))
		}
		fmt.Printf("  %s %s%s\n", verb, name, age)
	}
	fmt.Printf("%s %d project(s) from %s.\n", verb, len(pruned), cfg.ProjectsDir)
	return nil
}

// maxAgeDays picks --max-age, then the configured age, then 30 days.
func maxAgeDays(configured int) int {
	if maxAgeFlag > 0 {
		return maxAgeFlag
	}
	if configured > 0 {
		return configured
	}
	return 30
}

// prune keeps the newest keep projects when keep is set, otherwise removes
// projects older than maxAge days.
func prune(dir string, keep, maxAge int, dryRun bool) ([]string, error) {
	if keep > 0 {
		return cleanup.PruneKeepRecent(dir, keep, dryRun)
	}
	return cleanup.PruneByAge(dir, maxAge, dryRun)
}
