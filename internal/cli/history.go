// history.go implements the "slipway history" command.
package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/slipway/internal/report"
	"github.com/berth-dev/slipway/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent builds",
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of builds to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(loggerFrom(cmd.Context()))
	if err != nil {
		return err
	}
	defer a.Close()

	if a.history == nil {
		return errors.New("history database unavailable")
	}
	builds, err := a.history.ListBuilds(historyLimit)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}
	if len(builds) == 0 {
		fmt.Println("No builds yet.")
		return nil
	}

	for _, b := range builds {
		took := ""
		if !b.StartedAt.IsZero() && !b.EndedAt.IsZero() {
			took = report.FormatDuration(b.EndedAt.Sub(b.StartedAt))
		}
		fmt.Printf("%s  %-10s %-8s %s\n",
			b.EndedAt.Local().Format(time.DateTime),
			b.State,
			took,
			ui.TruncateHead(strings.Join(strings.Fields(b.Prompt), " "), 60))
		fmt.Printf("    %s\n", ui.DimStyle.Render(b.WorkDir))
		if b.RepoURL != "" {
			fmt.Printf("    %s\n", b.RepoURL)
		}
		if b.PublishError != "" {
			fmt.Printf("    publish failed: %s\n", b.PublishError)
		}
	}
	return nil
}
