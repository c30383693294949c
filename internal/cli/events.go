// events.go implements the "slipway events" command.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	eventlog "github.com/berth-dev/slipway/internal/log"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the most recent journal events",
	RunE:  runEvents,
}

var eventsLimit int

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 30, "Number of events to show (0 = all)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	journal, err := eventlog.NewLogger(cfg.ProjectsDir)
	if err != nil {
		return err
	}
	events, err := journal.Tail(eventsLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}
	for _, e := range events {
		fmt.Println(formatEvent(e))
	}
	return nil
}

// formatEvent renders one journal event on a single line.
func formatEvent(e eventlog.LogEvent) string {
	var b strings.Builder
	b.WriteString(e.Time.Local().Format(time.DateTime))
	b.WriteString("  ")
	b.WriteString(e.Event)
	if e.SessionID != "" {
		id := e.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&b, " session=%s", id)
	}
	if e.User != "" {
		fmt.Fprintf(&b, " user=%s", e.User)
	}
	if e.State != "" {
		fmt.Fprintf(&b, " state=%s", e.State)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " exit=%d", e.ExitCode)
	}
	if e.Pid != 0 {
		fmt.Fprintf(&b, " pid=%d", e.Pid)
	}
	if e.Turns != 0 {
		fmt.Fprintf(&b, " turns=%d", e.Turns)
	}
	if e.Count != 0 {
		fmt.Fprintf(&b, " count=%d", e.Count)
	}
	if e.DurationMs != 0 {
		fmt.Fprintf(&b, " took=%s", (time.Duration(e.DurationMs) * time.Millisecond).String())
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " url=%s", e.URL)
	} else if e.Repo != "" {
		fmt.Fprintf(&b, " repo=%s", e.Repo)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	return b.String()
}
