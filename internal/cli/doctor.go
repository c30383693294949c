// doctor.go implements the "slipway doctor" preflight command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/slipway/internal/assistant"
	"github.com/berth-dev/slipway/internal/git"
	"github.com/berth-dev/slipway/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that builds and publishing can run",
	RunE:  runDoctor,
}

// check is one preflight result. Optional checks warn instead of failing.
type check struct {
	name     string
	err      error
	optional bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	publishNeeded := cfg.Publish.Enabled
	checks := []check{
		{name: "generator " + cfg.Build.Command, err: lookPath(cfg.Build.Command)},
		{name: "projects dir " + cfg.ProjectsDir, err: writable(cfg.ProjectsDir)},
		{name: "git", err: lookPath("git"), optional: !publishNeeded},
		{name: "gh", err: lookPath("gh"), optional: !publishNeeded},
	}
	if checks[3].err == nil {
		checks = append(checks, check{name: "gh auth", err: git.AuthStatus(ctx), optional: !publishNeeded})
	}
	_, aerr := assistant.NewClient(cfg.Assistant, loggerFrom(ctx))
	checks = append(checks, check{name: "assistant " + cfg.Assistant.Model, err: aerr, optional: true})

	failed := 0
	for _, c := range checks {
		switch {
		case c.err == nil:
			fmt.Printf("  %s %s\n", ui.OKStyle.Render("ok  "), c.name)
		case c.optional:
			fmt.Printf("  %s %s: %v\n", ui.WarnStyle.Render("warn"), c.name, c.err)
		default:
			failed++
			fmt.Printf("  %s %s: %v\n", ui.ErrorStyle.Render("fail"), c.name, c.err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func lookPath(name string) error {
	if name == "" {
		return errors.New("not configured")
	}
	if _, err := exec.LookPath(name); err != nil {
		return errors.New("not found on PATH")
	}
	return nil
}

// writable creates dir if needed and checks a file can be written in it.
func writable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
