// build.go implements the "slipway build" command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/berth-dev/slipway/internal/execute"
	"github.com/berth-dev/slipway/internal/ui"
)

var buildCmd = &cobra.Command{
	Use:   "build [prompt]",
	Short: "Generate a project from a prompt",
	Long: `Run the generator CLI on a prompt in a fresh project directory.
The prompt is taken from the arguments, or from stdin when none are given.
Progress is shown until the generator exits, times out or is interrupted.`,
	RunE: runBuild,
}

var (
	buildModel     string
	buildOutput    string
	buildPublish   bool
	buildNoPublish bool
	buildOwner     string
)

func init() {
	buildCmd.Flags().StringVarP(&buildModel, "model", "m", "", "Generator model (default from config)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "auto", "Output mode: auto, live, stream or message")
	buildCmd.Flags().BoolVar(&buildPublish, "publish", false, "Publish to GitHub when the build completes")
	buildCmd.Flags().BoolVar(&buildNoPublish, "no-publish", false, "Do not publish even if enabled in config")
	buildCmd.Flags().StringVar(&buildOwner, "owner", "", "GitHub owner for the new repository")
}

func runBuild(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args, os.Stdin)
	if err != nil {
		return err
	}
	mode, err := ui.ParseMode(buildOutput)
	if err != nil {
		return err
	}

	a, err := newApp(loggerFrom(cmd.Context()))
	if err != nil {
		return err
	}
	defer a.Close()

	model := buildModel
	if model == "" {
		model = a.cfg.Build.DefaultModel
	}
	if err := a.cfg.ValidateModel(model); err != nil {
		return err
	}
	if err := a.cfg.ValidatePrompt(prompt); err != nil {
		return err
	}

	pub := publishOptions{
		enabled: (a.cfg.Publish.Enabled || buildPublish) && !buildNoPublish,
		owner:   buildOwner,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := buildOnce(ctx, a, pub, mode, execute.Request{
		Owner:  currentOwner(),
		Prompt: prompt,
		Model:  model,
	})
	if err != nil {
		return err
	}
	return buildError(res)
}

// buildOnce starts and runs one build with a console sink, then kills any
// generator left behind once ctx ends.
func buildOnce(ctx context.Context, a *app, pub publishOptions, mode ui.Mode, req execute.Request) (*execute.Result, error) {
	r := a.runner(pub)
	sess, err := r.Start(ctx, req)
	if err != nil {
		return nil, err
	}

	sink := ui.NewConsoleSink(os.Stdout, mode, a.limits())
	res, err := r.Run(ctx, sess, sink)
	if ctx.Err() != nil {
		a.shutdown()
	}
	if err != nil {
		return nil, err
	}

	if sink.Mode() == ui.ModeLive {
		fmt.Println()
	}
	fmt.Printf("Project: %s\n", res.WorkDir)
	if res.RecordPath != "" {
		fmt.Printf("Record:  %s\n", res.RecordPath)
	}
	if res.RepoURL != "" {
		fmt.Printf("Repo:    %s\n", res.RepoURL)
	}
	if res.PublishErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: build completed but publishing failed: %v\n", res.PublishErr)
	}
	return res, nil
}

// buildError turns a non-completed build into the command's error so the
// process exits nonzero.
func buildError(res *execute.Result) error {
	st := res.Status
	switch st.State {
	case execute.StateCompleted:
		return nil
	case execute.StateFailed:
		if st.Err != nil {
			return fmt.Errorf("build failed: %w", st.Err)
		}
		return errors.New("build failed")
	default:
		return fmt.Errorf("build %s", strings.ReplaceAll(st.State.String(), "_", " "))
	}
}

// readPrompt joins args, or reads stdin when there are none and it is not
// a terminal.
func readPrompt(args []string, stdin *os.File) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if term.IsTerminal(int(stdin.Fd())) {
		return "", errors.New("no prompt given: pass it as an argument or on stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading prompt from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
