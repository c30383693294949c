// Package cli defines Cobra command definitions for the slipway CLI.
// This file contains the root command, global flags and logger setup.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose     bool
	configPath  string
	projectsDir string
	version     = "dev" // set via ldflags at build time
)

type loggerKey struct{}

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Run a code-generation CLI in a sandboxed project directory",
	Long: `Slipway turns a natural-language prompt into a project. Each build runs
the configured generator CLI in its own directory under the projects dir,
shows its progress live, enforces a timeout, and can publish the result
to GitHub when it succeeds.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		cmd.SetContext(withLogger(cmd.Context(), l))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = loggerFrom(cmd.Context()).Sync()
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the JSON logger on stderr. Warn and above by default,
// debug with --verbose.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

func withLogger(ctx context.Context, l *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// loggerFrom returns the command's logger, or a no-op one when none is set.
func loggerFrom(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default .slipway/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectsDir, "projects-dir", "", "Directory that holds project work dirs")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(doctorCmd)
}
