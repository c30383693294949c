// init.go implements the "slipway init" command.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berth-dev/slipway/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration in the current directory",
	Long: `Create .slipway/config.yaml with default settings and the projects
directory next to it. Edit the file to point slipway at your generator CLI.`,
	RunE: runInit,
}

var (
	forceFlag     bool
	generatorFlag string
)

func init() {
	initCmd.Flags().BoolVar(&forceFlag, "force", false, "Overwrite an existing config without asking")
	initCmd.Flags().StringVar(&generatorFlag, "generator", "", "Generator command (default copilot)")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	path := config.Path(dir)
	if _, statErr := os.Stat(path); statErr == nil && !forceFlag {
		fmt.Printf("Warning: %s already exists.\n", path)
		fmt.Print("Overwrite with defaults? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if generatorFlag != "" {
		cfg.Build.Command = generatorFlag
	}
	if projectsDir != "" {
		cfg.ProjectsDir = projectsDir
	}

	if err := config.WriteConfig(dir, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	projects := cfg.ProjectsDir
	if !filepath.IsAbs(projects) {
		projects = filepath.Join(dir, projects)
	}
	if err := os.MkdirAll(projects, 0755); err != nil {
		return fmt.Errorf("creating projects dir: %w", err)
	}

	fmt.Println("Slipway initialized")
	fmt.Printf("  Config:    %s\n", path)
	fmt.Printf("  Projects:  %s\n", projects)
	fmt.Printf("  Generator: %s\n", cfg.Build.Command)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run: slipway doctor")
	fmt.Println("  2. Run: slipway build \"your project description\"")
	return nil
}
