// env.go applies .env files and environment variables on top of the config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Missing files are skipped and
// variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from the environment using lookup
// (os.LookupEnv when nil).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup("SLIPWAY_PROJECTS_DIR"); ok && v != "" {
		cfg.ProjectsDir = v
	}
	if v, ok := lookup("SLIPWAY_TIMEOUT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SLIPWAY_TIMEOUT: %w", err)
		}
		cfg.Build.Timeout = n
	}
	if v, ok := lookup("SLIPWAY_MODEL"); ok {
		cfg.Build.DefaultModel = v
	}
	if v, ok := lookup("SLIPWAY_PUBLISH"); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("SLIPWAY_PUBLISH: %w", err)
		}
		cfg.Publish.Enabled = b
	}
	if v, ok := lookup("OPENAI_API_KEY"); ok {
		cfg.Assistant.APIKey = v
	}
	if v, ok := lookup("OPENAI_BASE_URL"); ok && v != "" {
		cfg.Assistant.BaseURL = v
	}
	if v, ok := lookup("OPENAI_MODEL"); ok && v != "" {
		cfg.Assistant.Model = v
	}
	return nil
}

// Load reads the config at path, or .slipway/config.yaml under dir when
// path is empty, falling back to defaults when no file exists. It then
// loads .env and applies environment overrides, and validates the result.
func Load(dir, path string) (*Config, error) {
	if path == "" {
		path = Path(dir)
	}

	cfg, err := ReadConfigFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
