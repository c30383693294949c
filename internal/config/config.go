// Package config handles reading and writing .slipway/config.yaml and
// applying environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidModel  = errors.New("invalid model name")
	ErrPromptTooLong = errors.New("prompt too long")
	ErrEmptyPrompt   = errors.New("prompt is empty")
)

// Config is the top-level structure for .slipway/config.yaml.
type Config struct {
	Version      int                `yaml:"version"`
	ProjectsDir  string             `yaml:"projects_dir"`
	Build        BuildConfig        `yaml:"build"`
	Render       RenderConfig       `yaml:"render"`
	Conversation ConversationConfig `yaml:"conversation"`
	Publish      PublishConfig      `yaml:"publish"`
	Assistant    AssistantConfig    `yaml:"assistant"`
	Cleanup      CleanupConfig      `yaml:"cleanup"`
}

// BuildConfig controls how the generator CLI is run.
type BuildConfig struct {
	Command             string   `yaml:"command"`
	Flags               []string `yaml:"flags"`
	PromptFlag          string   `yaml:"prompt_flag"`
	ModelFlag           string   `yaml:"model_flag"`
	PromptVia           string   `yaml:"prompt_via"` // "arg" | "stdin"
	Template            string   `yaml:"template"`   // "" uses the built-in template, "none" disables it
	DefaultModel        string   `yaml:"default_model"`
	Timeout             int      `yaml:"timeout"`               // seconds
	KillGrace           int      `yaml:"kill_grace"`            // seconds
	ProgressLogInterval int      `yaml:"progress_log_interval"` // seconds
	MaxParallel         int      `yaml:"max_parallel"`
	UniqueIDLength      int      `yaml:"unique_id_length"`
	MaxPromptLength     int      `yaml:"max_prompt_length"`
	ModelPattern        string   `yaml:"model_pattern"`
}

// RenderConfig controls status updates.
type RenderConfig struct {
	Interval         int `yaml:"interval"`     // ms
	ElapsedStep      int `yaml:"elapsed_step"` // seconds
	MaxMessageLength int `yaml:"max_message_length"`
	MaxTreeLength    int `yaml:"max_tree_length"`
	MaxOutputLength  int `yaml:"max_output_length"`
	TreeDepth        int `yaml:"tree_depth"`
	MaxFilesInline   int `yaml:"max_files_inline"`
}

// ConversationConfig controls refinement conversations.
type ConversationConfig struct {
	Expiry        int `yaml:"expiry"`         // seconds of inactivity
	SweepInterval int `yaml:"sweep_interval"` // seconds
}

// PublishConfig controls the GitHub hand-off after a successful build.
type PublishConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Private          bool   `yaml:"private"`
	CleanupAfterPush bool   `yaml:"cleanup_after_push"`
	Owner            string `yaml:"owner"` // org or user; empty means the gh default
}

// AssistantConfig configures the language model used for refinement and naming.
type AssistantConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	APIKey    string `yaml:"-"` // environment only
}

// CleanupConfig controls pruning of old project directories.
type CleanupConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

const configDir = ".slipway"
const configFile = "config.yaml"

// Path returns the config file path for the given base directory.
func Path(dir string) string {
	return filepath.Join(dir, configDir, configFile)
}

// ReadConfig reads .slipway/config.yaml from dir. Fields missing from the
// file keep their defaults. Returns an error if the file is not found or
// YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	return ReadConfigFile(Path(dir))
}

// ReadConfigFile reads a config file at an explicit path.
func ReadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// WriteConfig writes cfg to .slipway/config.yaml in dir.
// Creates the .slipway/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:     1,
		ProjectsDir: "projects",
		Build: BuildConfig{
			Command:             "copilot",
			Flags:               []string{"--allow-all-paths", "--allow-all-tools", "--allow-all-urls"},
			PromptFlag:          "-p",
			ModelFlag:           "--model",
			PromptVia:           "arg",
			Timeout:             30 * 60,
			KillGrace:           5,
			ProgressLogInterval: 30,
			MaxParallel:         2,
			UniqueIDLength:      8,
			MaxPromptLength:     4000,
			ModelPattern:        `^[A-Za-z0-9][A-Za-z0-9._:-]{0,63}$`,
		},
		Render: RenderConfig{
			Interval:         1000,
			ElapsedStep:      1,
			MaxMessageLength: 4000,
			MaxTreeLength:    1500,
			MaxOutputLength:  1800,
			TreeDepth:        4,
			MaxFilesInline:   10,
		},
		Conversation: ConversationConfig{
			Expiry:        30 * 60,
			SweepInterval: 5 * 60,
		},
		Publish: PublishConfig{
			Enabled:          false,
			Private:          true,
			CleanupAfterPush: false,
		},
		Assistant: AssistantConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: 30,
		},
	}
}

// Validate reports settings that would make builds misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Build.Command == "" {
		errs = append(errs, errors.New("build.command is empty"))
	}
	if c.Build.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("build.timeout must be positive, got %d", c.Build.Timeout))
	}
	if c.Build.KillGrace <= 0 {
		errs = append(errs, fmt.Errorf("build.kill_grace must be positive, got %d", c.Build.KillGrace))
	}
	if c.Build.MaxParallel < 1 {
		errs = append(errs, fmt.Errorf("build.max_parallel must be at least 1, got %d", c.Build.MaxParallel))
	}
	if c.Build.PromptVia != "arg" && c.Build.PromptVia != "stdin" {
		errs = append(errs, fmt.Errorf("build.prompt_via must be arg or stdin, got %q", c.Build.PromptVia))
	}
	if _, err := regexp.Compile(c.Build.ModelPattern); err != nil {
		errs = append(errs, fmt.Errorf("build.model_pattern: %w", err))
	}
	if c.Render.Interval <= 0 {
		errs = append(errs, fmt.Errorf("render.interval must be positive, got %d", c.Render.Interval))
	}
	if c.Conversation.Expiry <= 0 {
		errs = append(errs, fmt.Errorf("conversation.expiry must be positive, got %d", c.Conversation.Expiry))
	}
	if c.Conversation.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("conversation.sweep_interval must be positive, got %d", c.Conversation.SweepInterval))
	}
	return errors.Join(errs...)
}

// ValidateModel checks a generator model name. Empty means the default model.
func (c *Config) ValidateModel(model string) error {
	if model == "" {
		return nil
	}
	re, err := regexp.Compile(c.Build.ModelPattern)
	if err != nil {
		return fmt.Errorf("build.model_pattern: %w", err)
	}
	if !re.MatchString(model) {
		return fmt.Errorf("%w: %q", ErrInvalidModel, model)
	}
	return nil
}

// ValidatePrompt rejects empty prompts and prompts over the configured length.
func (c *Config) ValidatePrompt(prompt string) error {
	n := len([]rune(prompt))
	if n == 0 {
		return ErrEmptyPrompt
	}
	if c.Build.MaxPromptLength > 0 && n > c.Build.MaxPromptLength {
		return fmt.Errorf("%w: %d characters, limit %d", ErrPromptTooLong, n, c.Build.MaxPromptLength)
	}
	return nil
}

// BuildTimeout returns build.timeout as a duration.
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Build.Timeout) * time.Second
}

// KillGrace returns build.kill_grace as a duration.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Build.KillGrace) * time.Second
}

// ProgressLogInterval returns build.progress_log_interval as a duration.
func (c *Config) ProgressLogInterval() time.Duration {
	return time.Duration(c.Build.ProgressLogInterval) * time.Second
}

// RenderInterval returns render.interval as a duration.
func (c *Config) RenderInterval() time.Duration {
	return time.Duration(c.Render.Interval) * time.Millisecond
}

// ElapsedStep returns render.elapsed_step as a duration.
func (c *Config) ElapsedStep() time.Duration {
	return time.Duration(c.Render.ElapsedStep) * time.Second
}

// ConversationExpiry returns conversation.expiry as a duration.
func (c *Config) ConversationExpiry() time.Duration {
	return time.Duration(c.Conversation.Expiry) * time.Second
}

// SweepInterval returns conversation.sweep_interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Conversation.SweepInterval) * time.Second
}

// StateDir returns the directory holding slipway's own files under the
// projects dir.
func (c *Config) StateDir() string {
	return filepath.Join(c.ProjectsDir, configDir)
}
