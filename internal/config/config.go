// Package config loads triagent configuration from the workspace's
// .triagent/config.yaml, layered defaults-then-file-then-environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"triagent/internal/evaluation"
	"triagent/internal/iteration"
	"triagent/internal/patterns"
	"triagent/internal/picker"
)

// StateDirName is the per-workspace state directory.
const StateDirName = ".triagent"

// Config holds all triagent configuration.
type Config struct {
	// Agent is the identity patterns and experiments are partitioned by.
	Agent string `yaml:"agent"`

	// TasksFile is the markdown task source.
	TasksFile string `yaml:"tasks_file"`

	Gemini     GeminiConfig     `yaml:"gemini"`
	Picker     PickerConfig     `yaml:"picker"`
	Iteration  IterationConfig  `yaml:"iteration"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Patterns   patterns.Config  `yaml:"patterns"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GeminiConfig configures the assessment model.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// PickerConfig tunes task selection.
type PickerConfig struct {
	Weights picker.Weights `yaml:"weights"`
}

// IterationConfig tunes the iteration runner. Durations are strings
// ("5m", "1h") so the YAML stays readable.
type IterationConfig struct {
	MaxConcurrent       int     `yaml:"max_concurrent"`
	MaxTotal            int     `yaml:"max_total"`
	PerIterationTimeout string  `yaml:"per_iteration_timeout"`
	TotalTimeout        string  `yaml:"total_timeout"`
	TotalCostCap        float64 `yaml:"total_cost_cap"`
	TotalTokensCap      int     `yaml:"total_tokens_cap"`
	PollInterval        string  `yaml:"poll_interval"`
	Aggregation         string  `yaml:"aggregation"`

	ScoreWeights iteration.ScoreWeights `yaml:"score_weights"`
	Penalties    iteration.Penalties    `yaml:"penalties"`
}

// EvaluationConfig tunes solution evaluation and acceptance. Command
// specs are optional; a missing command skips that verification step.
type EvaluationConfig struct {
	Weights    evaluation.CategoryWeights  `yaml:"weights"`
	AutoAccept evaluation.AutoAcceptConfig `yaml:"auto_accept"`

	TestCommand      *evaluation.CommandSpec `yaml:"test_command,omitempty"`
	TypeCheckCommand *evaluation.CommandSpec `yaml:"type_check_command,omitempty"`
	LintCommand      *evaluation.CommandSpec `yaml:"lint_command,omitempty"`
	BuildCommand     *evaluation.CommandSpec `yaml:"build_command,omitempty"`
}

// LoggingConfig mirrors the logging package's file section; the logging
// package reads it independently at initialization.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent:     "default",
		TasksFile: "TASKS.md",
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Picker: PickerConfig{
			Weights: picker.DefaultWeights(),
		},
		Iteration: IterationConfig{
			MaxConcurrent:       3,
			MaxTotal:            10,
			PerIterationTimeout: "5m",
			TotalTimeout:        "1h",
			PollInterval:        "1s",
			Aggregation:         string(iteration.AggregateBest),
			ScoreWeights:        iteration.DefaultScoreWeights(),
			Penalties:           iteration.DefaultPenalties(),
		},
		Evaluation: EvaluationConfig{
			Weights:    evaluation.DefaultCategoryWeights(),
			AutoAccept: evaluation.DefaultAutoAcceptConfig(),
		},
		Patterns: patterns.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, returning defaults when
// the file does not exist. Environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadWorkspace loads the config of the workspace rooted at ws.
func LoadWorkspace(ws string) (*Config, error) {
	return Load(filepath.Join(ws, StateDirName, "config.yaml"))
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if agent := os.Getenv("TRIAGENT_AGENT"); agent != "" {
		c.Agent = agent
	}
	if path := os.Getenv("TRIAGENT_TASKS_FILE"); path != "" {
		c.TasksFile = path
	}
}

// Validate rejects configurations that cannot operate.
func (c *Config) Validate() error {
	if c.Agent == "" {
		return fmt.Errorf("agent id must not be empty")
	}
	if err := c.Evaluation.Weights.Validate(); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}
	return nil
}

// Limits converts the iteration section to runner limits.
func (c *Config) Limits() iteration.Limits {
	limits := iteration.DefaultLimits()
	if c.Iteration.MaxConcurrent > 0 {
		limits.MaxConcurrent = c.Iteration.MaxConcurrent
	}
	if c.Iteration.MaxTotal > 0 {
		limits.MaxTotal = c.Iteration.MaxTotal
	}
	limits.PerIterationTimeout = parseDuration(c.Iteration.PerIterationTimeout, limits.PerIterationTimeout)
	limits.TotalTimeout = parseDuration(c.Iteration.TotalTimeout, limits.TotalTimeout)
	limits.TotalCostCap = c.Iteration.TotalCostCap
	limits.TotalTokensCap = c.Iteration.TotalTokensCap
	return limits
}

// RunnerConfig converts the iteration section to runner settings.
func (c *Config) RunnerConfig() iteration.RunnerConfig {
	cfg := iteration.DefaultRunnerConfig()
	cfg.PollInterval = parseDuration(c.Iteration.PollInterval, cfg.PollInterval)
	if c.Iteration.Aggregation != "" {
		cfg.Aggregation = iteration.AggregationStrategy(c.Iteration.Aggregation)
	}
	return cfg
}

// EvaluatorConfig converts the evaluation section to evaluator settings.
func (c *Config) EvaluatorConfig(workDir string) evaluation.EvaluatorConfig {
	return evaluation.EvaluatorConfig{
		Weights:          c.Evaluation.Weights,
		TestCommand:      c.Evaluation.TestCommand,
		TypeCheckCommand: c.Evaluation.TypeCheckCommand,
		LintCommand:      c.Evaluation.LintCommand,
		BuildCommand:     c.Evaluation.BuildCommand,
		WorkDir:          workDir,
	}
}

// StateDir returns the workspace state directory path.
func (c *Config) StateDir(ws string) string {
	return filepath.Join(ws, StateDirName)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// FindWorkspaceRoot walks upward from the working directory looking for
// an existing state directory, then for a go.mod, falling back to the
// working directory itself.
func FindWorkspaceRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for dir := cwd; ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(filepath.Join(dir, StateDirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return cwd, nil
}
