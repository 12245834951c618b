// Package main implements the triagent CLI: task picking, autonomous
// iteration runs, pattern tracking and A/B experiment management over a
// workspace's .triagent state directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"triagent/internal/config"
	"triagent/internal/logging"
	"triagent/internal/tasksource"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	// Global flags
	verbose   bool
	workspace string
	agentFlag string

	// Logger for command-level reporting; file logging goes through the
	// logging package's categorized loggers.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "triagent",
	Short: "triagent - autonomous task triage and solution pipeline",
	Long: `triagent picks the next best task from a markdown task file, runs
solver variations against it through a worker gateway, evaluates and
ranks the candidate solutions, and presents the winner for acceptance.

Patterns observed across runs and A/B experiments over solver strategy
are tracked per agent under the workspace .triagent directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the triagent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("triagent %s\n", Version)
	},
}

// initCmd seeds the workspace state directory with a default config.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the workspace .triagent directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		path := cfgPath(ws)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		cfg := config.DefaultConfig()
		if agentFlag != "" {
			cfg.Agent = agentFlag
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Initialized workspace config at %s\n", path)
		return nil
	},
}

// resolveWorkspace returns the --workspace flag or walks upward for an
// existing state directory.
func resolveWorkspace() (string, error) {
	if workspace != "" {
		return workspace, nil
	}
	return config.FindWorkspaceRoot()
}

func cfgPath(ws string) string {
	return filepath.Join(ws, config.StateDirName, "config.yaml")
}

func patternsDBPath(stateDir string) string {
	return filepath.Join(stateDir, "patterns.db")
}

// loadConfig loads the workspace config with flag overrides applied.
func loadConfig() (*config.Config, string, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadWorkspace(ws)
	if err != nil {
		return nil, "", err
	}
	if agentFlag != "" {
		cfg.Agent = agentFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, ws, nil
}

// openTaskSource opens the configured markdown task file.
func openTaskSource(cfg *config.Config, ws string) (*tasksource.MarkdownAdapter, error) {
	path := cfg.TasksFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(ws, path)
	}
	adapter, err := tasksource.NewMarkdownAdapter(path)
	if err != nil {
		return nil, err
	}
	if !adapter.IsConfigured() {
		return nil, fmt.Errorf("no task file at %s\n%s", path, adapter.ConfigInstructions())
	}
	return adapter, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: walk up from cwd)")
	rootCmd.PersistentFlags().StringVar(&agentFlag, "agent", "", "Agent id for patterns and experiments (overrides config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(experimentsCmd)
}

func main() {
	// A workspace .env may carry GEMINI_API_KEY; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
