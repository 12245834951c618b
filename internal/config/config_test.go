package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triagent/internal/iteration"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Agent)
	assert.Equal(t, float64(100), cfg.Picker.Weights.Priority)
	assert.NoError(t, cfg.Validate())
}

func TestLoadParsesAndOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
agent: triage-bot
iteration:
  max_concurrent: 5
  total_timeout: 30m
  aggregation: voting
evaluation:
  auto_accept:
    min_score: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "triage-bot", cfg.Agent)

	limits := cfg.Limits()
	assert.Equal(t, 5, limits.MaxConcurrent)
	assert.Equal(t, 30*time.Minute, limits.TotalTimeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, 10, limits.MaxTotal)

	assert.Equal(t, iteration.AggregateVoting, cfg.RunnerConfig().Aggregation)
	assert.Equal(t, 0.9, cfg.Evaluation.AutoAccept.MinScore)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("TRIAGENT_AGENT", "env-agent")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
	assert.Equal(t, "env-agent", cfg.Agent)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Evaluation.Weights.Correctness = 0.99
	assert.Error(t, cfg.Validate(), "weights not summing to 1 must fail validation")

	cfg = DefaultConfig()
	cfg.Agent = ""
	assert.Error(t, cfg.Validate(), "empty agent must fail validation")
}

func TestBadDurationFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Iteration.PerIterationTimeout = "not a duration"
	assert.Equal(t, 5*time.Minute, cfg.Limits().PerIterationTimeout)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Agent = "saved-agent"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-agent", loaded.Agent)
}

func TestFindWorkspaceRootPrefersStateDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, StateDirName), 0755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Chdir(nested)

	got, err := FindWorkspaceRoot()
	require.NoError(t, err)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	resolvedGot, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, resolvedRoot, resolvedGot)
}
