package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triagent/internal/config"
	"triagent/internal/experiments"
)

const testTaskFile = `# Tasks

## T-1: Fix the retry loop
` + "```yaml" + `
status: open
priority: high
labels: [bug]
` + "```" + `
The retry loop never backs off.

## T-2: Update the docs
` + "```yaml" + `
status: open
priority: low
` + "```" + `
`

// seedWorkspace writes a config and task file into a temp workspace and
// points the global flags at it.
func seedWorkspace(t *testing.T) string {
	t.Helper()

	ws := t.TempDir()
	cfg := config.DefaultConfig()
	if err := cfg.Save(filepath.Join(ws, config.StateDirName, "config.yaml")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "TASKS.md"), []byte(testTaskFile), 0644); err != nil {
		t.Fatal(err)
	}

	workspace = ws
	agentFlag = ""
	logger = zap.NewNop()
	t.Cleanup(func() { workspace = "" })
	return ws
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a very long title indeed", 10); got != "a very ..." {
		t.Errorf("got %q", got)
	}
}

func TestRunPickSelectsHighPriority(t *testing.T) {
	seedWorkspace(t)
	pickTop = 0

	output := captureOutput(t, func() {
		if err := runPick(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runPick: %v", err)
		}
	})

	if !strings.Contains(output, "T-1: Fix the retry loop") {
		t.Fatalf("expected the high-priority task, got: %s", output)
	}
}

func TestRunPickTopN(t *testing.T) {
	seedWorkspace(t)
	pickTop = 5
	defer func() { pickTop = 0 }()

	output := captureOutput(t, func() {
		if err := runPick(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runPick: %v", err)
		}
	})

	if !strings.Contains(output, "T-1") || !strings.Contains(output, "T-2") {
		t.Fatalf("expected both tasks ranked, got: %s", output)
	}
}

func TestRunTasksListAndStatus(t *testing.T) {
	seedWorkspace(t)

	output := captureOutput(t, func() {
		if err := runTasksList(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runTasksList: %v", err)
		}
	})
	if !strings.Contains(output, "T-1") || !strings.Contains(output, "T-2") {
		t.Fatalf("expected both tasks listed, got: %s", output)
	}

	captureOutput(t, func() {
		if err := runTasksStatus(&cobra.Command{}, []string{"T-2", "closed"}); err != nil {
			t.Fatalf("runTasksStatus: %v", err)
		}
	})
	if err := runTasksStatus(&cobra.Command{}, []string{"T-2", "bogus"}); err == nil {
		t.Fatal("bogus status should be rejected")
	}
}

func TestBuildVariationsSharesStrategyInstruction(t *testing.T) {
	ws := seedWorkspace(t)
	engine := experiments.NewEngine(filepath.Join(ws, config.StateDirName), "default")

	_, err := engine.CreateExperiment("tone", "formality", []experiments.Variant{
		{Name: "formal", Instruction: "Use formal language."},
		{Name: "casual", Instruction: "Use casual language."},
	}, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	variations := buildVariations(engine, "session-1", 4)
	if len(variations) != 4 {
		t.Fatalf("got %d variations", len(variations))
	}

	seen := map[string]bool{}
	for _, v := range variations {
		seen[v.Label] = true
		if v.AdditionalContext != variations[0].AdditionalContext {
			t.Error("variations in one plan must share the strategy instruction")
		}
	}
	if !seen["thinking:low"] || !seen["thinking:high"] {
		t.Errorf("labels: %v", seen)
	}
	if !strings.Contains(variations[0].AdditionalContext, "Response strategy guidelines:") {
		t.Errorf("instruction: %q", variations[0].AdditionalContext)
	}
}

func TestExecSpawner(t *testing.T) {
	ctx := context.Background()

	res, err := execSpawner(ctx, "sh", []string{"-c", "echo ok"}, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || !strings.Contains(res.Stdout, "ok") {
		t.Errorf("result: %+v", res)
	}

	res, err = execSpawner(ctx, "sh", []string{"-c", "echo bad >&2; exit 3"}, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.ExitCode != 3 || !strings.Contains(res.Stderr, "bad") {
		t.Errorf("result: %+v", res)
	}

	if _, err = execSpawner(ctx, "definitely-not-a-command-xyz", nil, t.TempDir(), nil); err == nil {
		t.Error("missing binary should be a spawn error")
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origOut
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}
