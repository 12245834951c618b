package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func passingDeps(assessScore, assessConfidence float64) ComparatorDeps {
	return ComparatorDeps{
		SpawnCommand: func(ctx context.Context, cmd string, args []string, cwd string, env map[string]string) (CommandResult, error) {
			return CommandResult{Success: true}, nil
		},
		Assess: func(ctx context.Context, req AssessRequest) (Assessment, error) {
			return Assessment{Score: assessScore, Confidence: assessConfidence}, nil
		},
		Now: func() time.Time { return testNow },
	}
}

func allCommands() EvaluatorConfig {
	cfg := DefaultEvaluatorConfig()
	cfg.TestCommand = &CommandSpec{Name: "tests", Cmd: "make", Args: []string{"test"}}
	cfg.TypeCheckCommand = &CommandSpec{Name: "typecheck", Cmd: "make", Args: []string{"vet"}}
	cfg.LintCommand = &CommandSpec{Name: "lint", Cmd: "make", Args: []string{"lint"}}
	cfg.BuildCommand = &CommandSpec{Name: "build", Cmd: "make", Args: []string{"build"}}
	return cfg
}

func solutionInput() SolutionInput {
	return SolutionInput{
		SolutionID:      "sol-1",
		IterationID:     "iter-1",
		TaskDescription: "add a retry helper",
		OriginalCode:    "func fetch() error { return do() }",
		SolutionCode:    "// retries transient failures\nfunc fetch() error {\n\tfor i := 0; i < 3; i++ {\n\t\tif err := do(); err == nil {\n\t\t\treturn nil\n\t\t}\n\t}\n\treturn errTransient\n}",
		ChangedFiles:    []string{"fetch.go", "fetch_test.go"},
	}
}

func TestNewEvaluatorRejectsBadWeights(t *testing.T) {
	cfg := DefaultEvaluatorConfig()
	cfg.Weights.Correctness = 0.9
	if _, err := NewEvaluator(cfg, passingDeps(0.9, 0.9)); err == nil {
		t.Fatal("expected weight validation error")
	}
}

func TestEvaluateHappyPath(t *testing.T) {
	ev, err := NewEvaluator(allCommands(), passingDeps(0.9, 0.85))
	if err != nil {
		t.Fatal(err)
	}
	got, err := ev.Evaluate(context.Background(), solutionInput())
	if err != nil {
		t.Fatal(err)
	}

	if !got.Correctness.TestsPass || !got.Correctness.BuildClean {
		t.Error("passing commands should record clean checks")
	}
	if got.OverallScore <= 0 || got.OverallScore > 1 {
		t.Errorf("overall %v out of range", got.OverallScore)
	}
	if got.Confidence != 0.85 {
		t.Errorf("confidence = %v, want average of assessor confidences 0.85", got.Confidence)
	}
	if !got.EvaluatedAt.Equal(testNow) {
		t.Errorf("EvaluatedAt = %v, want injected clock %v", got.EvaluatedAt, testNow)
	}
	if !got.Safety.NoDangerousOps || !got.Safety.NoSecretsExposed {
		t.Error("clean code flagged unsafe")
	}
}

func TestEvaluateCommandFailureRecordedNotFatal(t *testing.T) {
	deps := passingDeps(0.9, 0.9)
	deps.SpawnCommand = func(ctx context.Context, cmd string, args []string, cwd string, env map[string]string) (CommandResult, error) {
		return CommandResult{}, errors.New("binary not found")
	}

	ev, err := NewEvaluator(allCommands(), deps)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ev.Evaluate(context.Background(), solutionInput())
	if err != nil {
		t.Fatalf("spawn failure must not abort evaluation: %v", err)
	}
	if got.Correctness.TestsPass {
		t.Error("unrunnable tests recorded as passing")
	}
	if got.Correctness.TestMessage == "" {
		t.Error("failure should carry a message")
	}
}

func TestEvaluateAssessorFailureDefaultsToNeutral(t *testing.T) {
	deps := passingDeps(0, 0)
	deps.Assess = func(ctx context.Context, req AssessRequest) (Assessment, error) {
		return Assessment{}, errors.New("model unavailable")
	}

	ev, err := NewEvaluator(allCommands(), deps)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ev.Evaluate(context.Background(), solutionInput())
	if err != nil {
		t.Fatal(err)
	}
	if got.Correctness.RequirementCoverage != 0.5 {
		t.Errorf("failed assessment sub-score = %v, want neutral 0.5", got.Correctness.RequirementCoverage)
	}
	if got.Confidence != 0.5 {
		t.Errorf("confidence with no successful assessments = %v, want 0.5", got.Confidence)
	}
}

func TestEvaluateFlagsDangerousSolution(t *testing.T) {
	in := solutionInput()
	in.SolutionCode = `cmd := exec.Command(userInput)` + "\n" + `apiToken := "sk_live_aBcDeF1234567890XYZ"`

	ev, err := NewEvaluator(allCommands(), passingDeps(0.9, 0.9))
	if err != nil {
		t.Fatal(err)
	}
	got, err := ev.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if got.Safety.NoDangerousOps {
		t.Error("exec.Command not flagged")
	}
	if got.Safety.NoSecretsExposed {
		t.Error("hardcoded token not flagged")
	}
	if len(got.Safety.DangerousIssues) == 0 || len(got.Safety.SecretIssues) == 0 {
		t.Error("issues lists should name the findings")
	}
}

func TestEvaluateMonotonicInAssessments(t *testing.T) {
	strong, err := NewEvaluator(allCommands(), passingDeps(0.95, 0.9))
	if err != nil {
		t.Fatal(err)
	}
	weak, err := NewEvaluator(allCommands(), passingDeps(0.3, 0.9))
	if err != nil {
		t.Fatal(err)
	}

	in := solutionInput()
	hi, err := strong.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	lo, err := weak.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if hi.OverallScore <= lo.OverallScore {
		t.Errorf("better assessments should raise overall: %v <= %v", hi.OverallScore, lo.OverallScore)
	}
}
