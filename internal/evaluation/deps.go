// Package evaluation scores solver outputs along five rubric categories
// (correctness, quality, efficiency, completeness, safety), ranks them,
// and decides auto-acceptance. Deterministic analyzers and injected
// model assessment are combined; per-check failures never abort an
// evaluation.
package evaluation

import (
	"context"
	"time"
)

// CommandResult is the outcome of one verification command. Process-level
// failure (non-zero exit) is a result, not an error; SpawnCommandFunc
// errors mean the command could not run at all.
type CommandResult struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
}

// SpawnCommandFunc runs a verification command in a working directory.
type SpawnCommandFunc func(ctx context.Context, cmd string, args []string, cwd string, env map[string]string) (CommandResult, error)

// AssessRequest asks the model to judge one aspect of a solution.
type AssessRequest struct {
	Prompt       string
	SolutionCode string
	OriginalCode string
	Task         string
}

// Assessment is the model's judgement.
type Assessment struct {
	Score       float64 // [0,1]
	Confidence  float64 // [0,1]
	Reasoning   string
	Suggestions []string
}

// AssessFunc performs one model-assisted assessment.
type AssessFunc func(ctx context.Context, req AssessRequest) (Assessment, error)

// ComparatorDeps are the evaluator's injected collaborators. A struct of
// callables so tests can swap any of them.
type ComparatorDeps struct {
	SpawnCommand SpawnCommandFunc
	Assess       AssessFunc
	Now          func() time.Time
}

// SolutionInput is one candidate solution to evaluate.
type SolutionInput struct {
	SolutionID      string
	IterationID     string
	TaskDescription string
	OriginalCode    string
	SolutionCode    string
	ChangedFiles    []string
}
