// Package iteration executes an iteration plan: it spawns solver
// variations through a worker gateway under concurrency/cost/token/time
// limits, collects their results, and folds them into an aggregated answer.
package iteration

import (
	"time"

	"github.com/google/uuid"

	"triagent/internal/types"
)

// VariationStatus tracks a variation through its lifecycle. Transitions
// are monotonic: pending -> spawned -> running -> exactly one terminal
// state out of {completed, failed, timeout, skipped}.
type VariationStatus string

const (
	VariationPending   VariationStatus = "pending"
	VariationSpawned   VariationStatus = "spawned"
	VariationRunning   VariationStatus = "running"
	VariationCompleted VariationStatus = "completed"
	VariationFailed    VariationStatus = "failed"
	VariationTimeout   VariationStatus = "timeout"
	VariationSkipped   VariationStatus = "skipped"
)

// Terminal reports whether the status is terminal.
func (s VariationStatus) Terminal() bool {
	switch s {
	case VariationCompleted, VariationFailed, VariationTimeout, VariationSkipped:
		return true
	}
	return false
}

// Variation is one concrete parameterization of the task for a sub-agent.
type Variation struct {
	ID    string
	Label string

	// Priority orders spawning; lower spawns sooner.
	Priority int

	Model             string
	Thinking          types.ThinkingLevel
	PromptVariantID   string
	AdditionalContext string
	Constraints       []string
	Temperature       *float64

	Status VariationStatus
	RunID  string  // assigned on spawn
	Result *Result // assigned on terminal transition
}

// Strategy shapes how variations are spawned. It does not change the
// final aggregation fold, which defaults to best regardless.
type Strategy string

const (
	StrategyParallel   Strategy = "parallel"
	StrategySequential Strategy = "sequential"
	StrategyTournament Strategy = "tournament"
	StrategyAdaptive   Strategy = "adaptive"
)

// PlanStatus tracks a plan through its single run.
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanRunning   PlanStatus = "running"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanTimeout   PlanStatus = "timeout"
	PlanCancelled PlanStatus = "cancelled"
)

// Terminal reports whether the plan status is terminal.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanCompleted, PlanFailed, PlanTimeout, PlanCancelled:
		return true
	}
	return false
}

// Limits bounds a plan's resource consumption. Zero-valued caps are unset.
type Limits struct {
	MaxConcurrent       int
	MaxTotal            int
	PerIterationTimeout time.Duration
	TotalTimeout        time.Duration
	PerIterationCostCap float64
	TotalCostCap        float64
	PerIterationTokens  int
	TotalTokensCap      int
}

// DefaultLimits returns the standard plan limits.
func DefaultLimits() Limits {
	return Limits{
		MaxConcurrent:       3,
		MaxTotal:            10,
		PerIterationTimeout: 5 * time.Minute,
		TotalTimeout:        time.Hour,
	}
}

// CompletionCriteria is the predicate that lets the runner stop early.
// Any satisfied clause completes the plan; with none set, the runner
// waits for a result per variation.
type CompletionCriteria struct {
	MinAcceptableScore      float64 // stop once any successful result meets it (0 = unset)
	MinSuccessfulVariations int     // stop once this many succeeded (0 = unset)
	WaitForAll              bool
	StopOnFirstSuccess      bool
}

// Plan is the unit of execution: one task, a set of variations, limits
// and completion criteria. Created by a driver, mutated exclusively by
// its owning runner until terminal, then read-only.
type Plan struct {
	ID         string
	Task       types.TaskHandle
	Strategy   Strategy
	Variations []*Variation
	Limits     Limits
	Criteria   CompletionCriteria

	Status      PlanStatus
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewPlan creates a pending plan for the given task.
func NewPlan(task types.TaskHandle, strategy Strategy, variations []*Variation, limits Limits, criteria CompletionCriteria) *Plan {
	return &Plan{
		ID:         uuid.NewString(),
		Task:       task,
		Strategy:   strategy,
		Variations: variations,
		Limits:     limits,
		Criteria:   criteria,
		Status:     PlanPending,
		CreatedAt:  time.Now(),
	}
}

// Metrics are the per-result quality signals. Pointer fields distinguish
// "not reported" from zero; OverallScore is always derived by the scorer.
type Metrics struct {
	Confidence     *float64
	Completeness   *float64
	CodeQuality    *float64
	Responsiveness *float64
	OverallScore   float64
}

// Result is the immutable record of one finished variation run.
type Result struct {
	VariationID string
	RunID       string
	SessionKey  string
	StartedAt   time.Time
	EndedAt     time.Time
	DurationMS  int64
	Output      string
	OutputType  types.OutputType
	Metrics     Metrics
	Usage       types.TokenUsage
	Success     bool
	Error       string
}
