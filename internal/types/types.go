// Package types defines the shared domain records that flow between the
// task picker, iteration runner, evaluator and presentation layers.
package types

import "time"

// TaskStatus represents the workflow status of a pickable task.
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"        // Ready to be picked
	TaskInProgress TaskStatus = "in_progress" // Someone is working on it
	TaskBlocked    TaskStatus = "blocked"     // Explicitly blocked (status field, not dependency)
	TaskReview     TaskStatus = "review"      // Awaiting review
	TaskClosed     TaskStatus = "closed"      // Done
	TaskWontDo     TaskStatus = "wont_do"     // Abandoned
)

// Terminal reports whether the status is a terminal one. Terminal tasks are
// never selected and count as satisfied dependencies.
func (s TaskStatus) Terminal() bool {
	return s == TaskClosed || s == TaskWontDo
}

// TaskPriority represents the declared priority of a task.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
	PriorityNone     TaskPriority = "none"
)

// PickableTask is the picker's read-only view of an external task.
// Produced by a source adapter, consumed by the picker.
type PickableTask struct {
	ID                  string
	Title               string
	Status              TaskStatus
	Priority            TaskPriority
	Labels              []string
	Assignees           []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DueDate             *time.Time
	CommentCount        int
	DependsOn           []string
	EstimatedComplexity *int // 1-10 when set
	Description         string
	URL                 string
}

// HasLabel reports whether the task carries the given label.
func (t *PickableTask) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// TaskHandle is the minimal task identity an iteration plan carries.
type TaskHandle struct {
	ID          string
	Title       string
	Description string
}

// ThinkingLevel selects how much deliberation a solver variation requests.
type ThinkingLevel string

const (
	ThinkingNone   ThinkingLevel = "none"
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// OutputType classifies what a solver produced.
type OutputType string

const (
	OutputCode       OutputType = "code"
	OutputText       OutputType = "text"
	OutputStructured OutputType = "structured"
	OutputMixed      OutputType = "mixed"
)

// TokenUsage accounts for tokens and estimated cost of one run.
type TokenUsage struct {
	InputTokens   int
	OutputTokens  int
	TotalTokens   int
	EstimatedCost float64 // USD
}

// Add accumulates another usage record into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.EstimatedCost += other.EstimatedCost
}
