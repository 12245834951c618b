// Package picker selects the next best task from a pool of pickable tasks.
//
// The pipeline is: filter (status, labels, assignee, complexity,
// dependency-blocking) -> score (weighted, additive, floored at zero) ->
// rank (stable sort). Everything here is a pure function of its inputs;
// identical inputs always produce identical picks.
package picker

import (
	"strings"
	"time"

	"triagent/internal/logging"
	"triagent/internal/types"
)

// Filter narrows the candidate pool before scoring.
type Filter struct {
	// Labels requires at least one overlap when non-empty.
	Labels []string

	// ExcludeLabels requires zero overlap when non-empty.
	ExcludeLabels []string

	// Assignee matches case-insensitively, ignoring a leading "@".
	Assignee string

	// UnassignedOnly requires an empty assignee set.
	UnassignedOnly bool

	// MaxComplexity rejects tasks whose estimated complexity exceeds it.
	// Zero means no limit. Tasks without an estimate always pass.
	MaxComplexity int

	// PreferredLabels contribute a per-match score bonus but never filter.
	PreferredLabels []string
}

// Weights configures the additive scoring function.
type Weights struct {
	Priority          float64 `yaml:"priority"`
	DueDate           float64 `yaml:"due_date"`
	Age               float64 `yaml:"age"`
	Simplicity        float64 `yaml:"simplicity"`
	LabelMatchBonus   float64 `yaml:"label_match_bonus"`
	ComplexityPenalty float64 `yaml:"complexity_penalty"`
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Priority:          100,
		DueDate:           50,
		Age:               10,
		Simplicity:        5,
		LabelMatchBonus:   20,
		ComplexityPenalty: 15,
	}
}

// priorityRank maps declared priority to its base multiplier.
var priorityRank = map[types.TaskPriority]float64{
	types.PriorityCritical: 5,
	types.PriorityHigh:     4,
	types.PriorityMedium:   3,
	types.PriorityLow:      2,
	types.PriorityNone:     1,
}

// Picker scores and ranks tasks. Cheap to construct; safe for reuse.
type Picker struct {
	weights Weights
	now     func() time.Time
}

// New creates a picker with the given weights.
func New(weights Weights) *Picker {
	return &Picker{weights: weights, now: time.Now}
}

// NewWithClock creates a picker with an injected clock, for deterministic tests.
func NewWithClock(weights Weights, now func() time.Time) *Picker {
	return &Picker{weights: weights, now: now}
}

// BlockedTaskIDs returns the ids of tasks that are dependency-blocked:
// at least one of their depends_on ids resolves to a non-terminal task.
// Missing dependencies count as satisfied.
func BlockedTaskIDs(tasks []types.PickableTask) map[string]bool {
	byID := make(map[string]*types.PickableTask, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	blocked := make(map[string]bool)
	for i := range tasks {
		for _, dep := range tasks[i].DependsOn {
			if dep == tasks[i].ID {
				continue // self-dependency is never blocking
			}
			if d, ok := byID[dep]; ok && !d.Status.Terminal() {
				blocked[tasks[i].ID] = true
				break
			}
		}
	}
	return blocked
}

// filterTasks applies the rejection pipeline in order. Earlier rejections
// dominate: a closed task is rejected for its status, not for its labels.
// When skipDependencyCheck is set, step 7 (dependency-blocking) is skipped;
// SuggestOrder uses this so dependency chains survive into ordering.
func (p *Picker) filterTasks(tasks []types.PickableTask, f Filter, blocked map[string]bool, skipDependencyCheck bool) []types.PickableTask {
	var out []types.PickableTask

	for _, t := range tasks {
		// 1. Status rejection.
		if t.Status.Terminal() || t.Status == types.TaskBlocked {
			continue
		}
		// 2. Required label overlap.
		if len(f.Labels) > 0 && !anyLabelOverlap(t.Labels, f.Labels) {
			continue
		}
		// 3. Excluded labels.
		if len(f.ExcludeLabels) > 0 && anyLabelOverlap(t.Labels, f.ExcludeLabels) {
			continue
		}
		// 4. Assignee match.
		if f.Assignee != "" && !hasAssignee(t.Assignees, f.Assignee) {
			continue
		}
		// 5. Unassigned only.
		if f.UnassignedOnly && len(t.Assignees) > 0 {
			continue
		}
		// 6. Complexity ceiling.
		if f.MaxComplexity > 0 && t.EstimatedComplexity != nil && *t.EstimatedComplexity > f.MaxComplexity {
			continue
		}
		// 7. Dependency-blocked.
		if !skipDependencyCheck && blocked[t.ID] {
			continue
		}
		out = append(out, t)
	}

	logging.PickerDebug("Filtered %d/%d tasks (blocked=%d)", len(out), len(tasks), len(blocked))
	return out
}

func anyLabelOverlap(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// hasAssignee matches case-insensitively after stripping a leading "@"
// from both sides.
func hasAssignee(assignees []string, who string) bool {
	who = strings.ToLower(strings.TrimPrefix(who, "@"))
	for _, a := range assignees {
		if strings.ToLower(strings.TrimPrefix(a, "@")) == who {
			return true
		}
	}
	return false
}
