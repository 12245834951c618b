package picker

import (
	"sort"

	"triagent/internal/logging"
	"triagent/internal/types"
)

// PickResult is the outcome of PickNext.
type PickResult struct {
	Task            *types.PickableTask // nil when no candidate survives filtering
	Score           float64
	Reason          string
	ConsideredCount int
	BlockedTaskIDs  []string
}

// RankedTask is one entry in a PickTopN result.
type RankedTask struct {
	Task   types.PickableTask
	Score  float64
	Reason string
}

// PickNext returns the single best task, or a nil-task result when the
// pool is empty after filtering.
func (p *Picker) PickNext(tasks []types.PickableTask, f Filter) PickResult {
	ranked, blocked := p.rank(tasks, f)

	blockedIDs := sortedKeys(blocked)
	if len(ranked) == 0 {
		return PickResult{
			Reason:         "No tasks available matching criteria",
			BlockedTaskIDs: blockedIDs,
		}
	}

	best := ranked[0]
	task := best.Task
	logging.Picker("Picked task %s (score %.1f): %s", task.ID, best.Score, best.Reason)
	return PickResult{
		Task:            &task,
		Score:           best.Score,
		Reason:          best.Reason,
		ConsideredCount: len(ranked),
		BlockedTaskIDs:  blockedIDs,
	}
}

// PickTopN returns the top n tasks with per-item short reasons.
func (p *Picker) PickTopN(tasks []types.PickableTask, f Filter, n int) []RankedTask {
	ranked, _ := p.rank(tasks, f)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	out := make([]RankedTask, len(ranked))
	for i, r := range ranked {
		out[i] = RankedTask{Task: r.Task, Score: r.Score, Reason: r.shortReason}
	}
	return out
}

type rankedEntry struct {
	Task        types.PickableTask
	Score       float64
	Reason      string
	shortReason string
}

// rank filters and stably sorts the pool by descending score. Ties keep
// input order, which is what makes the picker deterministic.
func (p *Picker) rank(tasks []types.PickableTask, f Filter) ([]rankedEntry, map[string]bool) {
	blocked := BlockedTaskIDs(tasks)
	candidates := p.filterTasks(tasks, f, blocked, false)

	ranked := make([]rankedEntry, 0, len(candidates))
	for i := range candidates {
		b := p.Score(&candidates[i], f.PreferredLabels)
		ranked = append(ranked, rankedEntry{
			Task:        candidates[i],
			Score:       b.Total,
			Reason:      reason(&candidates[i], b),
			shortReason: shortReason(b),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, blocked
}

// SuggestOrder produces a dependency-respecting linearization of the
// filtered, ranked candidate list. Dependency-blocked candidates are kept
// (their unsatisfied dependencies are scheduled first); each task's chain
// is resolved depth-first with a visited set, so dependency cycles
// terminate without stack growth.
func (p *Picker) SuggestOrder(tasks []types.PickableTask, f Filter) []types.PickableTask {
	byID := make(map[string]*types.PickableTask, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	blocked := BlockedTaskIDs(tasks)
	candidates := p.filterTasks(tasks, f, blocked, true)

	ranked := make([]types.PickableTask, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return p.Score(&ranked[i], f.PreferredLabels).Total > p.Score(&ranked[j], f.PreferredLabels).Total
	})

	var order []types.PickableTask
	visited := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		t, ok := byID[id]
		if !ok || t.Status.Terminal() {
			return // missing or satisfied dependency
		}
		for _, dep := range t.DependsOn {
			if dep != id {
				visit(dep)
			}
		}
		order = append(order, *t)
	}

	for i := range ranked {
		visit(ranked[i].ID)
	}
	return order
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
