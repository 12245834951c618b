package picker

import (
	"time"

	"triagent/internal/types"
)

// Breakdown carries the individual scoring components for one task.
// PickNext and PickTopN derive their human-readable reasons from it.
type Breakdown struct {
	Priority          float64
	DueDate           float64
	Age               float64
	Simplicity        float64
	LabelBonus        float64
	ComplexityPenalty float64
	Overdue           bool
	Total             float64
}

// Score computes the weighted additive score for one task.
// The total is floored at zero for any weight configuration.
func (p *Picker) Score(t *types.PickableTask, preferred []string) Breakdown {
	now := p.now()
	var b Breakdown

	b.Priority = priorityRank[t.Priority] * p.weights.Priority
	b.DueDate, b.Overdue = p.dueDateScore(t, now)
	b.Age = p.ageScore(t, now)
	b.Simplicity = p.simplicityScore(t)
	b.LabelBonus = float64(countLabelMatches(t.Labels, preferred)) * p.weights.LabelMatchBonus
	if t.EstimatedComplexity != nil {
		b.ComplexityPenalty = float64(*t.EstimatedComplexity-1) * p.weights.ComplexityPenalty
	}

	b.Total = b.Priority + b.DueDate + b.Age + b.Simplicity + b.LabelBonus - b.ComplexityPenalty
	if b.Total < 0 {
		b.Total = 0
	}
	return b
}

// dueDateScore is a step function of days-until-due: overdue scores the
// highest multiplier, then decreasing bands at 1, 3, 7 and 14 days out.
func (p *Picker) dueDateScore(t *types.PickableTask, now time.Time) (score float64, overdue bool) {
	if t.DueDate == nil {
		return 0, false
	}
	daysUntil := t.DueDate.Sub(now).Hours() / 24

	var mult float64
	switch {
	case daysUntil < 0:
		mult, overdue = 5, true
	case daysUntil <= 1:
		mult = 4
	case daysUntil <= 3:
		mult = 3
	case daysUntil <= 7:
		mult = 2
	case daysUntil <= 14:
		mult = 1
	default:
		mult = 0
	}
	return mult * p.weights.DueDate, overdue
}

// ageScore rewards tasks that have waited longer, saturating at five weeks.
func (p *Picker) ageScore(t *types.PickableTask, now time.Time) float64 {
	ageHours := now.Sub(t.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	weeks := ageHours / 168
	if weeks > 5 {
		weeks = 5
	}
	return weeks * p.weights.Age
}

// simplicityScore favors tasks with little discussion attached.
func (p *Picker) simplicityScore(t *types.PickableTask) float64 {
	remaining := 10 - t.CommentCount
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining) / 10 * p.weights.Simplicity
}

func countLabelMatches(have, preferred []string) int {
	n := 0
	for _, p := range preferred {
		for _, h := range have {
			if h == p {
				n++
				break
			}
		}
	}
	return n
}

// reason picks the dominant explanation for a winning task, in fixed
// precedence order.
func reason(t *types.PickableTask, b Breakdown) string {
	switch {
	case b.DueDate > 0 && b.Overdue:
		return "Overdue task with highest priority"
	case b.DueDate > 0:
		return "Upcoming due date with high priority"
	case t.Priority == types.PriorityCritical:
		return "Critical priority task"
	case t.Priority == types.PriorityHigh:
		return "High priority task"
	case b.LabelBonus > 0:
		return "Matches preferred labels"
	default:
		return "Highest scoring task"
	}
}

// shortReason names the single most salient scoring driver, used by
// PickTopN where the full precedence chain would be noise.
func shortReason(b Breakdown) string {
	best, label := b.Priority, "High priority"
	if b.DueDate > best {
		best = b.DueDate
		if b.Overdue {
			label = "Overdue"
		} else {
			label = "Due soon"
		}
	}
	if b.Age > best {
		best, label = b.Age, "Aging task"
	}
	if b.LabelBonus > best {
		best, label = b.LabelBonus, "Preferred labels"
	}
	if b.Simplicity > best {
		label = "Quick win"
	}
	return label
}
