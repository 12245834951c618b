// Package presentation builds the read-only view models shown after an
// evaluation round and maps keystrokes to review actions. Everything
// here is a pure function over its inputs; rendering lives in channels.
package presentation

import (
	"fmt"
	"time"

	"triagent/internal/evaluation"
)

// NoWinnerBanner is shown when ranking produced no unique winner.
const NoWinnerBanner = "No clear winner - manual review required"

// IterationSummary is one row of the summary table.
type IterationSummary struct {
	SolutionID  string
	IterationID string
	Rank        int
	Score       float64
	Confidence  float64
	Strengths   []string
	Weaknesses  []string
	IsWinner    bool
}

// SummaryView is the post-evaluation overview for one task.
type SummaryView struct {
	TaskID               string
	TaskTitle            string
	Winner               *IterationSummary
	Iterations           []IterationSummary
	WinnerStrengths      []string
	WinnerTradeoffs      []string
	AutoAcceptance       evaluation.AutoAcceptDecision
	Banner               string
	EvaluationDurationMS int64
	EvaluatedAt          time.Time
}

// BuildSummaryView assembles the summary from a ranking. Identical
// inputs always produce identical views.
func BuildSummaryView(ranking evaluation.Ranking, accept evaluation.AutoAcceptDecision, taskID, taskTitle string, durationMS int64, evaluatedAt time.Time) SummaryView {
	view := SummaryView{
		TaskID:               taskID,
		TaskTitle:            taskTitle,
		AutoAcceptance:       accept,
		EvaluationDurationMS: durationMS,
		EvaluatedAt:          evaluatedAt,
	}

	for _, s := range ranking.Solutions {
		row := IterationSummary{
			SolutionID:  s.Evaluation.SolutionID,
			IterationID: s.Evaluation.IterationID,
			Rank:        s.Rank,
			Score:       s.Evaluation.OverallScore,
			Confidence:  s.Evaluation.Confidence,
			Strengths:   s.Strengths,
			Weaknesses:  s.Weaknesses,
			IsWinner:    ranking.Winner != nil && s.Evaluation.SolutionID == ranking.Winner.SolutionID,
		}
		view.Iterations = append(view.Iterations, row)
		if row.IsWinner {
			winner := row
			view.Winner = &winner
			view.WinnerStrengths = s.Strengths
			view.WinnerTradeoffs = s.Weaknesses
		}
	}

	if view.Winner == nil && len(view.Iterations) > 0 {
		view.Banner = NoWinnerBanner
	}
	return view
}

// CheckType classifies one breakdown entry.
type CheckType string

const (
	CheckPass  CheckType = "pass"
	CheckFail  CheckType = "fail"
	CheckScore CheckType = "score"
	CheckInfo  CheckType = "info"
)

// CheckSource says whether a check came from tooling or a model.
type CheckSource string

const (
	SourceAutomated CheckSource = "automated"
	SourceLLM       CheckSource = "llm"
)

// CheckResult is one line of a category breakdown.
type CheckResult struct {
	Name    string
	Type    CheckType
	Value   float64
	Message string
	Source  CheckSource
}

// CategoryBreakdown is one rubric category with its ordered checks.
type CategoryBreakdown struct {
	Category string
	Score    float64
	Weight   float64
	Checks   []CheckResult
}

// DetailView is the drill-down for one solution.
type DetailView struct {
	SolutionID     string
	IterationID    string
	OverallScore   float64
	Confidence     float64
	ScoreBreakdown []CategoryBreakdown
	EvaluatedAt    time.Time
}

// BuildDetailView expands one evaluation into per-category check lists.
// Check order within a category is fixed.
func BuildDetailView(ev *evaluation.SolutionEvaluation, weights evaluation.CategoryWeights) DetailView {
	return DetailView{
		SolutionID:   ev.SolutionID,
		IterationID:  ev.IterationID,
		OverallScore: ev.OverallScore,
		Confidence:   ev.Confidence,
		EvaluatedAt:  ev.EvaluatedAt,
		ScoreBreakdown: []CategoryBreakdown{
			correctnessBreakdown(ev.Correctness, weights.Correctness),
			qualityBreakdown(ev.Quality, weights.Quality),
			efficiencyBreakdown(ev.Efficiency, weights.Efficiency),
			completenessBreakdown(ev.Completeness, weights.Completeness),
			safetyBreakdown(ev.Safety, weights.Safety),
		},
	}
}

func boolCheck(name string, ok bool, source CheckSource) CheckResult {
	c := CheckResult{Name: name, Type: CheckPass, Value: 1, Source: source}
	if !ok {
		c.Type = CheckFail
		c.Value = 0
	}
	return c
}

func scoreCheck(name string, value float64, source CheckSource) CheckResult {
	return CheckResult{Name: name, Type: CheckScore, Value: value, Source: source}
}

func correctnessBreakdown(c evaluation.Correctness, weight float64) CategoryBreakdown {
	tests := boolCheck("Tests", c.TestsPass, SourceAutomated)
	tests.Message = c.TestMessage
	return CategoryBreakdown{
		Category: "Correctness",
		Score:    c.Overall,
		Weight:   weight,
		Checks: []CheckResult{
			tests,
			boolCheck("Type check", c.TypeCheckClean, SourceAutomated),
			boolCheck("Lint", c.LintClean, SourceAutomated),
			boolCheck("Build", c.BuildClean, SourceAutomated),
			scoreCheck("Requirement coverage", c.RequirementCoverage, SourceLLM),
			scoreCheck("Edge case handling", c.EdgeCaseHandling, SourceLLM),
		},
	}
}

func qualityBreakdown(q evaluation.Quality, weight float64) CategoryBreakdown {
	return CategoryBreakdown{
		Category: "Quality",
		Score:    q.Overall,
		Weight:   weight,
		Checks: []CheckResult{
			scoreCheck("Complexity", q.ComplexityScore, SourceAutomated),
			scoreCheck("Size of change", q.SizeScore, SourceAutomated),
			scoreCheck("Duplication", q.DuplicationScore, SourceAutomated),
			scoreCheck("Comments", q.CommentScore, SourceAutomated),
			scoreCheck("Naming", q.NamingScore, SourceLLM),
			scoreCheck("Pattern adherence", q.PatternAdherence, SourceLLM),
			scoreCheck("Error handling", q.ErrorHandling, SourceLLM),
		},
	}
}

func efficiencyBreakdown(f evaluation.Efficiency, weight float64) CategoryBreakdown {
	return CategoryBreakdown{
		Category: "Efficiency",
		Score:    f.Overall,
		Weight:   weight,
		Checks: []CheckResult{
			scoreCheck("Algorithmic efficiency", f.AlgorithmicScore, SourceLLM),
			scoreCheck("Resource cleanup", f.ResourceCleanup, SourceAutomated),
			scoreCheck("Concurrency usage", f.AsyncEfficiency, SourceLLM),
		},
	}
}

func completenessBreakdown(c evaluation.Completeness, weight float64) CategoryBreakdown {
	return CategoryBreakdown{
		Category: "Completeness",
		Score:    c.Overall,
		Weight:   weight,
		Checks: []CheckResult{
			scoreCheck("Requirements met", c.RequirementsMet, SourceLLM),
			boolCheck("Documentation added", c.DocumentationAdded, SourceAutomated),
			scoreCheck("Tests added", c.TestsAdded, SourceAutomated),
			boolCheck("Changelog updated", c.ChangelogUpdated, SourceAutomated),
		},
	}
}

func safetyBreakdown(s evaluation.Safety, weight float64) CategoryBreakdown {
	dangerous := boolCheck("No dangerous operations", s.NoDangerousOps, SourceAutomated)
	dangerous.Message = joinIssues(s.DangerousIssues)
	secrets := boolCheck("No secrets exposed", s.NoSecretsExposed, SourceAutomated)
	secrets.Message = joinIssues(s.SecretIssues)
	return CategoryBreakdown{
		Category: "Safety",
		Score:    s.Overall,
		Weight:   weight,
		Checks: []CheckResult{
			dangerous,
			scoreCheck("Security review", s.SecurityReview, SourceLLM),
			secrets,
			scoreCheck("Rollback safety", s.RollbackSafe, SourceLLM),
		},
	}
}

func joinIssues(issues []string) string {
	switch len(issues) {
	case 0:
		return ""
	case 1:
		return issues[0]
	default:
		return fmt.Sprintf("%s (and %d more)", issues[0], len(issues)-1)
	}
}
