package evaluation

import (
	"fmt"
	"sort"

	"triagent/internal/logging"
)

// winnerMargin is the minimum lead over second place that makes a winner
// unambiguous. Closer than this the ranking reports no winner.
const winnerMargin = 0.01

// RankedSolution is one evaluation with its rank and narrative notes.
type RankedSolution struct {
	Rank       int
	Evaluation *SolutionEvaluation
	Strengths  []string
	Weaknesses []string
}

// Ranking orders evaluations best-first. Winner is nil when the top two
// are within winnerMargin of each other.
type Ranking struct {
	Solutions  []RankedSolution
	Winner     *SolutionEvaluation
	Confidence float64
}

// RankSolutions orders evaluations by overall score, breaking ties on
// correctness, then safety, then input order.
func RankSolutions(evals []*SolutionEvaluation) Ranking {
	ranked := make([]RankedSolution, 0, len(evals))
	for _, ev := range evals {
		ranked = append(ranked, RankedSolution{
			Evaluation: ev,
			Strengths:  strengths(ev),
			Weaknesses: weaknesses(ev),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Evaluation, ranked[j].Evaluation
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.Correctness.Overall != b.Correctness.Overall {
			return a.Correctness.Overall > b.Correctness.Overall
		}
		return a.Safety.Overall > b.Safety.Overall
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	r := Ranking{Solutions: ranked}
	switch {
	case len(ranked) == 0:
		return r
	case len(ranked) == 1:
		r.Winner = ranked[0].Evaluation
	case ranked[0].Evaluation.OverallScore-ranked[1].Evaluation.OverallScore >= winnerMargin:
		r.Winner = ranked[0].Evaluation
	}

	if r.Winner != nil {
		r.Confidence = r.Winner.Confidence
		logging.Eval("Winner: %s (%.3f, margin over second %.3f)",
			r.Winner.SolutionID, r.Winner.OverallScore, topMargin(ranked))
	} else {
		var sum float64
		for _, s := range ranked {
			sum += s.Evaluation.Confidence
		}
		r.Confidence = sum / float64(len(ranked))
		logging.Eval("No clear winner among %d solutions (margin %.3f)", len(ranked), topMargin(ranked))
	}
	return r
}

func topMargin(ranked []RankedSolution) float64 {
	if len(ranked) < 2 {
		return 0
	}
	return ranked[0].Evaluation.OverallScore - ranked[1].Evaluation.OverallScore
}

func strengths(ev *SolutionEvaluation) []string {
	var out []string
	if ev.Correctness.TestPassFraction >= 0.95 && ev.Correctness.TestsPass {
		out = append(out, "All tests pass")
	}
	if ev.Correctness.TypeCheckClean && ev.Correctness.LintClean {
		out = append(out, "Clean type check and lint")
	}
	if ev.Quality.Overall >= 0.8 {
		out = append(out, "High code quality")
	}
	if ev.Efficiency.Overall >= 0.8 {
		out = append(out, "Efficient implementation")
	}
	if ev.Completeness.TestsAdded > 0 {
		out = append(out, "Includes new tests")
	}
	if ev.Safety.NoDangerousOps && ev.Safety.NoSecretsExposed && ev.Safety.Overall >= 0.8 {
		out = append(out, "No safety concerns")
	}
	return out
}

func weaknesses(ev *SolutionEvaluation) []string {
	var out []string
	if !ev.Correctness.TestsPass && ev.Correctness.TestMessage != "" {
		out = append(out, fmt.Sprintf("Tests failing: %s", ev.Correctness.TestMessage))
	}
	if !ev.Correctness.LintClean {
		out = append(out, "Lint errors present")
	}
	if !ev.Correctness.BuildClean {
		out = append(out, "Build failing")
	}
	if !ev.Completeness.DocumentationAdded {
		out = append(out, "Missing documentation")
	}
	if !ev.Safety.NoDangerousOps {
		out = append(out, "Dangerous operations detected")
	}
	if !ev.Safety.NoSecretsExposed {
		out = append(out, "Secrets exposed in code")
	}
	if ev.Quality.DuplicationScore < 0.7 {
		out = append(out, "Significant code duplication")
	}
	return out
}
