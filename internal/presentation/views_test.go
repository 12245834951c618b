package presentation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"triagent/internal/evaluation"
)

var evaluatedAt = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func rankedPair(winnerScore, loserScore float64) evaluation.Ranking {
	mk := func(id string, score float64) *evaluation.SolutionEvaluation {
		return &evaluation.SolutionEvaluation{
			SolutionID:   id,
			IterationID:  "iter-" + id,
			OverallScore: score,
			Confidence:   0.9,
			Correctness:  evaluation.Correctness{Overall: score, TestsPass: true, TestPassFraction: 1, TypeCheckClean: true, LintClean: true, BuildClean: true},
			Safety:       evaluation.Safety{Overall: 0.9, NoDangerousOps: true, NoSecretsExposed: true},
			Completeness: evaluation.Completeness{DocumentationAdded: true},
			Quality:      evaluation.Quality{DuplicationScore: 1},
			EvaluatedAt:  evaluatedAt,
		}
	}
	return evaluation.RankSolutions([]*evaluation.SolutionEvaluation{mk("a", winnerScore), mk("b", loserScore)})
}

func TestBuildSummaryViewWithWinner(t *testing.T) {
	ranking := rankedPair(0.9, 0.7)
	accept := evaluation.ShouldAutoAccept(evaluation.DefaultAutoAcceptConfig(), ranking)

	view := BuildSummaryView(ranking, accept, "task-1", "Fix the retry loop", 1234, evaluatedAt)

	if view.TaskID != "task-1" || view.TaskTitle != "Fix the retry loop" {
		t.Errorf("task fields: %+v", view)
	}
	if view.Winner == nil || view.Winner.SolutionID != "a" {
		t.Fatal("winner row missing")
	}
	if view.Banner != "" {
		t.Errorf("winner present but banner = %q", view.Banner)
	}
	if len(view.Iterations) != 2 {
		t.Fatalf("got %d iteration rows", len(view.Iterations))
	}
	if view.Iterations[0].Rank != 1 || !view.Iterations[0].IsWinner {
		t.Error("first row should be the ranked winner")
	}
	if view.EvaluationDurationMS != 1234 || !view.EvaluatedAt.Equal(evaluatedAt) {
		t.Error("timing fields not carried")
	}
}

func TestBuildSummaryViewNoWinnerBanner(t *testing.T) {
	ranking := rankedPair(0.800, 0.795)
	accept := evaluation.ShouldAutoAccept(evaluation.DefaultAutoAcceptConfig(), ranking)

	view := BuildSummaryView(ranking, accept, "task-1", "title", 0, evaluatedAt)
	if view.Winner != nil {
		t.Fatal("margin under threshold should have no winner")
	}
	if view.Banner != NoWinnerBanner {
		t.Errorf("banner = %q, want %q", view.Banner, NoWinnerBanner)
	}
	if view.AutoAcceptance.Accept {
		t.Error("no winner must not auto-accept")
	}
}

func TestBuildSummaryViewDeterministic(t *testing.T) {
	ranking := rankedPair(0.9, 0.7)
	accept := evaluation.ShouldAutoAccept(evaluation.DefaultAutoAcceptConfig(), ranking)

	a := BuildSummaryView(ranking, accept, "task-1", "title", 42, evaluatedAt)
	b := BuildSummaryView(ranking, accept, "task-1", "title", 42, evaluatedAt)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("identical inputs produced different views:\n%s", diff)
	}
}

func TestBuildDetailViewStructure(t *testing.T) {
	ev := &evaluation.SolutionEvaluation{
		SolutionID:  "sol-1",
		IterationID: "iter-1",
		Correctness: evaluation.Correctness{
			Overall: 0.8, TestsPass: false, TestMessage: "tests failed (exit 1)",
			TypeCheckClean: true, LintClean: true, BuildClean: true,
			RequirementCoverage: 0.7, EdgeCaseHandling: 0.6,
		},
		Safety: evaluation.Safety{
			Overall: 0.5, NoDangerousOps: false,
			DangerousIssues:  []string{"process spawning (exec.Command) at line 3", "dynamic code evaluation (eval) at line 9"},
			NoSecretsExposed: true,
			SecurityReview:   0.6, RollbackSafe: 0.9,
		},
		OverallScore: 0.72,
		Confidence:   0.8,
		EvaluatedAt:  evaluatedAt,
	}

	view := BuildDetailView(ev, evaluation.DefaultCategoryWeights())

	if len(view.ScoreBreakdown) != 5 {
		t.Fatalf("got %d categories, want 5", len(view.ScoreBreakdown))
	}
	wantOrder := []string{"Correctness", "Quality", "Efficiency", "Completeness", "Safety"}
	for i, want := range wantOrder {
		if view.ScoreBreakdown[i].Category != want {
			t.Errorf("category %d = %s, want %s", i, view.ScoreBreakdown[i].Category, want)
		}
	}

	correctness := view.ScoreBreakdown[0]
	if correctness.Weight != 0.4 || correctness.Score != 0.8 {
		t.Errorf("correctness weight/score: %+v", correctness)
	}
	tests := correctness.Checks[0]
	if tests.Name != "Tests" || tests.Type != CheckFail || tests.Message != "tests failed (exit 1)" {
		t.Errorf("tests check: %+v", tests)
	}
	if tests.Source != SourceAutomated {
		t.Error("command checks are automated")
	}

	safety := view.ScoreBreakdown[4]
	dangerous := safety.Checks[0]
	if dangerous.Type != CheckFail {
		t.Error("dangerous ops should fail")
	}
	if dangerous.Message != "process spawning (exec.Command) at line 3 (and 1 more)" {
		t.Errorf("issue message = %q", dangerous.Message)
	}

	llmChecks := 0
	for _, cat := range view.ScoreBreakdown {
		for _, check := range cat.Checks {
			if check.Source == SourceLLM {
				llmChecks++
			}
		}
	}
	if llmChecks == 0 {
		t.Error("model-sourced checks missing from breakdown")
	}
}

func TestBuildDetailViewDeterministic(t *testing.T) {
	ev := &evaluation.SolutionEvaluation{SolutionID: "s", IterationID: "i", OverallScore: 0.5, EvaluatedAt: evaluatedAt}
	a := BuildDetailView(ev, evaluation.DefaultCategoryWeights())
	b := BuildDetailView(ev, evaluation.DefaultCategoryWeights())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("identical inputs produced different views:\n%s", diff)
	}
}
