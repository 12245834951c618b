package channels

import (
	"strings"
	"testing"
	"time"

	"triagent/internal/evaluation"
	"triagent/internal/presentation"
)

func sampleSummary() presentation.SummaryView {
	return presentation.SummaryView{
		TaskID:    "TASK-1",
		TaskTitle: "Fix the retry loop",
		Winner:    &presentation.IterationSummary{SolutionID: "sol-a", Rank: 1, Score: 0.91, IsWinner: true},
		Iterations: []presentation.IterationSummary{
			{SolutionID: "sol-a", Rank: 1, Score: 0.91, Confidence: 0.9, IsWinner: true, Strengths: []string{"All tests pass"}},
			{SolutionID: "sol-b", Rank: 2, Score: 0.74, Confidence: 0.8},
		},
		AutoAcceptance:       evaluation.AutoAcceptDecision{Accept: true, Reason: "All criteria met"},
		EvaluationDurationMS: 1500,
		EvaluatedAt:          time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestRenderSummaryContents(t *testing.T) {
	out := NewTerminal(100).RenderSummary(sampleSummary())

	for _, want := range []string{"TASK-1", "Fix the retry loop", "sol-a", "sol-b", "0.91", "All tests pass", "All criteria met"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "* ") {
		t.Error("winner marker missing")
	}
}

func TestRenderSummaryBanner(t *testing.T) {
	view := sampleSummary()
	view.Winner = nil
	view.Iterations[0].IsWinner = false
	view.Banner = presentation.NoWinnerBanner
	view.AutoAcceptance = evaluation.AutoAcceptDecision{Reason: "no unique winner"}

	out := NewTerminal(100).RenderSummary(view)
	if !strings.Contains(out, presentation.NoWinnerBanner) {
		t.Error("banner not rendered")
	}
	if !strings.Contains(out, "no unique winner") {
		t.Error("auto-accept reason not rendered")
	}
}

func TestRenderDetailContents(t *testing.T) {
	ev := &evaluation.SolutionEvaluation{
		SolutionID:   "sol-a",
		IterationID:  "iter-1",
		OverallScore: 0.82,
		Confidence:   0.9,
		Correctness:  evaluation.Correctness{Overall: 0.9, TestsPass: true, TypeCheckClean: true, LintClean: true, BuildClean: true},
		Safety:       evaluation.Safety{Overall: 0.4, NoDangerousOps: false, DangerousIssues: []string{"process spawning (exec.Command) at line 3"}, NoSecretsExposed: true},
	}
	view := presentation.BuildDetailView(ev, evaluation.DefaultCategoryWeights())

	out := NewTerminal(120).RenderDetail(view)
	for _, want := range []string{"Correctness", "Quality", "Efficiency", "Completeness", "Safety", "pass", "FAIL", "exec.Command"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q", want)
		}
	}
}

func TestRenderActionBarPerContext(t *testing.T) {
	term := NewTerminal(200)

	summary := term.RenderActionBar(presentation.ActionBarConfig{Context: presentation.ContextSummary})
	if !strings.Contains(summary, "reject all") || !strings.Contains(summary, "manual review") {
		t.Errorf("summary bar: %q", summary)
	}

	detail := term.RenderActionBar(presentation.ActionBarConfig{Context: presentation.ContextDetail})
	if !strings.Contains(detail, "back") || strings.Contains(detail, "reject all") {
		t.Errorf("detail bar: %q", detail)
	}

	diff := term.RenderActionBar(presentation.ActionBarConfig{Context: presentation.ContextDiff, FileIndex: 1, FileCount: 3})
	if !strings.Contains(diff, "next file") || !strings.Contains(diff, "file 2/3") {
		t.Errorf("diff bar: %q", diff)
	}
}

func TestRenderTruncatesToWidth(t *testing.T) {
	view := sampleSummary()
	view.TaskTitle = strings.Repeat("very long title ", 20)

	out := NewTerminal(40).RenderSummary(view)
	for _, line := range strings.Split(out, "\n") {
		// Styled lines may carry escape codes; the raw title line must
		// still have been truncated before styling.
		if strings.Contains(line, "very long title very long title very long title very long title") {
			t.Errorf("line not truncated: %q", line)
		}
	}
}
