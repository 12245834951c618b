package evaluation

import (
	"context"
	"fmt"
	"time"

	"triagent/internal/analysis"
	"triagent/internal/logging"
	"triagent/internal/scoring"
)

// CommandSpec is one configured verification command.
type CommandSpec struct {
	Name string   `yaml:"name"`
	Cmd  string   `yaml:"cmd"`
	Args []string `yaml:"args"`
}

// EvaluatorConfig configures the evaluator. Nil command specs skip that
// verification step (its boolean scores as a pass with zero weight).
type EvaluatorConfig struct {
	Weights          CategoryWeights
	TestCommand      *CommandSpec
	TypeCheckCommand *CommandSpec
	LintCommand      *CommandSpec
	BuildCommand     *CommandSpec
	WorkDir          string
}

// DefaultEvaluatorConfig returns a config with standard weights and no
// verification commands.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{Weights: DefaultCategoryWeights()}
}

// Evaluator produces SolutionEvaluations. Construction fails on invalid
// weights; evaluation itself absorbs all recoverable per-check failures.
type Evaluator struct {
	cfg  EvaluatorConfig
	deps ComparatorDeps
}

// NewEvaluator validates the config and wires the dependencies.
func NewEvaluator(cfg EvaluatorConfig, deps ComparatorDeps) (*Evaluator, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Evaluator{cfg: cfg, deps: deps}, nil
}

// assessOutcome is one model assessment plus whether it actually ran.
type assessOutcome struct {
	score      float64
	confidence float64
	ok         bool
}

// Evaluate scores one solution across all five categories.
func (e *Evaluator) Evaluate(ctx context.Context, input SolutionInput) (*SolutionEvaluation, error) {
	timer := logging.StartTimer(logging.CategoryEval, "Evaluate")
	defer timer.Stop()

	logging.Eval("Evaluating solution %s (iteration %s)", input.SolutionID, input.IterationID)

	var confidences []float64
	assess := func(prompt string) assessOutcome {
		out := e.assess(ctx, prompt, input)
		if out.ok {
			confidences = append(confidences, out.confidence)
		}
		return out
	}

	eval := &SolutionEvaluation{
		SolutionID:  input.SolutionID,
		IterationID: input.IterationID,
		EvaluatedAt: e.deps.Now(),
	}

	eval.Correctness = e.evaluateCorrectness(ctx, input, assess)
	eval.Quality = e.evaluateQuality(input, assess)
	eval.Efficiency = e.evaluateEfficiency(input, assess)
	eval.Completeness = e.evaluateCompleteness(input, assess)
	eval.Safety = e.evaluateSafety(input, assess)

	eval.OverallScore = scoring.WeightedSum([]scoring.Weighted{
		{Value: eval.Correctness.Overall, Weight: e.cfg.Weights.Correctness},
		{Value: eval.Quality.Overall, Weight: e.cfg.Weights.Quality},
		{Value: eval.Efficiency.Overall, Weight: e.cfg.Weights.Efficiency},
		{Value: eval.Completeness.Overall, Weight: e.cfg.Weights.Completeness},
		{Value: eval.Safety.Overall, Weight: e.cfg.Weights.Safety},
	})

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		eval.Confidence = sum / float64(len(confidences))
	} else {
		eval.Confidence = 0.5
	}

	logging.Eval("Solution %s scored %.3f (confidence %.2f)", input.SolutionID, eval.OverallScore, eval.Confidence)
	return eval, nil
}

// assess runs one model assessment. A missing or failing assessor
// defaults the sub-score to 0.5 with zero confidence.
func (e *Evaluator) assess(ctx context.Context, prompt string, input SolutionInput) assessOutcome {
	if e.deps.Assess == nil {
		return assessOutcome{score: 0.5}
	}
	res, err := e.deps.Assess(ctx, AssessRequest{
		Prompt:       prompt,
		SolutionCode: input.SolutionCode,
		OriginalCode: input.OriginalCode,
		Task:         input.TaskDescription,
	})
	if err != nil {
		logging.Get(logging.CategoryEval).Warn("Assessment failed (%s): %v", prompt, err)
		return assessOutcome{score: 0.5}
	}
	return assessOutcome{
		score:      scoring.Clamp01(res.Score),
		confidence: scoring.Clamp01(res.Confidence),
		ok:         true,
	}
}

// commandCheck runs one verification command. A SpawnCommand error is a
// recorded failure, never a thrown one.
func (e *Evaluator) commandCheck(ctx context.Context, spec *CommandSpec) (passed bool, ran bool, msg string) {
	if spec == nil || e.deps.SpawnCommand == nil {
		return false, false, ""
	}
	res, err := e.deps.SpawnCommand(ctx, spec.Cmd, spec.Args, e.cfg.WorkDir, nil)
	if err != nil {
		return false, true, fmt.Sprintf("%s could not run: %v", spec.Name, err)
	}
	if !res.Success {
		out := res.Stderr
		if out == "" {
			out = res.Stdout
		}
		return false, true, fmt.Sprintf("%s failed (exit %d): %.200s", spec.Name, res.ExitCode, out)
	}
	return true, true, ""
}

func (e *Evaluator) evaluateCorrectness(ctx context.Context, input SolutionInput, assess func(string) assessOutcome) Correctness {
	var c Correctness

	var parts []scoring.Weighted

	testPass, testRan, testMsg := e.commandCheck(ctx, e.cfg.TestCommand)
	c.TestsPass = testPass
	c.TestMessage = testMsg
	if testRan {
		c.TestPassFraction = scoring.FromBool(testPass)
		parts = append(parts, scoring.Weighted{Value: c.TestPassFraction, Weight: 0.35})
	}

	if pass, ran, _ := e.commandCheck(ctx, e.cfg.TypeCheckCommand); ran {
		c.TypeCheckClean = pass
		parts = append(parts, scoring.Weighted{Value: scoring.FromBool(pass), Weight: 0.15})
	} else {
		c.TypeCheckClean = true
	}
	if pass, ran, _ := e.commandCheck(ctx, e.cfg.LintCommand); ran {
		c.LintClean = pass
		parts = append(parts, scoring.Weighted{Value: scoring.FromBool(pass), Weight: 0.1})
	} else {
		c.LintClean = true
	}
	if pass, ran, _ := e.commandCheck(ctx, e.cfg.BuildCommand); ran {
		c.BuildClean = pass
		parts = append(parts, scoring.Weighted{Value: scoring.FromBool(pass), Weight: 0.15})
	} else {
		c.BuildClean = true
	}

	coverage := assess("Rate how completely this solution covers the stated requirements.")
	edge := assess("Rate how well this solution handles edge cases and error paths.")
	c.RequirementCoverage = coverage.score
	c.EdgeCaseHandling = edge.score
	parts = append(parts,
		scoring.Weighted{Value: coverage.score, Weight: 0.15},
		scoring.Weighted{Value: edge.score, Weight: 0.10},
	)

	c.Overall = scoring.WeightedSum(parts)
	return c
}

func (e *Evaluator) evaluateQuality(input SolutionInput, assess func(string) assessOutcome) Quality {
	var q Quality

	q.ComplexityScore = analysis.EstimateComplexity(input.SolutionCode).Score
	q.SizeScore = analysis.MeasureSize(input.OriginalCode, input.SolutionCode).Score
	q.DuplicationScore = scoring.Inverse(analysis.EstimateDuplication(input.SolutionCode))
	q.CommentScore = commentScore(analysis.CommentRatio(input.SolutionCode))

	q.NamingScore = assess("Rate the clarity and consistency of naming in this solution.").score
	q.PatternAdherence = assess("Rate how well this solution follows the codebase's established patterns.").score
	q.ErrorHandling = assess("Rate the robustness of error handling in this solution.").score

	q.Overall = scoring.WeightedSum([]scoring.Weighted{
		{Value: q.ComplexityScore, Weight: 0.2},
		{Value: q.SizeScore, Weight: 0.1},
		{Value: q.DuplicationScore, Weight: 0.15},
		{Value: q.CommentScore, Weight: 0.1},
		{Value: q.NamingScore, Weight: 0.15},
		{Value: q.PatternAdherence, Weight: 0.15},
		{Value: q.ErrorHandling, Weight: 0.15},
	})
	return q
}

// commentScore maps a raw comment ratio to [0,1]: around 10-30% comments
// is healthy, zero comments and wall-of-comment files both score lower.
func commentScore(ratio float64) float64 {
	switch {
	case ratio >= 0.1 && ratio <= 0.3:
		return 1
	case ratio > 0.3:
		return scoring.Clamp01(1 - (ratio-0.3)*2)
	default:
		return scoring.Clamp01(0.5 + ratio*5)
	}
}

func (e *Evaluator) evaluateEfficiency(input SolutionInput, assess func(string) assessOutcome) Efficiency {
	var f Efficiency

	f.AlgorithmicScore = assess("Rate the algorithmic efficiency of this solution.").score
	f.ResourceCleanup = analysis.ResourceCleanupScore(input.SolutionCode)
	f.AsyncEfficiency = assess("Rate whether concurrency and blocking operations are used efficiently.").score

	f.Overall = scoring.WeightedSum([]scoring.Weighted{
		{Value: f.AlgorithmicScore, Weight: 0.5},
		{Value: f.ResourceCleanup, Weight: 0.25},
		{Value: f.AsyncEfficiency, Weight: 0.25},
	})
	return f
}

func (e *Evaluator) evaluateCompleteness(input SolutionInput, assess func(string) assessOutcome) Completeness {
	var c Completeness

	c.RequirementsMet = assess("Rate whether every requirement of the task has been implemented.").score
	c.DocumentationAdded = analysis.DocumentationAdded(input.SolutionCode)
	c.TestsAdded = analysis.TestsRatio(input.ChangedFiles)
	c.ChangelogUpdated = analysis.ChangelogUpdated(input.ChangedFiles)

	c.Overall = scoring.WeightedSum([]scoring.Weighted{
		{Value: c.RequirementsMet, Weight: 0.5},
		{Value: scoring.FromBool(c.DocumentationAdded), Weight: 0.15},
		{Value: c.TestsAdded, Weight: 0.25},
		{Value: scoring.FromBool(c.ChangelogUpdated), Weight: 0.1},
	})
	return c
}

func (e *Evaluator) evaluateSafety(input SolutionInput, assess func(string) assessOutcome) Safety {
	var s Safety

	dangerous := analysis.DangerousOps(input.SolutionCode)
	secrets := analysis.SecretsExposed(input.SolutionCode)
	s.NoDangerousOps = dangerous.Safe
	s.DangerousIssues = dangerous.Issues
	s.NoSecretsExposed = secrets.Safe
	s.SecretIssues = secrets.Issues

	s.SecurityReview = assess("Review this solution for security vulnerabilities and rate it.").score
	s.RollbackSafe = assess("Rate how safely this change could be rolled back.").score

	s.Overall = scoring.WeightedSum([]scoring.Weighted{
		{Value: scoring.FromBool(s.NoDangerousOps), Weight: 0.3},
		{Value: s.SecurityReview, Weight: 0.25},
		{Value: scoring.FromBool(s.NoSecretsExposed), Weight: 0.3},
		{Value: s.RollbackSafe, Weight: 0.15},
	})
	return s
}
