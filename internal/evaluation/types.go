package evaluation

import (
	"fmt"
	"math"
	"time"
)

// CategoryWeights weighs the five rubric categories. They must sum to 1.
type CategoryWeights struct {
	Correctness  float64 `yaml:"correctness"`
	Quality      float64 `yaml:"quality"`
	Efficiency   float64 `yaml:"efficiency"`
	Completeness float64 `yaml:"completeness"`
	Safety       float64 `yaml:"safety"`
}

// DefaultCategoryWeights returns the standard category weights.
func DefaultCategoryWeights() CategoryWeights {
	return CategoryWeights{
		Correctness:  0.4,
		Quality:      0.25,
		Efficiency:   0.15,
		Completeness: 0.1,
		Safety:       0.1,
	}
}

// weightSumTolerance bounds acceptable floating error in the weight sum.
const weightSumTolerance = 1e-6

// Validate rejects weight sets that do not sum to 1.
func (w CategoryWeights) Validate() error {
	sum := w.Correctness + w.Quality + w.Efficiency + w.Completeness + w.Safety
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("category weights sum to %v, expected 1.0", sum)
	}
	return nil
}

// Correctness covers verification commands plus model-judged coverage.
type Correctness struct {
	TestsPass           bool
	TestPassFraction    float64
	TestMessage         string
	TypeCheckClean      bool
	LintClean           bool
	BuildClean          bool
	RequirementCoverage float64
	EdgeCaseHandling    float64
	Overall             float64
}

// Quality combines deterministic structure metrics with model judgement.
type Quality struct {
	ComplexityScore  float64
	SizeScore        float64
	DuplicationScore float64
	CommentScore     float64
	NamingScore      float64
	PatternAdherence float64
	ErrorHandling    float64
	Overall          float64
}

// Efficiency covers algorithmic and resource behavior.
type Efficiency struct {
	AlgorithmicScore float64
	ResourceCleanup  float64
	AsyncEfficiency  float64
	Overall          float64
}

// Completeness covers whether the task is actually done.
type Completeness struct {
	RequirementsMet    float64
	DocumentationAdded bool
	TestsAdded         float64
	ChangelogUpdated   bool
	Overall            float64
}

// Safety covers the hard gates plus model review.
type Safety struct {
	NoDangerousOps   bool
	DangerousIssues  []string
	SecurityReview   float64
	NoSecretsExposed bool
	SecretIssues     []string
	RollbackSafe     float64
	Overall          float64
}

// SolutionEvaluation is the full five-category score record for one
// solution. Category Overall fields and OverallScore are all in [0,1].
type SolutionEvaluation struct {
	SolutionID  string
	IterationID string

	Correctness  Correctness
	Quality      Quality
	Efficiency   Efficiency
	Completeness Completeness
	Safety       Safety

	OverallScore float64
	Confidence   float64
	EvaluatedAt  time.Time
}
