package iteration

import (
	"strings"

	"triagent/internal/scoring"
)

// Horizons for the speed and cost bonuses: a run finishing instantly or
// costing nothing earns the full bonus, decaying linearly to zero at the
// horizon.
const (
	speedBonusHorizonMS = 300_000
	costBonusHorizonUSD = 0.5
)

// ScoreWeights weighs the per-result quality signals.
type ScoreWeights struct {
	Confidence     float64 `yaml:"confidence"`
	Completeness   float64 `yaml:"completeness"`
	CodeQuality    float64 `yaml:"code_quality"`
	Responsiveness float64 `yaml:"responsiveness"`
	Speed          float64 `yaml:"speed"`
	Cost           float64 `yaml:"cost"`
}

// DefaultScoreWeights returns the standard result-score weights.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Confidence:     0.2,
		Completeness:   0.3,
		CodeQuality:    0.2,
		Responsiveness: 0.2,
		Speed:          0.05,
		Cost:           0.05,
	}
}

// Penalties applied to unsuccessful or hollow results.
type Penalties struct {
	Timeout    float64 `yaml:"timeout"`
	Error      float64 `yaml:"error"`
	Incomplete float64 `yaml:"incomplete"`
}

// DefaultPenalties returns the standard penalties.
func DefaultPenalties() Penalties {
	return Penalties{
		Timeout:    0.5,
		Error:      1.0,
		Incomplete: 0.3,
	}
}

// ResultScorer derives a result's overall score from its metrics,
// duration and cost. Failed results get penalty-derived scores rather
// than model-derived ones.
type ResultScorer struct {
	weights   ScoreWeights
	penalties Penalties
}

// NewResultScorer creates a scorer with the given weights and penalties.
func NewResultScorer(weights ScoreWeights, penalties Penalties) *ResultScorer {
	return &ResultScorer{weights: weights, penalties: penalties}
}

// Score computes the overall score for one result in [0,1].
func (s *ResultScorer) Score(res *Result) float64 {
	if !res.Success {
		if strings.Contains(strings.ToLower(res.Error), "timeout") {
			return scoring.Clamp01(1 - s.penalties.Timeout)
		}
		return scoring.Clamp01(1 - s.penalties.Error)
	}

	// A success with no output at all is treated as incomplete.
	if strings.TrimSpace(res.Output) == "" {
		return scoring.Clamp01(1 - s.penalties.Incomplete)
	}

	parts := make([]scoring.Weighted, 0, 6)
	if res.Metrics.Confidence != nil {
		parts = append(parts, scoring.Weighted{Value: *res.Metrics.Confidence, Weight: s.weights.Confidence})
	}
	if res.Metrics.Completeness != nil {
		parts = append(parts, scoring.Weighted{Value: *res.Metrics.Completeness, Weight: s.weights.Completeness})
	}
	if res.Metrics.CodeQuality != nil {
		parts = append(parts, scoring.Weighted{Value: *res.Metrics.CodeQuality, Weight: s.weights.CodeQuality})
	}
	if res.Metrics.Responsiveness != nil {
		parts = append(parts, scoring.Weighted{Value: *res.Metrics.Responsiveness, Weight: s.weights.Responsiveness})
	}

	speedBonus := 1 - float64(res.DurationMS)/speedBonusHorizonMS
	if speedBonus < 0 {
		speedBonus = 0
	}
	parts = append(parts, scoring.Weighted{Value: speedBonus, Weight: s.weights.Speed})

	costBonus := 1 - res.Usage.EstimatedCost/costBonusHorizonUSD
	if costBonus < 0 {
		costBonus = 0
	}
	parts = append(parts, scoring.Weighted{Value: costBonus, Weight: s.weights.Cost})

	return scoring.WeightedSum(parts)
}
