package evaluation

import "fmt"

// AutoAcceptConfig gates unattended acceptance of a ranked winner.
type AutoAcceptConfig struct {
	MinScore      float64 `yaml:"min_score"`
	MinConfidence float64 `yaml:"min_confidence"`
	MinMargin     float64 `yaml:"min_margin"`
}

// DefaultAutoAcceptConfig returns the standard acceptance thresholds.
func DefaultAutoAcceptConfig() AutoAcceptConfig {
	return AutoAcceptConfig{
		MinScore:      0.85,
		MinConfidence: 0.8,
		MinMargin:     0.05,
	}
}

// AutoAcceptDecision records the outcome and the first gate that failed.
type AutoAcceptDecision struct {
	Accept bool
	Reason string
}

// ShouldAutoAccept checks the gates in a fixed order: winner existence,
// score, confidence, safety, margin. The first failing gate is the
// reported reason.
func ShouldAutoAccept(cfg AutoAcceptConfig, ranking Ranking) AutoAcceptDecision {
	w := ranking.Winner
	if w == nil {
		return AutoAcceptDecision{Reason: "no unique winner"}
	}
	if w.OverallScore < cfg.MinScore {
		return AutoAcceptDecision{Reason: fmt.Sprintf("score %.2f below threshold %.2f", w.OverallScore, cfg.MinScore)}
	}
	if w.Confidence < cfg.MinConfidence {
		return AutoAcceptDecision{Reason: fmt.Sprintf("confidence too low (%.2f < %.2f)", w.Confidence, cfg.MinConfidence)}
	}
	if !w.Safety.NoDangerousOps || !w.Safety.NoSecretsExposed {
		return AutoAcceptDecision{Reason: "safety failure"}
	}
	if len(ranking.Solutions) > 1 {
		margin := topMargin(ranking.Solutions)
		if margin < cfg.MinMargin {
			return AutoAcceptDecision{Reason: fmt.Sprintf("winner margin too small (%.3f < %.3f)", margin, cfg.MinMargin)}
		}
	}
	return AutoAcceptDecision{Accept: true, Reason: "All criteria met"}
}
