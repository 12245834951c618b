package experiments

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"triagent/internal/logging"
)

// Graduation thresholds: an experiment needs this many feedback samples
// before any winner is declared, and the best variant must either lead
// by significanceLead or carry high confidence.
const (
	MinSamplesForSignificance = 30
	significanceLead          = 0.15
	significanceConfidence    = 0.9
)

// Engine runs one agent's experiments.
type Engine struct {
	store *fileStore
	now   func() time.Time
}

// NewEngine roots the engine's state under stateDir for one agent.
func NewEngine(stateDir, agentID string) *Engine {
	return &Engine{store: newFileStore(stateDir, agentID), now: time.Now}
}

// NewEngineWithClock is the testing constructor.
func NewEngineWithClock(stateDir, agentID string, now func() time.Time) *Engine {
	e := NewEngine(stateDir, agentID)
	e.now = now
	return e
}

// CreateExperiment registers a new active experiment. An experiment
// needs at least two variants; allocation outside (0,1] defaults to 1.
func (e *Engine) CreateExperiment(dimension, name string, variants []Variant, trafficAllocation float64) (*Experiment, error) {
	if len(variants) < 2 {
		return nil, fmt.Errorf("experiment needs at least 2 variants, got %d", len(variants))
	}
	if trafficAllocation <= 0 || trafficAllocation > 1 {
		trafficAllocation = 1
	}
	for i := range variants {
		if variants[i].ID == "" {
			variants[i].ID = uuid.NewString()
		}
	}

	exp := &Experiment{
		ID:                uuid.NewString(),
		Dimension:         dimension,
		Name:              name,
		Variants:          variants,
		Active:            true,
		TrafficAllocation: trafficAllocation,
		CreatedAt:         e.now(),
	}
	err := e.store.update(func(s *state) error {
		s.Experiments[exp.ID] = exp
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Experiments("Created experiment %q (%s) with %d variants", name, exp.ID, len(variants))
	return exp, nil
}

// ListExperiments returns all experiments, optionally only active ones,
// newest first.
func (e *Engine) ListExperiments(activeOnly bool) []Experiment {
	var out []Experiment
	e.store.view(func(s *state) {
		for _, exp := range s.Experiments {
			if activeOnly && !exp.Active {
				continue
			}
			out = append(out, *exp)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// GetExperiment loads one experiment by id.
func (e *Engine) GetExperiment(id string) *Experiment {
	var out *Experiment
	e.store.view(func(s *state) {
		if exp, ok := s.Experiments[id]; ok {
			copied := *exp
			out = &copied
		}
	})
	return out
}

// AssignVariant deterministically buckets a session. Nil means the
// session falls outside the experiment's traffic allocation. The same
// inputs always produce the same variant, across processes.
func AssignVariant(exp *Experiment, sessionKey string) *Variant {
	if exp == nil || len(exp.Variants) == 0 {
		return nil
	}
	h := sessionHash(sessionKey, exp.ID)
	if h >= exp.TrafficAllocation {
		return nil
	}
	idx := int(h * float64(len(exp.Variants)))
	if idx >= len(exp.Variants) {
		idx = len(exp.Variants) - 1
	}
	return &exp.Variants[idx]
}

// sessionHash maps (sessionKey, experimentID) to [0,1) via FNV-1a.
func sessionHash(sessionKey, experimentID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(sessionKey))
	h.Write([]byte(experimentID))
	return float64(h.Sum32()) / float64(math.MaxUint32+1)
}

// RecordAssignment stores the session's bucket and counts the exposure.
// Repeat calls for the same (experiment, session) are idempotent.
func (e *Engine) RecordAssignment(experimentID, sessionKey, variantID string) error {
	return e.store.update(func(s *state) error {
		if _, ok := s.Experiments[experimentID]; !ok {
			return fmt.Errorf("unknown experiment %s", experimentID)
		}
		key := stateKey(experimentID, sessionKey)
		if _, seen := s.Assignments[key]; seen {
			return nil
		}
		s.Assignments[key] = &Assignment{
			ExperimentID: experimentID,
			SessionKey:   sessionKey,
			VariantID:    variantID,
			AssignedAt:   e.now(),
		}
		m := e.metricsFor(s, experimentID, variantID)
		m.Exposures++
		return nil
	})
}

// RecordVariantFeedback counts one positive or negative outcome and
// refreshes the variant's derived rates.
func (e *Engine) RecordVariantFeedback(experimentID, variantID string, positive bool) error {
	return e.store.update(func(s *state) error {
		if _, ok := s.Experiments[experimentID]; !ok {
			return fmt.Errorf("unknown experiment %s", experimentID)
		}
		m := e.metricsFor(s, experimentID, variantID)
		if positive {
			m.PositiveCount++
		} else {
			m.NegativeCount++
		}
		total := m.PositiveCount + m.NegativeCount
		m.SuccessRate = float64(m.PositiveCount) / float64(total)
		m.Confidence = float64(total) / float64(MinSamplesForSignificance)
		if m.Confidence > 1 {
			m.Confidence = 1
		}
		return nil
	})
}

func (e *Engine) metricsFor(s *state, experimentID, variantID string) *VariantMetrics {
	key := stateKey(experimentID, variantID)
	m, ok := s.Metrics[key]
	if !ok {
		m = &VariantMetrics{VariantID: variantID}
		s.Metrics[key] = m
	}
	return m
}

// CalculateExperimentResults aggregates per-variant metrics and names a
// winner only past the significance gate.
func (e *Engine) CalculateExperimentResults(experimentID string) (*ExperimentResults, error) {
	var results *ExperimentResults
	var err error
	e.store.view(func(s *state) {
		exp, ok := s.Experiments[experimentID]
		if !ok {
			err = fmt.Errorf("unknown experiment %s", experimentID)
			return
		}

		r := &ExperimentResults{ExperimentID: experimentID}
		for _, v := range exp.Variants {
			m := s.Metrics[stateKey(experimentID, v.ID)]
			if m == nil {
				m = &VariantMetrics{VariantID: v.ID}
			}
			r.Variants = append(r.Variants, *m)
			r.TotalSamples += m.PositiveCount + m.NegativeCount
		}

		if r.TotalSamples >= MinSamplesForSignificance && len(r.Variants) >= 2 {
			sorted := make([]VariantMetrics, len(r.Variants))
			copy(sorted, r.Variants)
			sort.SliceStable(sorted, func(i, j int) bool {
				return sorted[i].SuccessRate > sorted[j].SuccessRate
			})
			best, next := sorted[0], sorted[1]
			if best.SuccessRate >= next.SuccessRate+significanceLead || best.Confidence >= significanceConfidence {
				r.WinningVariant = best.VariantID
			}
		}
		results = r
	})
	return results, err
}

// GraduateWinningVariant deactivates the experiment and returns the
// winner. Graduating without a significant winner is an error.
func (e *Engine) GraduateWinningVariant(experimentID string) (*Variant, error) {
	results, err := e.CalculateExperimentResults(experimentID)
	if err != nil {
		return nil, err
	}
	if results.WinningVariant == "" {
		return nil, fmt.Errorf("experiment %s has no significant winner yet", experimentID)
	}

	var winner *Variant
	err = e.store.update(func(s *state) error {
		exp := s.Experiments[experimentID]
		exp.Active = false
		for i := range exp.Variants {
			if exp.Variants[i].ID == results.WinningVariant {
				copied := exp.Variants[i]
				winner = &copied
				return nil
			}
		}
		return fmt.Errorf("winning variant %s not found on experiment", results.WinningVariant)
	})
	if err != nil {
		return nil, err
	}
	logging.Experiments("Graduated experiment %s: winner %q", experimentID, winner.Name)
	return winner, nil
}

// BuildStrategyInstruction assigns the session across all active
// experiments and returns the combined system-prompt addendum. Empty
// when nothing is enrolled.
func (e *Engine) BuildStrategyInstruction(sessionKey string) (string, error) {
	var lines []string
	for _, exp := range e.ListExperiments(true) {
		v := AssignVariant(&exp, sessionKey)
		if v == nil || v.Instruction == "" {
			continue
		}
		if err := e.RecordAssignment(exp.ID, sessionKey, v.ID); err != nil {
			return "", err
		}
		lines = append(lines, "- "+v.Instruction)
	}
	if len(lines) == 0 {
		return "", nil
	}
	return "Response strategy guidelines:\n" + strings.Join(lines, "\n"), nil
}
