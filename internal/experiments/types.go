// Package experiments implements per-agent A/B experiments: stable hash
// assignment of sessions to variants, feedback accounting, and winner
// graduation. State lives in one JSON file per agent.
package experiments

import "time"

// Variant is one arm of an experiment. Instruction is the system-prompt
// addendum applied to enrolled sessions.
type Variant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Instruction string `json:"instruction"`
}

// Experiment is one live A/B test along a named dimension (tone,
// verbosity, structure, ...).
type Experiment struct {
	ID                string    `json:"id"`
	Dimension         string    `json:"dimension"`
	Name              string    `json:"name"`
	Variants          []Variant `json:"variants"`
	Active            bool      `json:"active"`
	TrafficAllocation float64   `json:"traffic_allocation"`
	CreatedAt         time.Time `json:"created_at"`
}

// Assignment records that a session was bucketed into a variant.
// At most one exists per (experiment, session).
type Assignment struct {
	ExperimentID string    `json:"experiment_id"`
	SessionKey   string    `json:"session_key"`
	VariantID    string    `json:"variant_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// VariantMetrics accumulates exposures and feedback for one variant.
type VariantMetrics struct {
	VariantID     string  `json:"variant_id"`
	Exposures     int     `json:"exposures"`
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
	SuccessRate   float64 `json:"success_rate"`
	Confidence    float64 `json:"confidence"`
}

// ExperimentResults is the analysis of one experiment. WinningVariant is
// empty until the significance gate passes.
type ExperimentResults struct {
	ExperimentID   string           `json:"experiment_id"`
	TotalSamples   int              `json:"total_samples"`
	Variants       []VariantMetrics `json:"variants"`
	WinningVariant string           `json:"winning_variant,omitempty"`
}
