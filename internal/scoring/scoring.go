// Package scoring provides the pure numeric primitives shared by the task
// picker, result scorer and solution evaluator. Every score lives in [0,1]
// unless a caller explicitly scales it.
package scoring

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FromBool converts a boolean check into a score: 1 for pass, 0 for fail.
func FromBool(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// FromRatio converts numerator/denominator into a clamped score.
// A zero denominator scores 0.
func FromRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return Clamp01(num / den)
}

// Inverse returns 1-v clamped to [0,1]. Useful for penalty-style inputs
// where a higher raw value means a worse outcome.
func Inverse(v float64) float64 {
	return Clamp01(1 - v)
}

// Weighted is one (value, weight) pair for WeightedSum.
type Weighted struct {
	Value  float64
	Weight float64
}

// WeightedSum computes the weighted average of the given pairs, normalized
// by the sum of the weights actually present. Pairs with zero weight are
// ignored. Returns 0 when no weight was contributed.
func WeightedSum(parts []Weighted) float64 {
	var sum, weight float64
	for _, p := range parts {
		if p.Weight == 0 {
			continue
		}
		sum += p.Value * p.Weight
		weight += p.Weight
	}
	if weight == 0 {
		return 0
	}
	return Clamp01(sum / weight)
}
