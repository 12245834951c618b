package iteration

import (
	"math"
	"math/rand"
	"strings"
	"testing"
)

func votingResults() []*Result {
	a1 := successResult("v1", 0.70)
	a1.Output = "Answer A"
	a2 := successResult("v2", 0.85)
	a2.Output = "Answer A"
	b := successResult("v3", 0.80)
	b.Output = "Answer B"
	return []*Result{a1, a2, b}
}

func TestAggregateVoting(t *testing.T) {
	agg := Aggregate(votingResults(), AggregateVoting)

	if agg.MergedOutput != "Answer A" {
		t.Errorf("merged = %q, want Answer A", agg.MergedOutput)
	}
	if math.Abs(agg.Confidence-2.0/3.0) > 1e-4 {
		t.Errorf("confidence = %v, want ~0.6667", agg.Confidence)
	}
	if len(agg.Selected) != 2 {
		t.Errorf("selected = %d results, want 2", len(agg.Selected))
	}
}

func TestAggregateBest(t *testing.T) {
	agg := Aggregate(votingResults(), AggregateBest)

	if agg.MergedOutput != "Answer A" {
		t.Errorf("merged = %q, want highest-scoring output", agg.MergedOutput)
	}
	if agg.Confidence != 0.85 {
		t.Errorf("confidence = %v, want winner's score 0.85", agg.Confidence)
	}
}

func TestAggregateConsensusDampening(t *testing.T) {
	multi := Aggregate(votingResults(), AggregateConsensus)
	if math.Abs(multi.Confidence-(2.0/3.0)*0.9) > 1e-4 {
		t.Errorf("confidence = %v, want vote ratio * 0.9", multi.Confidence)
	}

	single := Aggregate([]*Result{successResult("v1", 0.9)}, AggregateConsensus)
	if math.Abs(single.Confidence-0.7) > 1e-9 {
		t.Errorf("confidence = %v, want 0.7 for a lone result", single.Confidence)
	}
}

func TestAggregateEnsemble(t *testing.T) {
	agg := Aggregate(votingResults(), AggregateEnsemble)

	if len(agg.Selected) != 3 {
		t.Errorf("selected = %d, want all 3 successful", len(agg.Selected))
	}
	if !strings.Contains(agg.MergedOutput, "Answer A") || !strings.Contains(agg.MergedOutput, "Answer B") {
		t.Errorf("merged output missing parts: %q", agg.MergedOutput)
	}
	want := (0.70 + 0.85 + 0.80) / 3
	if math.Abs(agg.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want mean %v", agg.Confidence, want)
	}
}

func TestAggregateNoSuccesses(t *testing.T) {
	results := []*Result{failedResult("v1", "err"), failedResult("v2", "timeout")}

	for _, strategy := range []AggregationStrategy{AggregateBest, AggregateVoting, AggregateConsensus, AggregateEnsemble} {
		agg := Aggregate(results, strategy)
		if len(agg.Selected) != 0 || agg.Confidence != 0 {
			t.Errorf("%s: got selected=%d confidence=%v, want empty/0", strategy, len(agg.Selected), agg.Confidence)
		}
		if agg.Reasoning != noSuccessReasoning {
			t.Errorf("%s: reasoning = %q", strategy, agg.Reasoning)
		}
	}
}

func TestAggregatePermutationInvariance(t *testing.T) {
	base := []*Result{
		successResult("v1", 0.70),
		successResult("v2", 0.85),
		successResult("v3", 0.85), // tie with v2 on score
		failedResult("v4", "err"),
	}
	base[0].Output = "A"
	base[1].Output = "B"
	base[2].Output = "B"

	rng := rand.New(rand.NewSource(42))
	for _, strategy := range []AggregationStrategy{AggregateBest, AggregateVoting, AggregateConsensus, AggregateEnsemble} {
		want := Aggregate(base, strategy)
		for i := 0; i < 20; i++ {
			shuffled := make([]*Result, len(base))
			copy(shuffled, base)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

			got := Aggregate(shuffled, strategy)
			if got.MergedOutput != want.MergedOutput || math.Abs(got.Confidence-want.Confidence) > 1e-12 {
				t.Fatalf("%s: permutation changed outcome (%q/%v vs %q/%v)",
					strategy, got.MergedOutput, got.Confidence, want.MergedOutput, want.Confidence)
			}
		}
	}
}
