package iteration

import (
	"fmt"
	"sort"
	"strings"
)

// AggregationStrategy selects how collected results fold into one answer.
type AggregationStrategy string

const (
	AggregateBest      AggregationStrategy = "best"
	AggregateVoting    AggregationStrategy = "voting"
	AggregateConsensus AggregationStrategy = "consensus"
	AggregateEnsemble  AggregationStrategy = "ensemble"
)

// ensembleSeparator joins outputs in ensemble aggregation.
const ensembleSeparator = "\n\n=== VARIATION ===\n\n"

// Aggregated is the folded outcome of a plan's results.
type Aggregated struct {
	Strategy     AggregationStrategy
	Selected     []*Result
	MergedOutput string
	Confidence   float64
	Reasoning    string
}

// noSuccessReasoning is the user-visible reasoning when nothing succeeded.
const noSuccessReasoning = "No successful results to aggregate"

// Aggregate folds results according to the strategy. The outcome is
// invariant to the observation order of the results: all tie-breaks are
// on content, never on position.
func Aggregate(results []*Result, strategy AggregationStrategy) Aggregated {
	successful := make([]*Result, 0, len(results))
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
		}
	}

	if len(successful) == 0 {
		return Aggregated{
			Strategy:  strategy,
			Selected:  []*Result{},
			Reasoning: noSuccessReasoning,
		}
	}

	// Canonical order: score descending, then variation id. This makes
	// every strategy a pure function of the result set.
	sort.SliceStable(successful, func(i, j int) bool {
		if successful[i].Metrics.OverallScore != successful[j].Metrics.OverallScore {
			return successful[i].Metrics.OverallScore > successful[j].Metrics.OverallScore
		}
		return successful[i].VariationID < successful[j].VariationID
	})

	switch strategy {
	case AggregateVoting:
		return aggregateByVote(successful, strategy, 0)
	case AggregateConsensus:
		factor := 0.7
		if len(successful) > 1 {
			factor = 0.9
		}
		return aggregateByVote(successful, strategy, factor)
	case AggregateEnsemble:
		return aggregateEnsemble(successful)
	default:
		return aggregateBest(successful)
	}
}

func aggregateBest(successful []*Result) Aggregated {
	winner := successful[0]
	return Aggregated{
		Strategy:     AggregateBest,
		Selected:     []*Result{winner},
		MergedOutput: winner.Output,
		Confidence:   winner.Metrics.OverallScore,
		Reasoning:    fmt.Sprintf("Selected highest scoring result (%.2f) from %d successful variations", winner.Metrics.OverallScore, len(successful)),
	}
}

// aggregateByVote groups outputs by exact string equality and picks the
// most frequent group. With dampen > 0 (consensus), confidence is the
// vote ratio scaled by the dampening factor.
func aggregateByVote(successful []*Result, strategy AggregationStrategy, dampen float64) Aggregated {
	groups := make(map[string][]*Result)
	for _, r := range successful {
		groups[r.Output] = append(groups[r.Output], r)
	}

	var winnerOutput string
	winnerSize := -1
	for output, members := range groups {
		if len(members) > winnerSize || (len(members) == winnerSize && output < winnerOutput) {
			winnerOutput = output
			winnerSize = len(members)
		}
	}

	confidence := float64(winnerSize) / float64(len(successful))
	reasoning := fmt.Sprintf("%d of %d variations produced this output", winnerSize, len(successful))
	if dampen > 0 {
		confidence *= dampen
		reasoning = fmt.Sprintf("Consensus across %d of %d variations", winnerSize, len(successful))
	}

	return Aggregated{
		Strategy:     strategy,
		Selected:     groups[winnerOutput],
		MergedOutput: winnerOutput,
		Confidence:   confidence,
		Reasoning:    reasoning,
	}
}

func aggregateEnsemble(successful []*Result) Aggregated {
	outputs := make([]string, len(successful))
	var sum float64
	for i, r := range successful {
		outputs[i] = r.Output
		sum += r.Metrics.OverallScore
	}

	return Aggregated{
		Strategy:     AggregateEnsemble,
		Selected:     successful,
		MergedOutput: strings.Join(outputs, ensembleSeparator),
		Confidence:   sum / float64(len(successful)),
		Reasoning:    fmt.Sprintf("Combined %d successful outputs", len(successful)),
	}
}
