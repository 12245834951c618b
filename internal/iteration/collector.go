package iteration

import (
	"sync"

	"triagent/internal/logging"
)

// ResultListener is notified once per inserted result, in insertion order.
type ResultListener func(*Result)

// Collector accumulates per-variation results, fires listeners, and
// evaluates the plan's completion criteria after each insertion.
// Single writer (the runner), multi-reader.
type Collector struct {
	mu sync.RWMutex

	results   map[string]*Result // keyed by variation id
	order     []string           // insertion order
	listeners []ResultListener

	criteria CompletionCriteria
	expected int // number of variations in the plan
	complete bool
}

// NewCollector creates a collector for a plan with the given number of
// variations and completion criteria.
func NewCollector(expected int, criteria CompletionCriteria) *Collector {
	return &Collector{
		results:  make(map[string]*Result, expected),
		criteria: criteria,
		expected: expected,
	}
}

// OnResult registers a listener. Listeners run synchronously inside Add,
// at most once per variation.
func (c *Collector) OnResult(fn ResultListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Add inserts a result. A second result for the same variation is
// rejected; results are immutable once inserted. Returns whether the
// result was accepted.
func (c *Collector) Add(res *Result) bool {
	c.mu.Lock()
	if _, dup := c.results[res.VariationID]; dup {
		c.mu.Unlock()
		logging.IterationDebug("Duplicate result for variation %s dropped", res.VariationID)
		return false
	}
	c.results[res.VariationID] = res
	c.order = append(c.order, res.VariationID)
	c.evaluateLocked()
	listeners := make([]ResultListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(res)
	}
	return true
}

// evaluateLocked re-checks the completion criteria. Once complete, a
// collector stays complete.
func (c *Collector) evaluateLocked() {
	if c.complete {
		return
	}

	successes := 0
	for _, r := range c.results {
		if r.Success {
			successes++
			if c.criteria.MinAcceptableScore > 0 && r.Metrics.OverallScore >= c.criteria.MinAcceptableScore {
				c.complete = true
				return
			}
		}
	}

	switch {
	case c.criteria.MinSuccessfulVariations > 0 && successes >= c.criteria.MinSuccessfulVariations:
		c.complete = true
	case c.criteria.StopOnFirstSuccess && successes >= 1:
		c.complete = true
	case c.criteria.WaitForAll && len(c.results) >= c.expected:
		c.complete = true
	case !c.criteria.WaitForAll && len(c.results) >= c.expected:
		// Default fallback: a result exists for every variation.
		c.complete = true
	}
}

// IsComplete reports whether the completion criteria are satisfied.
func (c *Collector) IsComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.complete
}

// Results returns the collected results in insertion order.
func (c *Collector) Results() []*Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Result, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.results[id])
	}
	return out
}

// SuccessCount returns the number of successful results so far.
func (c *Collector) SuccessCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, r := range c.results {
		if r.Success {
			n++
		}
	}
	return n
}

// Best returns the successful result with the highest overall score, or
// nil when none succeeded. Ties break toward the lexicographically
// smallest variation id so the answer is insertion-order independent.
func (c *Collector) Best() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Result
	for _, id := range c.order {
		r := c.results[id]
		if !r.Success {
			continue
		}
		if best == nil ||
			r.Metrics.OverallScore > best.Metrics.OverallScore ||
			(r.Metrics.OverallScore == best.Metrics.OverallScore && r.VariationID < best.VariationID) {
			best = r
		}
	}
	return best
}

// Count returns how many results have been collected.
func (c *Collector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
