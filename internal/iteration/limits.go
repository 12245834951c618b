package iteration

import (
	"sync"
	"time"
)

// Spawn-denial reasons. CanSpawn returns the first failing clause.
const (
	ReasonMaxConcurrent = "Max concurrent iterations reached"
	ReasonMaxTotal      = "Max total iterations reached"
	ReasonTotalTimeout  = "Total timeout exceeded"
	ReasonTotalCost     = "Total cost limit exceeded"
	ReasonTotalTokens   = "Total token limit exceeded"
)

// SpawnDecision is the answer to "may I spawn another variation?".
type SpawnDecision struct {
	Allowed bool
	Reason  string // set when not allowed
}

// LimitEnforcer tracks running totals against configured limits.
// Single-writer: mutated only by the owning runner; the mutex exists for
// read-only probes from other goroutines (status queries, tests).
type LimitEnforcer struct {
	mu sync.Mutex

	limits    Limits
	startTime time.Time
	now       func() time.Time

	active      int
	completed   int
	totalCost   float64
	totalTokens int
}

// NewLimitEnforcer starts the clock and returns a fresh enforcer.
func NewLimitEnforcer(limits Limits) *LimitEnforcer {
	return newLimitEnforcerWithClock(limits, time.Now)
}

func newLimitEnforcerWithClock(limits Limits, now func() time.Time) *LimitEnforcer {
	return &LimitEnforcer{
		limits:    limits,
		startTime: now(),
		now:       now,
	}
}

// CanSpawn checks every limit in a fixed order and reports the first
// violated one. The answer is stable under identical state.
func (e *LimitEnforcer) CanSpawn() SpawnDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.limits.MaxConcurrent > 0 && e.active >= e.limits.MaxConcurrent {
		return SpawnDecision{Reason: ReasonMaxConcurrent}
	}
	if e.limits.MaxTotal > 0 && e.active+e.completed >= e.limits.MaxTotal {
		return SpawnDecision{Reason: ReasonMaxTotal}
	}
	if e.limits.TotalTimeout > 0 && e.now().Sub(e.startTime) > e.limits.TotalTimeout {
		return SpawnDecision{Reason: ReasonTotalTimeout}
	}
	if e.limits.TotalCostCap > 0 && e.totalCost > e.limits.TotalCostCap {
		return SpawnDecision{Reason: ReasonTotalCost}
	}
	if e.limits.TotalTokensCap > 0 && e.totalTokens > e.limits.TotalTokensCap {
		return SpawnDecision{Reason: ReasonTotalTokens}
	}
	return SpawnDecision{Allowed: true}
}

// RecordSpawn notes one more variation in flight.
func (e *LimitEnforcer) RecordSpawn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active++
}

// RecordCompletion moves one variation from active to completed and
// accumulates its cost and token consumption.
func (e *LimitEnforcer) RecordCompletion(res *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active > 0 {
		e.active--
	}
	e.completed++
	if res != nil {
		e.totalCost += res.Usage.EstimatedCost
		e.totalTokens += res.Usage.TotalTokens
	}
}

// RemainingTime returns how much of the total timeout is left, floored
// at zero. With no total timeout configured it returns a very large value.
func (e *LimitEnforcer) RemainingTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *LimitEnforcer) remainingLocked() time.Duration {
	if e.limits.TotalTimeout <= 0 {
		return time.Duration(1<<62 - 1)
	}
	remaining := e.limits.TotalTimeout - e.now().Sub(e.startTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IterationTimeout returns the per-iteration timeout capped by the
// remaining total time.
func (e *LimitEnforcer) IterationTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.remainingLocked()
	per := e.limits.PerIterationTimeout
	if per <= 0 || per > remaining {
		return remaining
	}
	return per
}

// ActiveCount returns the number of variations currently in flight.
func (e *LimitEnforcer) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// CompletedCount returns the number of variations that finished.
func (e *LimitEnforcer) CompletedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// TotalCost returns the accumulated estimated cost.
func (e *LimitEnforcer) TotalCost() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalCost
}
