package iteration

import (
	"testing"
	"time"

	"triagent/internal/types"
)

func TestCanSpawnConcurrentCap(t *testing.T) {
	e := NewLimitEnforcer(Limits{MaxConcurrent: 2, MaxTotal: 10})

	e.RecordSpawn()
	e.RecordSpawn()

	d := e.CanSpawn()
	if d.Allowed {
		t.Fatal("expected denial at concurrent cap")
	}
	if d.Reason != ReasonMaxConcurrent {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonMaxConcurrent)
	}

	e.RecordCompletion(&Result{})
	if d := e.CanSpawn(); !d.Allowed {
		t.Errorf("expected allowance after completion, got %q", d.Reason)
	}
}

func TestCanSpawnTotalCap(t *testing.T) {
	e := NewLimitEnforcer(Limits{MaxConcurrent: 5, MaxTotal: 2})

	e.RecordSpawn()
	e.RecordCompletion(&Result{})
	e.RecordSpawn()

	d := e.CanSpawn()
	if d.Allowed || d.Reason != ReasonMaxTotal {
		t.Errorf("decision = %+v, want denial %q", d, ReasonMaxTotal)
	}
}

func TestCanSpawnCostCap(t *testing.T) {
	// Limits: max_concurrent 2, total cost cap 1.0. Each completion costs
	// 0.30: exactly 4 spawns proceed before the cost clause denies.
	e := NewLimitEnforcer(Limits{MaxConcurrent: 2, TotalCostCap: 1.0})

	spawns := 0
	for i := 0; i < 10; i++ {
		d := e.CanSpawn()
		if !d.Allowed {
			if d.Reason != ReasonTotalCost {
				t.Fatalf("denied with %q, want %q", d.Reason, ReasonTotalCost)
			}
			break
		}
		spawns++
		e.RecordSpawn()
		e.RecordCompletion(&Result{
			Success: true,
			Usage:   usageWithCost(0.30),
		})
	}

	if spawns != 4 {
		t.Errorf("spawns = %d, want 4", spawns)
	}
}

func TestCanSpawnTokenCap(t *testing.T) {
	e := NewLimitEnforcer(Limits{MaxConcurrent: 4, TotalTokensCap: 100})

	e.RecordSpawn()
	res := &Result{Success: true}
	res.Usage.TotalTokens = 150
	e.RecordCompletion(res)

	d := e.CanSpawn()
	if d.Allowed || d.Reason != ReasonTotalTokens {
		t.Errorf("decision = %+v, want denial %q", d, ReasonTotalTokens)
	}
}

func TestCanSpawnTimeout(t *testing.T) {
	clock := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	e := newLimitEnforcerWithClock(Limits{MaxConcurrent: 2, TotalTimeout: time.Minute}, now)

	if d := e.CanSpawn(); !d.Allowed {
		t.Fatalf("unexpected denial: %q", d.Reason)
	}

	clock = clock.Add(2 * time.Minute)
	d := e.CanSpawn()
	if d.Allowed || d.Reason != ReasonTotalTimeout {
		t.Errorf("decision = %+v, want denial %q", d, ReasonTotalTimeout)
	}
	if e.RemainingTime() != 0 {
		t.Errorf("remaining = %v, want 0", e.RemainingTime())
	}
}

func TestCanSpawnReasonStable(t *testing.T) {
	e := NewLimitEnforcer(Limits{MaxConcurrent: 1, MaxTotal: 1})
	e.RecordSpawn()

	first := e.CanSpawn()
	for i := 0; i < 5; i++ {
		if again := e.CanSpawn(); again != first {
			t.Fatalf("decision changed under identical state: %+v vs %+v", again, first)
		}
	}
}

func TestIterationTimeoutCappedByRemaining(t *testing.T) {
	clock := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	e := newLimitEnforcerWithClock(Limits{
		PerIterationTimeout: 5 * time.Minute,
		TotalTimeout:        10 * time.Minute,
	}, now)

	if got := e.IterationTimeout(); got != 5*time.Minute {
		t.Errorf("timeout = %v, want 5m", got)
	}

	clock = clock.Add(8 * time.Minute)
	if got := e.IterationTimeout(); got != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m (capped by remaining)", got)
	}
}

func usageWithCost(cost float64) types.TokenUsage {
	return types.TokenUsage{EstimatedCost: cost}
}
