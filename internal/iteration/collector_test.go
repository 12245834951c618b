package iteration

import (
	"testing"
)

func successResult(id string, score float64) *Result {
	r := &Result{VariationID: id, Success: true, Output: "output " + id}
	r.Metrics.OverallScore = score
	return r
}

func failedResult(id, errMsg string) *Result {
	return &Result{VariationID: id, Error: errMsg}
}

func TestCollectorDefaultCompletion(t *testing.T) {
	c := NewCollector(2, CompletionCriteria{})

	c.Add(successResult("v1", 0.8))
	if c.IsComplete() {
		t.Fatal("complete after 1/2 results")
	}
	c.Add(failedResult("v2", "boom"))
	if !c.IsComplete() {
		t.Fatal("not complete after 2/2 results (failures count as results)")
	}
}

func TestCollectorMinAcceptableScore(t *testing.T) {
	c := NewCollector(3, CompletionCriteria{MinAcceptableScore: 0.9})

	c.Add(successResult("v1", 0.7))
	if c.IsComplete() {
		t.Fatal("0.7 should not satisfy 0.9")
	}
	c.Add(successResult("v2", 0.95))
	if !c.IsComplete() {
		t.Fatal("0.95 should satisfy 0.9")
	}
}

func TestCollectorStopOnFirstSuccess(t *testing.T) {
	c := NewCollector(3, CompletionCriteria{StopOnFirstSuccess: true})

	c.Add(failedResult("v1", "err"))
	if c.IsComplete() {
		t.Fatal("failure should not trigger stop-on-first-success")
	}
	c.Add(successResult("v2", 0.2))
	if !c.IsComplete() {
		t.Fatal("expected completion after first success")
	}
}

func TestCollectorMinSuccessfulVariations(t *testing.T) {
	c := NewCollector(5, CompletionCriteria{MinSuccessfulVariations: 2})

	c.Add(successResult("v1", 0.5))
	c.Add(failedResult("v2", "err"))
	if c.IsComplete() {
		t.Fatal("one success should not satisfy min 2")
	}
	c.Add(successResult("v3", 0.5))
	if !c.IsComplete() {
		t.Fatal("two successes should satisfy min 2")
	}
}

func TestCollectorCompletionMonotonic(t *testing.T) {
	c := NewCollector(3, CompletionCriteria{StopOnFirstSuccess: true})

	c.Add(successResult("v1", 0.9))
	if !c.IsComplete() {
		t.Fatal("expected complete")
	}
	// Further insertions never flip completion back.
	c.Add(failedResult("v2", "late failure"))
	if !c.IsComplete() {
		t.Fatal("completion must be monotonic")
	}
}

func TestCollectorListenerFiresOncePerVariation(t *testing.T) {
	c := NewCollector(2, CompletionCriteria{})

	var seen []string
	c.OnResult(func(r *Result) { seen = append(seen, r.VariationID) })

	c.Add(successResult("v1", 0.5))
	if ok := c.Add(successResult("v1", 0.9)); ok {
		t.Fatal("duplicate insertion should be rejected")
	}
	c.Add(successResult("v2", 0.6))

	if len(seen) != 2 || seen[0] != "v1" || seen[1] != "v2" {
		t.Errorf("listener calls = %v, want [v1 v2]", seen)
	}
}

func TestCollectorBestIsOrderIndependent(t *testing.T) {
	a := NewCollector(3, CompletionCriteria{})
	a.Add(successResult("v1", 0.5))
	a.Add(successResult("v2", 0.9))
	a.Add(failedResult("v3", "err"))

	b := NewCollector(3, CompletionCriteria{})
	b.Add(failedResult("v3", "err"))
	b.Add(successResult("v2", 0.9))
	b.Add(successResult("v1", 0.5))

	if a.Best().VariationID != b.Best().VariationID {
		t.Errorf("best differs by insertion order: %s vs %s", a.Best().VariationID, b.Best().VariationID)
	}
}
