package patterns

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, agentID string) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "patterns.db"), agentID)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestTracker(t *testing.T, agentID string, now time.Time) *Tracker {
	t.Helper()
	return NewTrackerWithClock(newTestStore(t, agentID), DefaultConfig(), func() time.Time { return now })
}

func mustParse(t *testing.T, ts string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestPatternEmergesAfterThreeObservations(t *testing.T) {
	now := mustParse(t, "2024-06-17T09:00:00Z")
	tr := newTestTracker(t, "agent-1", now)

	stamps := []string{
		"2024-06-15T09:00:00Z",
		"2024-06-16T09:15:00Z",
		"2024-06-17T08:45:00Z",
	}
	for i, ts := range stamps {
		if err := tr.RecordTimeObservation("morning standup", mustParse(t, ts)); err != nil {
			t.Fatal(err)
		}
		got, err := tr.QueryPatterns(QueryFilter{Type: TypeTime})
		if err != nil {
			t.Fatal(err)
		}
		if i < 2 && len(got) != 0 {
			t.Fatalf("pattern formed after %d observations", i+1)
		}
		if i == 2 {
			if len(got) != 1 {
				t.Fatalf("got %d patterns after third observation, want 1", len(got))
			}
			p := got[0]
			if p.ObservationCount < 3 {
				t.Errorf("count = %d, want >= 3", p.ObservationCount)
			}
			center := p.Data.Trigger.Hour*60 + p.Data.Trigger.Minute
			if timeOfDayDistance(center, 9*60) > 15 {
				t.Errorf("trigger %02d:%02d not within 15 min of 09:00", p.Data.Trigger.Hour, p.Data.Trigger.Minute)
			}
		}
	}
}

func TestReinforceExistingPattern(t *testing.T) {
	now := mustParse(t, "2024-06-20T09:00:00Z")
	tr := newTestTracker(t, "agent-1", now)

	for day := 15; day <= 17; day++ {
		ts := time.Date(2024, 6, day, 9, 0, 0, 0, time.UTC)
		if err := tr.RecordTimeObservation("standup", ts); err != nil {
			t.Fatal(err)
		}
	}
	before, err := tr.QueryPatterns(QueryFilter{Type: TypeTime})
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 1 {
		t.Fatalf("setup: %d patterns", len(before))
	}

	// A fourth similar observation reinforces, never duplicates.
	if err := tr.RecordTimeObservation("standup", mustParse(t, "2024-06-18T09:10:00Z")); err != nil {
		t.Fatal(err)
	}
	after, err := tr.QueryPatterns(QueryFilter{Type: TypeTime})
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Fatalf("got %d patterns, want still 1", len(after))
	}
	if after[0].ObservationCount != before[0].ObservationCount+1 {
		t.Errorf("count = %d, want %d", after[0].ObservationCount, before[0].ObservationCount+1)
	}
	if !after[0].LastObserved.After(before[0].LastObserved) {
		t.Error("last_observed not advanced")
	}
}

func TestAgentIsolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.db")

	storeA, err := NewStore(path, "agent-a")
	if err != nil {
		t.Fatal(err)
	}
	defer storeA.Close()
	storeB, err := NewStore(path, "agent-b")
	if err != nil {
		t.Fatal(err)
	}
	defer storeB.Close()

	now := mustParse(t, "2024-06-17T09:00:00Z")
	trA := NewTrackerWithClock(storeA, DefaultConfig(), func() time.Time { return now })
	for day := 15; day <= 17; day++ {
		ts := time.Date(2024, 6, day, 9, 0, 0, 0, time.UTC)
		if err := trA.RecordTimeObservation("standup", ts); err != nil {
			t.Fatal(err)
		}
	}

	// Forged agent id on insert is a hard error.
	forged := Observation{ID: "x", AgentID: "agent-a", Type: TypeTime, Timestamp: now, Time: &TimeData{Action: "sneak"}}
	if err := storeB.InsertObservation(forged); !errors.Is(err, ErrAgentMismatch) {
		t.Errorf("forged insert error = %v, want ErrAgentMismatch", err)
	}

	// B cannot see A's patterns.
	bPatterns, err := storeB.QueryPatterns(QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bPatterns) != 0 {
		t.Errorf("agent-b sees %d of agent-a's patterns", len(bPatterns))
	}

	// Reaching A's pattern by id through B's store is a hard error.
	aPatterns, err := storeA.QueryPatterns(QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(aPatterns) != 1 {
		t.Fatalf("setup: %d patterns for agent-a", len(aPatterns))
	}
	if _, err := storeB.GetPattern(aPatterns[0].ID); !errors.Is(err, ErrAgentMismatch) {
		t.Errorf("cross-agent GetPattern error = %v, want ErrAgentMismatch", err)
	}
}

func TestConfidenceBoundsAndRecencyDecay(t *testing.T) {
	now := mustParse(t, "2024-06-17T09:00:00Z")
	cfg := DefaultConfig()
	tr := NewTrackerWithClock(newTestStore(t, "agent-1"), cfg, func() time.Time { return now })

	fresh := tr.confidence(3, now, 1)
	if fresh < 0 || fresh > 1 {
		t.Errorf("confidence %v out of [0,1]", fresh)
	}
	if want := 0.3; fresh != want {
		t.Errorf("fresh confidence = %v, want base %v", fresh, want)
	}

	weekOld := tr.confidence(3, now.AddDate(0, 0, -7), 1)
	if weekOld >= fresh {
		t.Error("recency decay missing")
	}

	saturated := tr.confidence(50, now, 1)
	if saturated != 1 {
		t.Errorf("saturated confidence = %v, want base capped at 1", saturated)
	}

	for _, count := range []int{0, 1, 5, 100} {
		for _, daysAgo := range []int{0, 3, 30, 365} {
			c := tr.confidence(count, now.AddDate(0, 0, -daysAgo), 0.7)
			if c < 0 || c > 1 {
				t.Fatalf("confidence(%d obs, %dd ago) = %v out of bounds", count, daysAgo, c)
			}
		}
	}
}

func TestEventObservationsFormPattern(t *testing.T) {
	now := mustParse(t, "2024-06-17T12:00:00Z")
	tr := newTestTracker(t, "agent-1", now)

	for i := 0; i < 3; i++ {
		ts := now.AddDate(0, 0, -2+i)
		if err := tr.RecordEventObservation("deploy", "check logs", 90, ts); err != nil {
			t.Fatal(err)
		}
	}
	got, err := tr.QueryPatterns(QueryFilter{Type: TypeEvent})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d event patterns, want 1", len(got))
	}
	if got[0].Data.FollowUp != "check logs" {
		t.Errorf("follow-up = %q", got[0].Data.FollowUp)
	}
}

func TestContextObservationsFormPattern(t *testing.T) {
	now := mustParse(t, "2024-06-17T12:00:00Z")
	tr := newTestTracker(t, "agent-1", now)

	keywords := [][]string{
		{"billing", "invoice"},
		{"billing", "payment"},
		{"billing", "invoice", "refund"},
	}
	for i, kws := range keywords {
		ts := now.AddDate(0, 0, -2+i)
		if err := tr.RecordContextObservation(kws, "invoice links", nil, ts); err != nil {
			t.Fatal(err)
		}
	}
	got, err := tr.QueryPatterns(QueryFilter{Type: TypeContext})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d context patterns, want 1", len(got))
	}
	if got[0].Data.Need != "invoice links" {
		t.Errorf("need = %q", got[0].Data.Need)
	}
}

func TestMaintainArchivesStaleInactivePatterns(t *testing.T) {
	now := mustParse(t, "2024-06-17T12:00:00Z")
	store := newTestStore(t, "agent-1")
	tr := NewTrackerWithClock(store, DefaultConfig(), func() time.Time { return now })

	stale := Pattern{
		ID: "stale", AgentID: "agent-1", Type: TypeTime, Description: "old habit",
		ObservationCount: 3, FirstObserved: now.AddDate(0, 0, -90),
		LastObserved: now.AddDate(0, 0, -60), Active: false,
		Data: PatternData{Consistency: 1}, CreatedAt: now, UpdatedAt: now,
	}
	keep := stale
	keep.ID = "active"
	keep.Active = true
	for _, p := range []Pattern{stale, keep} {
		if err := store.SavePattern(p); err != nil {
			t.Fatal(err)
		}
	}

	if err := tr.Maintain(); err != nil {
		t.Fatal(err)
	}
	got, err := store.QueryPatterns(QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "active" {
		t.Errorf("after maintenance: %+v, want only the active pattern", got)
	}
}

func TestMaintainPrunesObservations(t *testing.T) {
	now := mustParse(t, "2024-06-17T12:00:00Z")
	cfg := DefaultConfig()
	cfg.MaxObservations = 5
	store := newTestStore(t, "agent-1")
	tr := NewTrackerWithClock(store, cfg, func() time.Time { return now })

	for i := 0; i < 10; i++ {
		// Scattered times so no pattern forms.
		ts := now.Add(-time.Duration(i) * 31 * time.Hour)
		if err := tr.RecordTimeObservation("one-off", ts); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Maintain(); err != nil {
		t.Fatal(err)
	}
	obs, err := store.RecentObservations(TypeTime, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 5 {
		t.Errorf("got %d observations after pruning, want 5", len(obs))
	}
}

func TestDetectMergesAndCapsPatterns(t *testing.T) {
	now := mustParse(t, "2024-06-17T12:00:00Z")
	cfg := DefaultConfig()
	cfg.MaxPatternsPerAgent = 2
	store := newTestStore(t, "agent-1")
	tr := NewTrackerWithClock(store, cfg, func() time.Time { return now })

	// Three unrelated patterns saved directly; Detect's merge pass keeps
	// only the cap's worth by confidence.
	for i, conf := range []float64{0.9, 0.5, 0.1} {
		p := Pattern{
			ID: string(rune('a' + i)), AgentID: "agent-1", Type: TypeEvent,
			Description: "p", Confidence: conf, ObservationCount: 5,
			FirstObserved: now, LastObserved: now, Active: true,
			Data: PatternData{Consistency: 1, Event: string(rune('a' + i)), FollowUp: "x"},
			CreatedAt: now, UpdatedAt: now,
		}
		if err := store.SavePattern(p); err != nil {
			t.Fatal(err)
		}
	}

	if err := tr.Detect(); err != nil {
		t.Fatal(err)
	}
	got, err := store.QueryPatterns(QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d patterns, want cap of 2", len(got))
	}
	if got[0].Confidence != 0.9 || got[1].Confidence != 0.5 {
		t.Errorf("kept wrong patterns: %v, %v", got[0].Confidence, got[1].Confidence)
	}
}
