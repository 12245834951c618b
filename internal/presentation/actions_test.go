package presentation

import "testing"

func TestParseActionSummaryContext(t *testing.T) {
	cfg := ActionBarConfig{Context: ContextSummary, WinnerID: "win-1"}

	tests := []struct {
		key    string
		action Action
		target string
	}{
		{"a", ActionAccept, "win-1"},
		{"A", ActionAccept, "win-1"}, // case-insensitive
		{"x", ActionRejectAll, ""},
		{"v", ActionViewDetails, "win-1"},
		{"d", ActionViewDiff, "win-1"},
		{"c", ActionCompare, ""},
		{"r", ActionRequestChanges, "win-1"},
		{"m", ActionManualReview, ""},
	}
	for _, tt := range tests {
		got := ParseAction(tt.key, cfg)
		if got == nil {
			t.Fatalf("key %q returned nil", tt.key)
		}
		if got.Action != tt.action || got.TargetID != tt.target {
			t.Errorf("key %q = %+v, want {%s %s}", tt.key, got, tt.action, tt.target)
		}
	}
}

func TestParseActionDetailContext(t *testing.T) {
	cfg := ActionBarConfig{Context: ContextDetail, WinnerID: "win-1", CurrentIterationID: "iter-2"}

	if got := ParseAction("x", cfg); got.Action != ActionReject || got.TargetID != "iter-2" {
		t.Errorf("x in detail = %+v, want reject of current iteration", got)
	}
	if got := ParseAction("a", cfg); got.Action != ActionAccept || got.TargetID != "iter-2" {
		t.Errorf("a in detail = %+v, want accept of current iteration", got)
	}
	for _, key := range []string{"b", "q", "B", "Q"} {
		if got := ParseAction(key, cfg); got == nil || got.Action != ActionBackToSummary {
			t.Errorf("key %q = %+v, want backToSummary", key, got)
		}
	}
}

func TestParseActionFileNavigation(t *testing.T) {
	cfg := ActionBarConfig{Context: ContextDiff, FileIndex: 1, FileCount: 4}
	if got := ParseAction("n", cfg); got.Action != ActionNextFile {
		t.Errorf("n = %+v", got)
	}
	if got := ParseAction("p", cfg); got.Action != ActionPrevFile {
		t.Errorf("p = %+v", got)
	}
}

func TestParseActionUnknownKeys(t *testing.T) {
	cfg := ActionBarConfig{Context: ContextSummary}
	for _, key := range []string{"z", "1", "", "  ", "escape"} {
		if got := ParseAction(key, cfg); got != nil {
			t.Errorf("key %q = %+v, want nil", key, got)
		}
	}
}
