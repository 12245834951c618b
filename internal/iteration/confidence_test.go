package iteration

import (
	"math"
	"testing"
)

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   float64
		found  bool
	}{
		{"percent", "All done.\nConfidence: 85%", 0.85, true},
		{"percent lowercase", "confidence: 70%", 0.70, true},
		{"plain integer", "Confidence: 90", 0.90, true},
		{"fraction", "confidence: 0.75", 0.75, true},
		{"score phrasing", "My confidence score: 60", 0.60, true},
		{"decimal percent", "Confidence: 87.5%", 0.875, true},
		{"absent", "Task complete, no caveats.", 0, false},
		{"first hit wins", "Confidence: 40%\nConfidence: 90%", 0.40, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ParseConfidence(tt.output)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if found && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}
