package llm

import (
	"strings"
	"testing"

	"triagent/internal/evaluation"
)

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    evaluation.Assessment
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"score": 0.8, "confidence": 0.9, "reasoning": "solid", "suggestions": ["add tests"]}`,
			want: evaluation.Assessment{Score: 0.8, Confidence: 0.9, Reasoning: "solid", Suggestions: []string{"add tests"}},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"score\": 0.5, \"confidence\": 0.7, \"reasoning\": \"ok\"}\n```",
			want: evaluation.Assessment{Score: 0.5, Confidence: 0.7, Reasoning: "ok"},
		},
		{
			name: "out of range clamped",
			raw:  `{"score": 1.4, "confidence": -0.2, "reasoning": "x"}`,
			want: evaluation.Assessment{Score: 1, Confidence: 0, Reasoning: "x"},
		},
		{
			name:    "not json",
			raw:     "I think it's pretty good.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssessment(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Score != tt.want.Score || got.Confidence != tt.want.Confidence || got.Reasoning != tt.want.Reasoning {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if len(got.Suggestions) != len(tt.want.Suggestions) {
				t.Errorf("suggestions: %v", got.Suggestions)
			}
		})
	}
}

func TestBuildAssessmentPrompt(t *testing.T) {
	prompt := buildAssessmentPrompt(evaluation.AssessRequest{
		Prompt:       "Rate the naming.",
		Task:         "rename the widget",
		SolutionCode: "func widgetName() string { return name }",
		OriginalCode: "func wn() string { return n }",
	})

	for _, want := range []string{"Rate the naming.", "rename the widget", "widgetName", "Original code", `"score"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNewGeminiAssessorRequiresKey(t *testing.T) {
	if _, err := NewGeminiAssessor("", ""); err == nil {
		t.Fatal("empty key should be rejected")
	}
}
