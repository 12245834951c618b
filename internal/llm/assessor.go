// Package llm provides the model-assisted assessment used by solution
// evaluation. The Gemini implementation asks for a strict JSON verdict
// and clamps whatever comes back.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"triagent/internal/evaluation"
	"triagent/internal/logging"
	"triagent/internal/scoring"
)

// Assessor judges one aspect of a solution.
type Assessor interface {
	Assess(ctx context.Context, req evaluation.AssessRequest) (evaluation.Assessment, error)
}

// GeminiAssessor implements Assessor over the Gemini API.
type GeminiAssessor struct {
	client *genai.Client
	model  string
}

// NewGeminiAssessor creates an assessor. Model defaults to a fast tier;
// assessments are many and cheap, not deep.
func NewGeminiAssessor(apiKey, model string) (*GeminiAssessor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAssessor{client: client, model: model}, nil
}

// assessmentVerdict is the JSON shape the model is told to produce.
type assessmentVerdict struct {
	Score       float64  `json:"score"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Suggestions []string `json:"suggestions"`
}

// Assess sends one judgement request and parses the JSON verdict.
func (g *GeminiAssessor) Assess(ctx context.Context, req evaluation.AssessRequest) (evaluation.Assessment, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GeminiAssessor.Assess")
	defer timer.Stop()

	prompt := buildAssessmentPrompt(req)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return evaluation.Assessment{}, fmt.Errorf("Gemini assessment failed: %w", err)
	}

	return parseAssessment(result.Text())
}

// buildAssessmentPrompt frames the judgement and pins the output format.
func buildAssessmentPrompt(req evaluation.AssessRequest) string {
	var b strings.Builder
	b.WriteString("You are reviewing a proposed code change.\n\n")
	b.WriteString("Task:\n" + req.Task + "\n\n")
	if req.OriginalCode != "" {
		b.WriteString("Original code:\n```\n" + req.OriginalCode + "\n```\n\n")
	}
	b.WriteString("Proposed solution:\n```\n" + req.SolutionCode + "\n```\n\n")
	b.WriteString("Question: " + req.Prompt + "\n\n")
	b.WriteString(`Respond with JSON only: {"score": <0..1>, "confidence": <0..1>, "reasoning": "<one paragraph>", "suggestions": ["<optional>"]}`)
	return b.String()
}

// parseAssessment decodes the verdict, tolerating code fences, and
// clamps scores into [0,1].
func parseAssessment(raw string) (evaluation.Assessment, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var v assessmentVerdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return evaluation.Assessment{}, fmt.Errorf("unparseable assessment verdict: %w", err)
	}
	return evaluation.Assessment{
		Score:       scoring.Clamp01(v.Score),
		Confidence:  scoring.Clamp01(v.Confidence),
		Reasoning:   v.Reasoning,
		Suggestions: v.Suggestions,
	}, nil
}

// AssessFunc adapts the assessor to the evaluator's dependency shape.
func (g *GeminiAssessor) AssessFunc() evaluation.AssessFunc {
	return g.Assess
}

// Close releases the underlying client.
func (g *GeminiAssessor) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
