package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"triagent/internal/gateway"
	"triagent/internal/logging"
	"triagent/internal/types"
)

// GeminiSolver produces candidate solutions for iteration runs. Unlike
// the assessor it asks for free-form output; the runner's scorer and the
// evaluator judge the result afterwards.
type GeminiSolver struct {
	client *genai.Client
	model  string
}

// NewGeminiSolver creates a solver backed by the Gemini API.
func NewGeminiSolver(apiKey, model string) (*GeminiSolver, error) {
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
	return &GeminiSolver{client: client, model: model}, nil
}

// Solve runs one spawn request against the model.
func (g *GeminiSolver) Solve(ctx context.Context, req gateway.SpawnRequest) (string, types.TokenUsage, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GeminiSolver.Solve")
	defer timer.Stop()

	model := req.Model
	if model == "" {
		model = g.model
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Task, genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", types.TokenUsage{}, fmt.Errorf("Gemini solve failed: %w", err)
	}

	var usage types.TokenUsage
	if result.UsageMetadata != nil {
		usage.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(result.UsageMetadata.TotalTokenCount)
	}
	return result.Text(), usage, nil
}

// SolverFunc adapts the solver to the gateway's dependency shape.
func (g *GeminiSolver) SolverFunc() gateway.SolverFunc {
	return g.Solve
}

// Close releases the underlying client.
func (g *GeminiSolver) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
