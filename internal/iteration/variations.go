package iteration

import (
	"fmt"

	"github.com/google/uuid"

	"triagent/internal/types"
)

// Variation factories. Each builds a pending variation list with
// priorities in declaration order (lower spawns sooner).

// PromptVariant is one alternative framing of the task.
type PromptVariant struct {
	ID      string
	Context string
}

// ModelVariations builds one variation per model.
func ModelVariations(models []string) []*Variation {
	out := make([]*Variation, 0, len(models))
	for i, model := range models {
		out = append(out, &Variation{
			ID:       uuid.NewString(),
			Label:    fmt.Sprintf("model:%s", model),
			Priority: i,
			Model:    model,
			Status:   VariationPending,
		})
	}
	return out
}

// ThinkingVariations builds one variation per thinking level.
func ThinkingVariations(levels []types.ThinkingLevel) []*Variation {
	out := make([]*Variation, 0, len(levels))
	for i, level := range levels {
		out = append(out, &Variation{
			ID:       uuid.NewString(),
			Label:    fmt.Sprintf("thinking:%s", level),
			Priority: i,
			Thinking: level,
			Status:   VariationPending,
		})
	}
	return out
}

// PromptVariations builds one variation per prompt variant.
func PromptVariations(variants []PromptVariant) []*Variation {
	out := make([]*Variation, 0, len(variants))
	for i, v := range variants {
		out = append(out, &Variation{
			ID:                uuid.NewString(),
			Label:             fmt.Sprintf("prompt:%s", v.ID),
			Priority:          i,
			PromptVariantID:   v.ID,
			AdditionalContext: v.Context,
			Status:            VariationPending,
		})
	}
	return out
}

// HybridVariations builds the cross product of models and thinking
// levels, ordered model-major.
func HybridVariations(models []string, levels []types.ThinkingLevel) []*Variation {
	out := make([]*Variation, 0, len(models)*len(levels))
	priority := 0
	for _, model := range models {
		for _, level := range levels {
			out = append(out, &Variation{
				ID:       uuid.NewString(),
				Label:    fmt.Sprintf("model:%s/thinking:%s", model, level),
				Priority: priority,
				Model:    model,
				Thinking: level,
				Status:   VariationPending,
			})
			priority++
		}
	}
	return out
}
