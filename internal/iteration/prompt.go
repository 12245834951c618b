package iteration

import (
	"fmt"
	"strings"

	"triagent/internal/types"
)

// BuildPrompt assembles the markdown task prompt sent to a sub-agent for
// one variation.
func BuildPrompt(task types.TaskHandle, v *Variation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Description)
	}

	if v.AdditionalContext != "" {
		fmt.Fprintf(&b, "\n## Approach\n\n%s\n", v.AdditionalContext)
	}

	if len(v.Constraints) > 0 {
		b.WriteString("\n## Constraints\n\n")
		for _, c := range v.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	b.WriteString("\n## Output Requirements\n\n")
	b.WriteString("- State a confidence score from 0-100 (e.g. \"Confidence: 85%\")\n")
	b.WriteString("- Explicitly list any limitations of your solution\n")

	return b.String()
}

// classifyOutput guesses the output type from its shape.
func classifyOutput(output string) types.OutputType {
	trimmed := strings.TrimSpace(output)
	hasFence := strings.Contains(trimmed, "```")

	switch {
	case (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")):
		return types.OutputStructured
	case hasFence && strings.HasPrefix(trimmed, "```") && strings.HasSuffix(trimmed, "```"):
		return types.OutputCode
	case hasFence:
		return types.OutputMixed
	default:
		return types.OutputText
	}
}
