package iteration

import (
	"regexp"
	"strconv"
)

// Confidence extraction is a heuristic over free-form solver output.
// Patterns are tried in order; the first hit wins. Absence is a neutral
// signal, not a failure.
var confidencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)confidence:\s*(\d+(?:\.\d+)?)%`),
	regexp.MustCompile(`(?i)confidence:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)confidence\s+score:\s*(\d+(?:\.\d+)?)`),
}

// ParseConfidence extracts a confidence value in [0,1] from solver
// output. Values above 1 are treated as percentages and divided by 100.
// The second return is false when no pattern matched.
func ParseConfidence(output string) (float64, bool) {
	for _, re := range confidencePatterns {
		m := re.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v > 1 {
			v /= 100
		}
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return v, true
	}
	return 0, false
}
