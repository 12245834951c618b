package analysis

import (
	"hash/fnv"
	"regexp"
	"strings"

	"triagent/internal/scoring"
)

// ComplexityResult summarizes branching density per function-like chunk.
type ComplexityResult struct {
	Average float64
	Max     float64
	Score   float64 // decreases as average/max rise
}

var (
	functionStart = regexp.MustCompile(`^\s*(func\s|function\s|def\s|fn\s|(?:public|private|protected|static).*\()`)
	branchTokens  = regexp.MustCompile(`\b(if|for|while|case|catch|switch|elif|else\s+if)\b|&&|\|\|`)
)

// EstimateComplexity counts branching and loop constructs per
// function-like chunk. Without any function boundary the whole text is
// one chunk.
func EstimateComplexity(code string) ComplexityResult {
	var chunks []int
	current := 1 // base complexity of a straight-line chunk

	for _, line := range strings.Split(code, "\n") {
		if functionStart.MatchString(line) && current > 0 {
			chunks = append(chunks, current)
			current = 1
		}
		current += len(branchTokens.FindAllString(line, -1))
	}
	chunks = append(chunks, current)

	var sum, max float64
	for _, c := range chunks {
		f := float64(c)
		sum += f
		if f > max {
			max = f
		}
	}
	avg := sum / float64(len(chunks))

	// Average 1 (straight line) scores 1.0; an average of 11 or a max of
	// 31 exhausts its half of the score.
	avgScore := scoring.Clamp01(1 - (avg-1)/10)
	maxScore := scoring.Clamp01(1 - (max-1)/30)
	return ComplexityResult{
		Average: avg,
		Max:     max,
		Score:   0.7*avgScore + 0.3*maxScore,
	}
}

var lineComment = regexp.MustCompile(`^\s*(//|#|/\*|\*|--)`)

// EstimateDuplication hashes 3-line windows of normalized (trimmed,
// comment-stripped) lines and returns the fraction of windows that occur
// more than once.
func EstimateDuplication(code string) float64 {
	var normalized []string
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || lineComment.MatchString(trimmed) {
			continue
		}
		normalized = append(normalized, trimmed)
	}

	const window = 3
	if len(normalized) < window {
		return 0
	}

	counts := make(map[uint64]int)
	total := len(normalized) - window + 1
	for i := 0; i < total; i++ {
		h := fnv.New64a()
		for j := 0; j < window; j++ {
			h.Write([]byte(normalized[i+j]))
			h.Write([]byte{0})
		}
		counts[h.Sum64()]++
	}

	duplicated := 0
	for _, n := range counts {
		if n > 1 {
			duplicated += n
		}
	}
	return float64(duplicated) / float64(total)
}

// CommentRatio returns comment lines over non-blank lines, in [0,1].
func CommentRatio(code string) float64 {
	var comments, nonBlank int
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonBlank++
		if lineComment.MatchString(trimmed) {
			comments++
		}
	}
	if nonBlank == 0 {
		return 0
	}
	return float64(comments) / float64(nonBlank)
}

// SizeResult compares the solution against the original by line counts.
type SizeResult struct {
	LinesAdded   int
	LinesRemoved int
	NetChange    int
	Score        float64 // small changes favored
}

// MeasureSize diffs original and solution line multisets. A net change
// of 1000 lines or more scores zero.
func MeasureSize(original, solution string) SizeResult {
	origCounts := lineCounts(original)
	solCounts := lineCounts(solution)

	var added, removed int
	for line, n := range solCounts {
		if d := n - origCounts[line]; d > 0 {
			added += d
		}
	}
	for line, n := range origCounts {
		if d := n - solCounts[line]; d > 0 {
			removed += d
		}
	}

	net := added - removed
	abs := net
	if abs < 0 {
		abs = -abs
	}
	return SizeResult{
		LinesAdded:   added,
		LinesRemoved: removed,
		NetChange:    net,
		Score:        scoring.Clamp01(1 - float64(abs)/1000),
	}
}

func lineCounts(text string) map[string]int {
	counts := make(map[string]int)
	if strings.TrimSpace(text) == "" {
		return counts
	}
	for _, line := range strings.Split(text, "\n") {
		counts[strings.TrimSpace(line)]++
	}
	return counts
}

var cleanupPatterns = regexp.MustCompile(`\bdefer\s+\w+[\w.]*\.Close\(\)|\bfinally\b|\bwith\s+open\(|\busing\s*\(|\bClose\(\)|\bdispose\(`)
var resourceOpenPatterns = regexp.MustCompile(`\bos\.Open|\bsql\.Open|\bnet\.Dial|\bopen\(|\bnew\s+FileInputStream|\bcreateConnection`)

// ResourceCleanupScore checks that opened resources appear to be closed.
// Code that opens nothing scores 1.
func ResourceCleanupScore(code string) float64 {
	opens := len(resourceOpenPatterns.FindAllString(code, -1))
	if opens == 0 {
		return 1
	}
	closes := len(cleanupPatterns.FindAllString(code, -1))
	return scoring.FromRatio(float64(closes), float64(opens))
}

// DocumentationAdded reports whether the solution carries any doc-style
// comment block.
func DocumentationAdded(code string) bool {
	return CommentRatio(code) > 0
}

// TestsRatio returns the fraction of changed files that are test files.
func TestsRatio(changedFiles []string) float64 {
	if len(changedFiles) == 0 {
		return 0
	}
	tests := 0
	for _, f := range changedFiles {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "_test.") || strings.Contains(lower, ".test.") ||
			strings.Contains(lower, "/test") || strings.HasPrefix(lower, "test") {
			tests++
		}
	}
	return float64(tests) / float64(len(changedFiles))
}

// ChangelogUpdated reports whether a changelog file is among the changes.
func ChangelogUpdated(changedFiles []string) bool {
	for _, f := range changedFiles {
		if strings.Contains(strings.ToLower(f), "changelog") {
			return true
		}
	}
	return false
}
