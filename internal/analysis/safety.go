// Package analysis implements cheap, deterministic, syntax-free heuristics
// over source text: dangerous-operation and secret-exposure sweeps,
// complexity and duplication estimates, comment ratio and size metrics.
// The defaults are tuned for typed curly-brace languages but nothing here
// parses syntax; everything is line- and regex-based on purpose.
package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// SafetyResult reports one safety sweep. Safe iff Issues is empty.
type SafetyResult struct {
	Safe   bool
	Issues []string
}

// Dynamic code construction and process-spawning hooks. Each pattern
// names a callable whose body or command arrives as a runtime string.
var dangerousPatterns = []struct {
	re   *regexp.Regexp
	desc string
}{
	{regexp.MustCompile(`\beval\s*\(`), "dynamic code evaluation (eval)"},
	{regexp.MustCompile(`new\s+Function\s*\(`), "dynamic function construction (new Function)"},
	{regexp.MustCompile(`\bexecSync\s*\(|\bchild_process\b`), "child process spawning"},
	{regexp.MustCompile(`\bos/exec\b|\bexec\.Command\s*\(`), "process spawning (exec.Command)"},
	{regexp.MustCompile(`\bsubprocess\.(Popen|call|run)\s*\(`), "process spawning (subprocess)"},
	{regexp.MustCompile(`Runtime\.getRuntime\(\)\.exec`), "process spawning (Runtime.exec)"},
	{regexp.MustCompile(`\bsetTimeout\s*\(\s*["'` + "`" + `]`), "string-bodied timer callback"},
}

// DangerousOps sweeps the code for dynamic code construction and
// process-spawning hooks.
func DangerousOps(code string) SafetyResult {
	var issues []string
	for _, p := range dangerousPatterns {
		if loc := p.re.FindStringIndex(code); loc != nil {
			line := 1 + strings.Count(code[:loc[0]], "\n")
			issues = append(issues, fmt.Sprintf("%s at line %d", p.desc, line))
		}
	}
	return SafetyResult{Safe: len(issues) == 0, Issues: issues}
}

// A long opaque literal assigned to an identifier hinting at credentials.
// Environment-variable reads are not findings.
var (
	secretAssignment = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*(?:key|token|secret|password|credential)[A-Za-z0-9_]*)\s*(?::?=|:)\s*["'` + "`" + `]([A-Za-z0-9+/_\-]{16,})["'` + "`" + `]`)
	envRead          = regexp.MustCompile(`(?i)os\.Getenv|process\.env|ENV\[|getenv\(|\$\{`)
)

// SecretsExposed sweeps for credential-looking literals.
func SecretsExposed(code string) SafetyResult {
	var issues []string
	for _, line := range strings.Split(code, "\n") {
		m := secretAssignment.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if envRead.MatchString(line) {
			continue // reading from the environment is the fix, not the finding
		}
		issues = append(issues, fmt.Sprintf("possible hardcoded credential in %q", m[1]))
	}
	return SafetyResult{Safe: len(issues) == 0, Issues: issues}
}
