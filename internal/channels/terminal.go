// Package channels renders presentation views for delivery surfaces.
// The terminal channel is the only implementation; views stay pure in
// the presentation package and all styling happens here.
package channels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"triagent/internal/presentation"
)

// Channel turns view models into deliverable text.
type Channel interface {
	RenderSummary(view presentation.SummaryView) string
	RenderDetail(view presentation.DetailView) string
	RenderActionBar(cfg presentation.ActionBarConfig) string
}

// Terminal renders views for an ANSI terminal.
type Terminal struct {
	width int

	titleStyle  lipgloss.Style
	winnerStyle lipgloss.Style
	failStyle   lipgloss.Style
	mutedStyle  lipgloss.Style
	bannerStyle lipgloss.Style
	keyStyle    lipgloss.Style
}

// NewTerminal creates a renderer for the given width. Width 0 means 80.
func NewTerminal(width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{
		width:       width,
		titleStyle:  lipgloss.NewStyle().Bold(true),
		winnerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		failStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		mutedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		bannerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		keyStyle:    lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// RenderSummary draws the iteration table with the winner highlighted.
func (t *Terminal) RenderSummary(view presentation.SummaryView) string {
	var b strings.Builder

	title := fmt.Sprintf("%s  %s", view.TaskID, view.TaskTitle)
	b.WriteString(t.titleStyle.Render(t.fit(title)) + "\n")
	b.WriteString(t.mutedStyle.Render(fmt.Sprintf("evaluated %s in %dms",
		view.EvaluatedAt.Format("2006-01-02 15:04:05"), view.EvaluationDurationMS)) + "\n\n")

	if view.Banner != "" {
		b.WriteString(t.bannerStyle.Render(view.Banner) + "\n\n")
	}

	for _, row := range view.Iterations {
		marker := "  "
		line := fmt.Sprintf("#%d  %s  score %.2f  confidence %.2f", row.Rank, t.pad(row.SolutionID, 14), row.Score, row.Confidence)
		if row.IsWinner {
			marker = "* "
			line = t.winnerStyle.Render(line)
		}
		b.WriteString(marker + line + "\n")
		if row.IsWinner {
			for _, s := range row.Strengths {
				b.WriteString("    + " + s + "\n")
			}
			for _, w := range row.Weaknesses {
				b.WriteString("    " + t.failStyle.Render("- "+w) + "\n")
			}
		}
	}

	b.WriteString("\n")
	if view.AutoAcceptance.Accept {
		b.WriteString(t.winnerStyle.Render("auto-accept: "+view.AutoAcceptance.Reason) + "\n")
	} else {
		b.WriteString(t.mutedStyle.Render("auto-accept: "+view.AutoAcceptance.Reason) + "\n")
	}
	return b.String()
}

// RenderDetail draws the per-category breakdown of one solution.
func (t *Terminal) RenderDetail(view presentation.DetailView) string {
	var b strings.Builder

	b.WriteString(t.titleStyle.Render(t.fit(fmt.Sprintf("%s  overall %.2f  confidence %.2f",
		view.SolutionID, view.OverallScore, view.Confidence))) + "\n\n")

	for _, cat := range view.ScoreBreakdown {
		b.WriteString(t.titleStyle.Render(fmt.Sprintf("%s  %.2f (weight %.2f)", cat.Category, cat.Score, cat.Weight)) + "\n")
		for _, check := range cat.Checks {
			b.WriteString("  " + t.renderCheck(check) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (t *Terminal) renderCheck(check presentation.CheckResult) string {
	name := t.pad(check.Name, 26)
	var status string
	switch check.Type {
	case presentation.CheckPass:
		status = t.winnerStyle.Render("pass")
	case presentation.CheckFail:
		status = t.failStyle.Render("FAIL")
	case presentation.CheckScore:
		status = fmt.Sprintf("%.2f", check.Value)
	default:
		status = "-"
	}
	line := fmt.Sprintf("%s %s  %s", name, status, t.mutedStyle.Render(string(check.Source)))
	if check.Message != "" {
		line += "  " + t.fit(check.Message)
	}
	return line
}

// RenderActionBar draws the keys available in the current context.
func (t *Terminal) RenderActionBar(cfg presentation.ActionBarConfig) string {
	type binding struct{ key, label string }
	var bindings []binding

	switch cfg.Context {
	case presentation.ContextSummary:
		bindings = []binding{
			{"a", "accept"}, {"x", "reject all"}, {"v", "details"},
			{"d", "diff"}, {"c", "compare"}, {"r", "request changes"}, {"m", "manual review"},
		}
	case presentation.ContextDetail:
		bindings = []binding{
			{"a", "accept"}, {"x", "reject"}, {"d", "diff"},
			{"r", "request changes"}, {"b", "back"},
		}
	case presentation.ContextDiff:
		bindings = []binding{
			{"n", "next file"}, {"p", "prev file"}, {"a", "accept"}, {"b", "back"},
		}
		if cfg.FileCount > 0 {
			bindings = append(bindings, binding{"", fmt.Sprintf("file %d/%d", cfg.FileIndex+1, cfg.FileCount)})
		}
	case presentation.ContextCompare:
		bindings = []binding{
			{"a", "accept"}, {"x", "reject"}, {"b", "back"},
		}
	}

	parts := make([]string, 0, len(bindings))
	for _, bind := range bindings {
		if bind.key == "" {
			parts = append(parts, t.mutedStyle.Render(bind.label))
			continue
		}
		parts = append(parts, t.keyStyle.Render(bind.key)+" "+bind.label)
	}
	return t.fit(strings.Join(parts, "  "))
}

// fit truncates to the terminal width, rune-width aware.
func (t *Terminal) fit(s string) string {
	return runewidth.Truncate(s, t.width, "...")
}

// pad right-pads to a display width, rune-width aware.
func (t *Terminal) pad(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}
