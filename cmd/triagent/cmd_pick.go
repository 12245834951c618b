package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triagent/internal/picker"
	"triagent/internal/tasksource"
)

var (
	pickLabels        []string
	pickExcludeLabels []string
	pickPreferred     []string
	pickAssignee      string
	pickUnassigned    bool
	pickMaxComplexity int
	pickTop           int
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick the next best task from the task file",
	Long: `Filters the open tasks (status, labels, assignee, complexity,
dependency blocking), scores the survivors and prints the best pick
with its reasoning. Use --top to see the ranked shortlist instead.`,
	RunE: runPick,
}

func init() {
	pickCmd.Flags().StringSliceVar(&pickLabels, "label", nil, "Require at least one of these labels")
	pickCmd.Flags().StringSliceVar(&pickExcludeLabels, "exclude-label", nil, "Reject tasks carrying any of these labels")
	pickCmd.Flags().StringSliceVar(&pickPreferred, "prefer-label", nil, "Score bonus per matching label (never filters)")
	pickCmd.Flags().StringVar(&pickAssignee, "assignee", "", "Require this assignee")
	pickCmd.Flags().BoolVar(&pickUnassigned, "unassigned", false, "Require no assignee")
	pickCmd.Flags().IntVar(&pickMaxComplexity, "max-complexity", 0, "Reject tasks above this estimated complexity (0 = no limit)")
	pickCmd.Flags().IntVar(&pickTop, "top", 0, "Show the top N candidates instead of a single pick")
}

func pickFilter() picker.Filter {
	return picker.Filter{
		Labels:          pickLabels,
		ExcludeLabels:   pickExcludeLabels,
		PreferredLabels: pickPreferred,
		Assignee:        pickAssignee,
		UnassignedOnly:  pickUnassigned,
		MaxComplexity:   pickMaxComplexity,
	}
}

func runPick(cmd *cobra.Command, args []string) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	adapter, err := openTaskSource(cfg, ws)
	if err != nil {
		return err
	}
	tasks, err := adapter.ListTasks(tasksource.ListFilter{})
	if err != nil {
		return err
	}

	p := picker.New(cfg.Picker.Weights)
	filter := pickFilter()

	if pickTop > 0 {
		ranked := p.PickTopN(tasks, filter, pickTop)
		if len(ranked) == 0 {
			fmt.Println("No tasks available matching criteria.")
			return nil
		}
		for i, r := range ranked {
			fmt.Printf("%2d. %-12s %-40s %6.1f  %s\n", i+1, r.Task.ID, truncate(r.Task.Title, 40), r.Score, r.Reason)
		}
		return nil
	}

	result := p.PickNext(tasks, filter)
	if result.Task == nil {
		fmt.Println(result.Reason)
		if len(result.BlockedTaskIDs) > 0 {
			fmt.Printf("Blocked by dependencies: %s\n", strings.Join(result.BlockedTaskIDs, ", "))
		}
		return nil
	}

	logger.Debug("picked task",
		zap.String("id", result.Task.ID),
		zap.Float64("score", result.Score),
		zap.Int("considered", result.ConsideredCount))

	fmt.Printf("%s: %s\n", result.Task.ID, result.Task.Title)
	fmt.Printf("  score %.1f (%d considered)\n", result.Score, result.ConsideredCount)
	fmt.Printf("  %s\n", result.Reason)
	if result.Task.Description != "" {
		fmt.Printf("\n%s\n", result.Task.Description)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
