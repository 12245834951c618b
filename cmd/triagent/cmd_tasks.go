package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"triagent/internal/picker"
	"triagent/internal/tasksource"
	"triagent/internal/types"
)

var (
	tasksStatus   string
	tasksLabel    string
	tasksAssignee string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and update the markdown task file",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered",
	RunE:  runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task with its comments",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var tasksStatusCmd = &cobra.Command{
	Use:   "status <task-id> <status>",
	Short: "Set a task's status",
	Long: `Sets the task status in the task file. Valid statuses:
  open, in-progress, blocked, review, closed, wont-do`,
	Args: cobra.ExactArgs(2),
	RunE: runTasksStatus,
}

var tasksCommentCmd = &cobra.Command{
	Use:   "comment <task-id> <body>",
	Short: "Append a comment to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTasksComment,
}

var tasksWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the task file and reprint the pick on every change",
	RunE:  runTasksWatch,
}

func init() {
	tasksListCmd.Flags().StringVar(&tasksStatus, "status", "", "Filter by status")
	tasksListCmd.Flags().StringVar(&tasksLabel, "label", "", "Filter by label")
	tasksListCmd.Flags().StringVar(&tasksAssignee, "assignee", "", "Filter by assignee")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksShowCmd)
	tasksCmd.AddCommand(tasksStatusCmd)
	tasksCmd.AddCommand(tasksCommentCmd)
	tasksCmd.AddCommand(tasksWatchCmd)
}

func openConfiguredSource() (*tasksource.MarkdownAdapter, error) {
	cfg, ws, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openTaskSource(cfg, ws)
}

func runTasksList(cmd *cobra.Command, args []string) error {
	adapter, err := openConfiguredSource()
	if err != nil {
		return err
	}

	filter := tasksource.ListFilter{Label: tasksLabel, Assignee: tasksAssignee}
	if tasksStatus != "" {
		status := types.TaskStatus(tasksStatus)
		filter.Status = &status
	}

	tasks, err := adapter.ListTasks(filter)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks match.")
		return nil
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%-12s %-12s %-8s %s", t.ID, t.Status, t.Priority, t.Title)
		if len(t.Labels) > 0 {
			line += "  [" + strings.Join(t.Labels, ", ") + "]"
		}
		fmt.Println(line)
	}
	return nil
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	adapter, err := openConfiguredSource()
	if err != nil {
		return err
	}

	task, err := adapter.GetTask(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", task.ID, task.Title)
	fmt.Printf("  status: %s  priority: %s\n", task.Status, task.Priority)
	if len(task.Labels) > 0 {
		fmt.Printf("  labels: %s\n", strings.Join(task.Labels, ", "))
	}
	if len(task.Assignees) > 0 {
		fmt.Printf("  assignees: %s\n", strings.Join(task.Assignees, ", "))
	}
	if len(task.DependsOn) > 0 {
		fmt.Printf("  depends on: %s\n", strings.Join(task.DependsOn, ", "))
	}
	if task.Description != "" {
		fmt.Printf("\n%s\n", task.Description)
	}

	comments, err := adapter.GetComments(task.ID)
	if err != nil {
		return err
	}
	if len(comments) > 0 {
		fmt.Println("\nComments:")
		for _, c := range comments {
			fmt.Printf("  %s %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.Author, c.Body)
		}
	}
	return nil
}

func runTasksStatus(cmd *cobra.Command, args []string) error {
	adapter, err := openConfiguredSource()
	if err != nil {
		return err
	}

	status := types.TaskStatus(args[1])
	switch status {
	case types.TaskOpen, types.TaskInProgress, types.TaskBlocked,
		types.TaskReview, types.TaskClosed, types.TaskWontDo:
	default:
		return fmt.Errorf("unknown status %q", args[1])
	}

	if err := adapter.UpdateStatus(args[0], status); err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", args[0], status)
	return nil
}

func runTasksComment(cmd *cobra.Command, args []string) error {
	adapter, err := openConfiguredSource()
	if err != nil {
		return err
	}

	body := strings.Join(args[1:], " ")
	if err := adapter.AddComment(args[0], "triagent", body); err != nil {
		return err
	}
	fmt.Println("Comment added.")
	return nil
}

func runTasksWatch(cmd *cobra.Command, args []string) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	adapter, err := openTaskSource(cfg, ws)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	printPick := func() {
		tasks, err := adapter.ListTasks(tasksource.ListFilter{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		result := picker.New(cfg.Picker.Weights).PickNext(tasks, picker.Filter{})
		if result.Task == nil {
			fmt.Println(result.Reason)
			return
		}
		fmt.Printf("next: %s: %s (score %.1f)\n", result.Task.ID, result.Task.Title, result.Score)
	}

	watcher, err := tasksource.NewWatcher(adapter)
	if err != nil {
		return err
	}
	watcher.OnReload(printPick)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Println("Watching task file; Ctrl-C to stop.")
	printPick()
	<-ctx.Done()
	return nil
}
