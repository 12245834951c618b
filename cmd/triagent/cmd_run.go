package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triagent/internal/channels"
	"triagent/internal/config"
	"triagent/internal/evaluation"
	"triagent/internal/experiments"
	"triagent/internal/gateway"
	"triagent/internal/iteration"
	"triagent/internal/llm"
	"triagent/internal/patterns"
	"triagent/internal/picker"
	"triagent/internal/presentation"
	"triagent/internal/tasksource"
	"triagent/internal/types"
)

var (
	runIterations int
	runApply      bool
	runDetail     bool
	runWidth      int
)

var runCmd = &cobra.Command{
	Use:   "run [task-id]",
	Short: "Run solver iterations against a task and rank the solutions",
	Long: `Runs the full triage pipeline for one task:
  1. Pick: the given task id, or the best pick from the task file
  2. Iterate: spawn solver variations through the worker gateway
  3. Evaluate: score each solution across five rubric categories
  4. Rank: order solutions, select a winner, decide auto-acceptance
  5. Present: render the summary, and apply the winner with --apply`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().IntVar(&runIterations, "iterations", 3, "Number of solver variations to spawn")
	runCmd.Flags().BoolVar(&runApply, "apply", false, "On auto-accept, move the task to review and comment the outcome")
	runCmd.Flags().BoolVar(&runDetail, "detail", false, "Also render the winner's category breakdown")
	runCmd.Flags().IntVar(&runWidth, "width", 100, "Terminal render width")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	adapter, err := openTaskSource(cfg, ws)
	if err != nil {
		return err
	}

	task, err := selectTask(cfg, adapter, args)
	if err != nil {
		return err
	}
	fmt.Printf("Running %s: %s\n", task.ID, task.Title)

	limits := cfg.Limits()
	ctx, cancel := context.WithTimeout(context.Background(), limits.TotalTimeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	solver, err := llm.NewGeminiSolver(cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return err
	}
	defer solver.Close()

	stateDir := cfg.StateDir(ws)
	engine := experiments.NewEngine(stateDir, cfg.Agent)

	// One strategy session per run: every variation shares the same
	// experiment enrollment, and feedback later re-derives it.
	sessionKey := uuid.NewString()

	plan := iteration.NewPlan(
		types.TaskHandle{ID: task.ID, Title: task.Title, Description: task.Description},
		iteration.StrategyParallel,
		buildVariations(engine, sessionKey, runIterations),
		limits,
		iteration.CompletionCriteria{WaitForAll: true},
	)

	gw := gateway.NewLocal(solver.SolverFunc(), gateway.LocalConfig{MaxConcurrentRuns: limits.MaxConcurrent})
	scorer := iteration.NewResultScorer(cfg.Iteration.ScoreWeights, cfg.Iteration.Penalties)
	runner := iteration.NewRunner(plan, gw, scorer, cfg.RunnerConfig())

	started := time.Now()
	aggregated, err := runner.Execute(ctx)
	if err != nil {
		return fmt.Errorf("iteration run failed: %w", err)
	}
	logger.Info("iterations finished",
		zap.String("task", task.ID),
		zap.Int("results", len(runner.GetResults())),
		zap.Int("selected", len(aggregated.Selected)),
		zap.Float64("aggregate_confidence", aggregated.Confidence),
		zap.Duration("elapsed", time.Since(started)))

	ranking, evals, err := evaluateResults(ctx, cfg, ws, task, runner.GetResults())
	if err != nil {
		return err
	}
	decision := evaluation.ShouldAutoAccept(cfg.Evaluation.AutoAccept, ranking)

	recordRunOutcome(cfg, stateDir, engine, sessionKey, started, decision)

	view := presentation.BuildSummaryView(ranking, decision, task.ID, task.Title,
		time.Since(started).Milliseconds(), time.Now())
	term := channels.NewTerminal(runWidth)
	fmt.Print(term.RenderSummary(view))
	fmt.Println(term.RenderActionBar(presentation.ActionBarConfig{Context: presentation.ContextSummary}))

	if runDetail && ranking.Winner != nil {
		if ev := evals[ranking.Winner.Evaluation.SolutionID]; ev != nil {
			fmt.Print(term.RenderDetail(presentation.BuildDetailView(ev, cfg.Evaluation.Weights)))
		}
	}

	if runApply && decision.Accept && ranking.Winner != nil {
		if err := applyWinner(adapter, task.ID, ranking, decision); err != nil {
			return err
		}
		fmt.Printf("Accepted solution %s; task %s moved to review.\n",
			ranking.Winner.Evaluation.SolutionID, task.ID)
	}
	return nil
}

// selectTask resolves the explicit task id, or falls back to the picker.
func selectTask(cfg *config.Config, adapter *tasksource.MarkdownAdapter, args []string) (*types.PickableTask, error) {
	if len(args) == 1 {
		task, err := adapter.GetTask(args[0])
		if err != nil {
			return nil, err
		}
		return task, nil
	}

	tasks, err := adapter.ListTasks(tasksource.ListFilter{})
	if err != nil {
		return nil, err
	}
	result := picker.New(cfg.Picker.Weights).PickNext(tasks, pickFilter())
	if result.Task == nil {
		return nil, fmt.Errorf("no runnable task: %s", result.Reason)
	}
	return result.Task, nil
}

// buildVariations derives the solver variations for one plan: a ladder
// of thinking levels, each carrying the session's strategy instruction
// from the active experiments.
func buildVariations(engine *experiments.Engine, sessionKey string, n int) []*iteration.Variation {
	if n < 1 {
		n = 1
	}

	instruction, err := engine.BuildStrategyInstruction(sessionKey)
	if err != nil {
		instruction = ""
	}

	ladder := []types.ThinkingLevel{
		types.ThinkingLow, types.ThinkingHigh, types.ThinkingMedium, types.ThinkingNone,
	}
	levels := make([]types.ThinkingLevel, n)
	for i := range levels {
		levels[i] = ladder[i%len(ladder)]
	}

	variations := iteration.ThinkingVariations(levels)
	for _, v := range variations {
		v.AdditionalContext = instruction
	}
	return variations
}

// evaluateResults scores every successful result and ranks the outcomes.
func evaluateResults(ctx context.Context, cfg *config.Config, ws string, task *types.PickableTask, results []*iteration.Result) (evaluation.Ranking, map[string]*evaluation.SolutionEvaluation, error) {
	assessor, err := llm.NewGeminiAssessor(cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return evaluation.Ranking{}, nil, err
	}
	defer assessor.Close()

	evaluator, err := evaluation.NewEvaluator(cfg.EvaluatorConfig(ws), evaluation.ComparatorDeps{
		SpawnCommand: execSpawner,
		Assess:       assessor.AssessFunc(),
	})
	if err != nil {
		return evaluation.Ranking{}, nil, err
	}

	byID := make(map[string]*evaluation.SolutionEvaluation)
	var evals []*evaluation.SolutionEvaluation
	for _, res := range results {
		if !res.Success {
			continue
		}
		ev, err := evaluator.Evaluate(ctx, evaluation.SolutionInput{
			SolutionID:      res.VariationID,
			IterationID:     res.RunID,
			TaskDescription: task.Description,
			SolutionCode:    res.Output,
		})
		if err != nil {
			logger.Warn("evaluation failed", zap.String("variation", res.VariationID), zap.Error(err))
			continue
		}
		evals = append(evals, ev)
		byID[ev.SolutionID] = ev
	}
	return evaluation.RankSolutions(evals), byID, nil
}

// execSpawner runs a verification command via os/exec. A start failure
// is an error; a non-zero exit is a result.
func execSpawner(ctx context.Context, cmd string, args []string, cwd string, env map[string]string) (evaluation.CommandResult, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = cwd
	c.Env = os.Environ()
	for k, v := range env {
		c.Env = append(c.Env, k+"="+v)
	}

	stdout, err := c.Output()
	result := evaluation.CommandResult{Stdout: string(stdout)}
	if err == nil {
		result.Success = true
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.Stderr = string(exitErr.Stderr)
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return evaluation.CommandResult{}, err
}

// recordRunOutcome feeds the run back into patterns and experiments.
func recordRunOutcome(cfg *config.Config, stateDir string, engine *experiments.Engine, sessionKey string, started time.Time, decision evaluation.AutoAcceptDecision) {
	store, err := patterns.NewStore(patternsDBPath(stateDir), cfg.Agent)
	if err != nil {
		logger.Warn("pattern store unavailable", zap.Error(err))
	} else {
		defer store.Close()
		tracker := patterns.NewTracker(store, cfg.Patterns)
		if err := tracker.RecordTimeObservation("triage run", started); err != nil {
			logger.Warn("pattern observation failed", zap.Error(err))
		}
		outcome := "run rejected"
		if decision.Accept {
			outcome = "run accepted"
		}
		delay := time.Since(started).Seconds()
		if err := tracker.RecordEventObservation("triage run", outcome, delay, time.Now()); err != nil {
			logger.Warn("pattern observation failed", zap.Error(err))
		}
		if err := tracker.Maintain(); err != nil {
			logger.Warn("pattern maintenance failed", zap.Error(err))
		}
	}

	// Assignment is a pure hash of (session, experiment), so the variant
	// the run was enrolled in can be re-derived for feedback.
	for _, exp := range engine.ListExperiments(true) {
		variant := experiments.AssignVariant(&exp, sessionKey)
		if variant == nil {
			continue
		}
		if err := engine.RecordVariantFeedback(exp.ID, variant.ID, decision.Accept); err != nil {
			logger.Warn("experiment feedback failed", zap.Error(err))
		}
	}
}

// applyWinner moves the task to review with an audit comment.
func applyWinner(adapter *tasksource.MarkdownAdapter, taskID string, ranking evaluation.Ranking, decision evaluation.AutoAcceptDecision) error {
	if err := adapter.UpdateStatus(taskID, types.TaskReview); err != nil {
		return err
	}
	comment := fmt.Sprintf("auto-accepted solution %s (score %.2f, confidence %.2f): %s",
		ranking.Winner.Evaluation.SolutionID,
		ranking.Winner.Evaluation.OverallScore,
		ranking.Confidence,
		decision.Reason)
	return adapter.AddComment(taskID, "triagent", comment)
}
