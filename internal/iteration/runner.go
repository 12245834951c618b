package iteration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"triagent/internal/gateway"
	"triagent/internal/logging"
)

// RunnerConfig tunes the runner's loop.
type RunnerConfig struct {
	// PollInterval between gateway status sweeps. Tests override to ~10ms.
	PollInterval time.Duration

	// Aggregation is the final fold. The plan's strategy shapes spawning
	// only; the fold stays "best" unless a caller overrides it here.
	Aggregation AggregationStrategy
}

// DefaultRunnerConfig returns the standard runner settings.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PollInterval: time.Second,
		Aggregation:  AggregateBest,
	}
}

// Runner owns one plan and drives it to a terminal state. A plan has at
// most one run; no two runners may share a plan.
type Runner struct {
	mu sync.Mutex

	plan      *Plan
	gw        gateway.Gateway
	limits    *LimitEnforcer
	collector *Collector
	scorer    *ResultScorer
	cfg       RunnerConfig

	spawnedAt   map[string]time.Time // variation id -> spawn instant
	sessionKeys map[string]string    // variation id -> gateway session key
	stopped     atomic.Bool
	executed    bool
}

// NewRunner wires a runner for the given plan.
func NewRunner(plan *Plan, gw gateway.Gateway, scorer *ResultScorer, cfg RunnerConfig) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultRunnerConfig().PollInterval
	}
	if cfg.Aggregation == "" {
		cfg.Aggregation = AggregateBest
	}
	return &Runner{
		plan:      plan,
		gw:        gw,
		limits:    NewLimitEnforcer(plan.Limits),
		collector: NewCollector(len(plan.Variations), plan.Criteria),
		scorer:    scorer,
		cfg:       cfg,
		spawnedAt: make(map[string]time.Time),
	}
}

// OnResult registers a listener on the underlying collector.
func (r *Runner) OnResult(fn ResultListener) {
	r.collector.OnResult(fn)
}

// Execute runs the plan to completion and returns the aggregated outcome.
func (r *Runner) Execute(ctx context.Context) (Aggregated, error) {
	r.mu.Lock()
	if r.executed {
		r.mu.Unlock()
		return Aggregated{}, fmt.Errorf("plan %s already executed", r.plan.ID)
	}
	if r.plan.Status != PlanPending {
		r.mu.Unlock()
		return Aggregated{}, fmt.Errorf("plan %s is %s, expected pending", r.plan.ID, r.plan.Status)
	}
	r.executed = true
	now := time.Now()
	r.plan.Status = PlanRunning
	r.plan.StartedAt = &now
	r.mu.Unlock()

	logging.Iteration("Executing plan %s: %d variations, strategy=%s", r.plan.ID, len(r.plan.Variations), r.plan.Strategy)

	r.spawnInitial(ctx)
	r.waitLoop(ctx)

	results := r.collector.Results()
	agg := Aggregate(results, r.cfg.Aggregation)

	r.mu.Lock()
	if !r.plan.Status.Terminal() {
		r.plan.Status = PlanCompleted
	}
	if r.plan.CompletedAt == nil {
		done := time.Now()
		r.plan.CompletedAt = &done
	}
	status := r.plan.Status
	r.mu.Unlock()

	logging.Iteration("Plan %s finished: status=%s, results=%d, confidence=%.2f", r.plan.ID, status, len(results), agg.Confidence)
	return agg, nil
}

// spawnInitial fills the concurrency budget with the highest-priority
// pending variations. Stops at the first limit refusal.
func (r *Runner) spawnInitial(ctx context.Context) {
	for _, v := range r.pendingByPriority() {
		if !r.maySpawnForStrategy() {
			return
		}
		if decision := r.limits.CanSpawn(); !decision.Allowed {
			logging.IterationDebug("Initial spawn stopped: %s", decision.Reason)
			return
		}
		r.SpawnVariation(ctx, v)
	}
}

// maySpawnForStrategy applies strategy-specific spawn shaping on top of
// the limit enforcer: sequential plans keep at most one in flight.
func (r *Runner) maySpawnForStrategy() bool {
	if r.plan.Strategy == StrategySequential {
		return r.limits.ActiveCount() == 0
	}
	return true
}

// waitLoop polls spawned variations until the plan completes, times out,
// or is stopped.
func (r *Runner) waitLoop(ctx context.Context) {
	for {
		if r.stopped.Load() || r.GetStatus() == PlanCancelled {
			return
		}
		if r.collector.IsComplete() {
			return
		}
		if r.limits.RemainingTime() <= 0 {
			r.handleTotalTimeout()
			return
		}
		if r.idle() {
			// Nothing in flight and nothing spawnable: further waiting
			// cannot produce results.
			return
		}

		select {
		case <-ctx.Done():
			r.Stop()
			return
		case <-time.After(r.cfg.PollInterval):
		}

		r.poll(ctx)
	}
}

// idle reports that no variation is in flight and none can be spawned.
func (r *Runner) idle() bool {
	if r.limits.ActiveCount() > 0 {
		return false
	}
	pending := r.pendingByPriority()
	if len(pending) == 0 {
		return true
	}
	return !r.limits.CanSpawn().Allowed
}

// poll sweeps all in-flight variations once.
func (r *Runner) poll(ctx context.Context) {
	r.mu.Lock()
	inFlight := make([]*Variation, 0, len(r.plan.Variations))
	for _, v := range r.plan.Variations {
		if v.Status == VariationSpawned || v.Status == VariationRunning {
			inFlight = append(inFlight, v)
		}
	}
	r.mu.Unlock()

	for _, v := range inFlight {
		status, err := r.gw.Status(ctx, v.RunID)
		if err != nil {
			r.finishVariation(ctx, v, VariationFailed, "", fmt.Sprintf("status check failed: %v", err), nil)
			continue
		}

		switch status.State {
		case gateway.RunRunning:
			r.mu.Lock()
			if v.Status == VariationSpawned {
				v.Status = VariationRunning
			}
			r.mu.Unlock()
		case gateway.RunCompleted:
			r.finishVariation(ctx, v, VariationCompleted, status.Output, "", status)
		case gateway.RunFailed:
			r.finishVariation(ctx, v, VariationFailed, "", status.Err, status)
		}
	}
}

// SpawnVariation spawns one variation through the gateway. Exposed as a
// lower-level hook for deterministic testing; Execute calls it internally.
func (r *Runner) SpawnVariation(ctx context.Context, v *Variation) {
	prompt := BuildPrompt(r.plan.Task, v)
	timeoutSec := int(r.limits.IterationTimeout().Seconds())

	resp, err := r.gw.Spawn(ctx, gateway.SpawnRequest{
		Task:           prompt,
		Label:          v.Label,
		Model:          v.Model,
		Thinking:       v.Thinking,
		TimeoutSeconds: timeoutSec,
	})
	now := time.Now()

	r.mu.Lock()
	if err != nil {
		v.Status = VariationFailed
		r.mu.Unlock()
		logging.Iteration("Spawn failed for variation %s: %v", v.Label, err)
		res := &Result{
			VariationID: v.ID,
			StartedAt:   now,
			EndedAt:     now,
			Error:       fmt.Sprintf("spawn failed: %v", err),
		}
		res.Metrics.OverallScore = r.scorer.Score(res)
		r.addResult(res, v)
		return
	}
	v.Status = VariationSpawned
	v.RunID = resp.RunID
	r.spawnedAt[v.ID] = now
	if resp.ChildSessionKey != "" {
		if r.sessionKeys == nil {
			r.sessionKeys = make(map[string]string)
		}
		r.sessionKeys[v.ID] = resp.ChildSessionKey
	}
	r.mu.Unlock()

	r.limits.RecordSpawn()
	logging.IterationDebug("Variation %s spawned as run %s", v.Label, resp.RunID)
}

// finishVariation synthesizes the result for a terminal transition and
// tries to spawn the next pending variation.
func (r *Runner) finishVariation(ctx context.Context, v *Variation, status VariationStatus, output, errMsg string, gwStatus *gateway.StatusResponse) {
	started := time.Now()

	r.mu.Lock()
	if v.Status.Terminal() {
		r.mu.Unlock()
		return // exactly one terminal transition
	}
	if t, ok := r.spawnedAt[v.ID]; ok {
		started = t
	}
	v.Status = status
	sessionKey := ""
	if r.sessionKeys != nil {
		sessionKey = r.sessionKeys[v.ID]
	}
	runID := v.RunID
	r.mu.Unlock()

	ended := time.Now()
	res := &Result{
		VariationID: v.ID,
		RunID:       runID,
		SessionKey:  sessionKey,
		StartedAt:   started,
		EndedAt:     ended,
		DurationMS:  ended.Sub(started).Milliseconds(),
		Output:      output,
		Success:     status == VariationCompleted,
		Error:       errMsg,
	}
	if gwStatus != nil {
		res.Usage = gwStatus.Usage
	}
	if res.Success {
		res.OutputType = classifyOutput(output)
		if conf, ok := ParseConfidence(output); ok {
			res.Metrics.Confidence = &conf
		}
	}
	res.Metrics.OverallScore = r.scorer.Score(res)

	r.addResult(res, v)
	r.limits.RecordCompletion(res)

	// A completion frees budget; fill it unless the plan is done.
	if !r.collector.IsComplete() && !r.stopped.Load() {
		r.spawnNext(ctx)
	}
}

// addResult records the result on the variation and in the collector.
func (r *Runner) addResult(res *Result, v *Variation) {
	r.mu.Lock()
	v.Result = res
	r.mu.Unlock()
	r.collector.Add(res)
}

// spawnNext spawns the single highest-priority pending variation, if
// limits and strategy allow.
func (r *Runner) spawnNext(ctx context.Context) {
	pending := r.pendingByPriority()
	if len(pending) == 0 {
		return
	}
	if !r.maySpawnForStrategy() {
		return
	}
	if decision := r.limits.CanSpawn(); !decision.Allowed {
		logging.IterationDebug("Spawn denied: %s", decision.Reason)
		return
	}
	r.SpawnVariation(ctx, pending[0])
}

func (r *Runner) pendingByPriority() []*Variation {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]*Variation, 0, len(r.plan.Variations))
	for _, v := range r.plan.Variations {
		if v.Status == VariationPending {
			pending = append(pending, v)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority < pending[j].Priority
	})
	return pending
}

// handleTotalTimeout marks the plan and all in-flight variations as
// timed out, synthesizing failing results for them.
func (r *Runner) handleTotalTimeout() {
	logging.Iteration("Plan %s hit total timeout", r.plan.ID)

	r.mu.Lock()
	now := time.Now()
	r.plan.Status = PlanTimeout
	r.plan.CompletedAt = &now
	var active []*Variation
	for _, v := range r.plan.Variations {
		if v.Status == VariationSpawned || v.Status == VariationRunning {
			active = append(active, v)
		}
	}
	r.mu.Unlock()

	for _, v := range active {
		r.mu.Lock()
		v.Status = VariationTimeout
		started := r.spawnedAt[v.ID]
		runID := v.RunID
		r.mu.Unlock()

		res := &Result{
			VariationID: v.ID,
			RunID:       runID,
			StartedAt:   started,
			EndedAt:     now,
			DurationMS:  now.Sub(started).Milliseconds(),
			Error:       "timeout",
		}
		res.Metrics.OverallScore = r.scorer.Score(res)
		r.addResult(res, v)
		r.limits.RecordCompletion(res)
	}
}

// Stop cancels the plan. Spawned runs get a best-effort gateway cancel;
// gateways without cancellation leave them to time out on their own.
func (r *Runner) Stop() {
	if r.stopped.Swap(true) {
		return
	}

	r.mu.Lock()
	now := time.Now()
	r.plan.Status = PlanCancelled
	r.plan.CompletedAt = &now
	var inFlight []string
	for _, v := range r.plan.Variations {
		if v.Status == VariationSpawned || v.Status == VariationRunning {
			inFlight = append(inFlight, v.RunID)
		}
	}
	r.mu.Unlock()

	logging.Iteration("Plan %s stopped (%d runs in flight)", r.plan.ID, len(inFlight))
	for _, runID := range inFlight {
		if err := r.gw.Cancel(context.Background(), runID); err != nil && err != gateway.ErrCancelUnsupported {
			logging.IterationDebug("Cancel of run %s failed: %v", runID, err)
		}
	}
}

// GetStatus returns the plan's current status.
func (r *Runner) GetStatus() PlanStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plan.Status
}

// GetResults returns collected results in insertion order.
func (r *Runner) GetResults() []*Result {
	return r.collector.Results()
}

// GetBestResult returns the best successful result, or nil.
func (r *Runner) GetBestResult() *Result {
	return r.collector.Best()
}

// Limits exposes the enforcer for status displays and tests.
func (r *Runner) Limits() *LimitEnforcer {
	return r.limits
}
