package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"triagent/internal/logging"
	"triagent/internal/types"
)

// SolverFunc produces the output for one run. The context carries the
// per-run timeout; implementations should return promptly once it expires.
type SolverFunc func(ctx context.Context, req SpawnRequest) (output string, usage types.TokenUsage, err error)

// Local is an in-process gateway that executes each spawned run on its own
// goroutine, bounded by a weighted semaphore. Used by the CLI demo mode and
// as the deterministic gateway in tests.
type Local struct {
	mu     sync.Mutex
	solver SolverFunc
	runs   map[string]*localRun
	sem    *semaphore.Weighted
}

type localRun struct {
	state  RunState
	output string
	err    string
	usage  types.TokenUsage
	cancel context.CancelFunc
	done   chan struct{}
}

// LocalConfig configures a Local gateway.
type LocalConfig struct {
	// MaxConcurrentRuns caps simultaneously executing solver goroutines.
	MaxConcurrentRuns int
}

// DefaultLocalConfig returns sensible defaults.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{MaxConcurrentRuns: 8}
}

// NewLocal creates a local gateway around the given solver.
func NewLocal(solver SolverFunc, cfg LocalConfig) *Local {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = DefaultLocalConfig().MaxConcurrentRuns
	}
	return &Local{
		solver: solver,
		runs:   make(map[string]*localRun),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentRuns)),
	}
}

// Spawn starts the solver on a new goroutine and returns immediately.
func (g *Local) Spawn(ctx context.Context, req SpawnRequest) (*SpawnResponse, error) {
	if g.solver == nil {
		return nil, fmt.Errorf("local gateway has no solver configured")
	}

	runID := uuid.NewString()
	sessionKey := fmt.Sprintf("local:%s", runID)

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(context.Background(), timeout)

	run := &localRun{
		state:  RunRunning,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	g.mu.Lock()
	g.runs[runID] = run
	g.mu.Unlock()

	logging.Gateway("Spawned local run %s (label=%s, timeout=%v)", runID, req.Label, timeout)

	go func() {
		defer cancel()
		defer close(run.done)

		if err := g.sem.Acquire(runCtx, 1); err != nil {
			g.finish(runID, "", types.TokenUsage{}, fmt.Errorf("timeout waiting for execution slot: %w", err))
			return
		}
		defer g.sem.Release(1)

		output, usage, err := g.solver(runCtx, req)
		if err == nil && runCtx.Err() != nil {
			err = fmt.Errorf("run timeout: %w", runCtx.Err())
		}
		g.finish(runID, output, usage, err)
	}()

	return &SpawnResponse{RunID: runID, ChildSessionKey: sessionKey}, nil
}

func (g *Local) finish(runID, output string, usage types.TokenUsage, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	run, ok := g.runs[runID]
	if !ok {
		return
	}
	run.usage = usage
	if err != nil {
		run.state = RunFailed
		run.err = err.Error()
		logging.GatewayDebug("Run %s failed: %v", runID, err)
		return
	}
	run.state = RunCompleted
	run.output = output
	logging.GatewayDebug("Run %s completed (%d bytes)", runID, len(output))
}

// Status reports the run's current state.
func (g *Local) Status(ctx context.Context, runID string) (*StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	run, ok := g.runs[runID]
	if !ok {
		return nil, fmt.Errorf("unknown run id: %s", runID)
	}
	return &StatusResponse{
		State:  run.state,
		Output: run.output,
		Err:    run.err,
		Usage:  run.usage,
	}, nil
}

// Cancel stops a running solver by cancelling its context.
func (g *Local) Cancel(ctx context.Context, runID string) error {
	g.mu.Lock()
	run, ok := g.runs[runID]
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown run id: %s", runID)
	}
	run.cancel()
	return nil
}

// Wait blocks until the given run reaches a terminal state. Test helper.
func (g *Local) Wait(runID string) {
	g.mu.Lock()
	run, ok := g.runs[runID]
	g.mu.Unlock()
	if ok {
		<-run.done
	}
}
