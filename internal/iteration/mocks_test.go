package iteration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"triagent/internal/gateway"
	"triagent/internal/types"
)

// fakeGateway is a scripted worker gateway. Runs complete after a fixed
// number of status polls, so tests control timing without real work.
type fakeGateway struct {
	mu sync.Mutex

	spawned   int
	active    int
	maxActive int

	pollsUntilDone int
	polls          map[string]int
	outputs        map[string]string

	failSpawn  bool
	failRun    bool
	neverDone  bool
	usage      types.TokenUsage
	cancelled  []string
	outputText string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pollsUntilDone: 1,
		polls:          make(map[string]int),
		outputs:        make(map[string]string),
		outputText:     "Solution body.\nConfidence: 80%",
	}
}

func (g *fakeGateway) Spawn(ctx context.Context, req gateway.SpawnRequest) (*gateway.SpawnResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failSpawn {
		return nil, fmt.Errorf("spawn refused")
	}

	g.spawned++
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	runID := fmt.Sprintf("run-%d", g.spawned)
	g.outputs[runID] = g.outputText
	return &gateway.SpawnResponse{RunID: runID, ChildSessionKey: "session-" + runID}, nil
}

func (g *fakeGateway) Status(ctx context.Context, runID string) (*gateway.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.outputs[runID]; !ok {
		return nil, fmt.Errorf("unknown run: %s", runID)
	}
	if g.neverDone {
		return &gateway.StatusResponse{State: gateway.RunRunning}, nil
	}

	g.polls[runID]++
	if g.polls[runID] < g.pollsUntilDone {
		return &gateway.StatusResponse{State: gateway.RunRunning}, nil
	}

	g.active--
	if g.failRun {
		return &gateway.StatusResponse{State: gateway.RunFailed, Err: "solver crashed"}, nil
	}
	return &gateway.StatusResponse{
		State:  gateway.RunCompleted,
		Output: g.outputs[runID],
		Usage:  g.usage,
	}, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, runID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, runID)
	return nil
}

func testVariations(n int) []*Variation {
	out := make([]*Variation, n)
	for i := range out {
		out[i] = &Variation{
			ID:       fmt.Sprintf("var-%d", i),
			Label:    fmt.Sprintf("variation %d", i),
			Priority: i,
			Status:   VariationPending,
		}
	}
	return out
}

func testPlan(n int, limits Limits, criteria CompletionCriteria) *Plan {
	return NewPlan(
		types.TaskHandle{ID: "task-1", Title: "Fix the widget", Description: "It wobbles."},
		StrategyParallel,
		testVariations(n),
		limits,
		criteria,
	)
}

func fastRunnerConfig() RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}
