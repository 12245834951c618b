package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"triagent/internal/types"
)

func TestLocalSpawnCompletes(t *testing.T) {
	defer goleak.VerifyNone(t)

	solver := func(ctx context.Context, req SpawnRequest) (string, types.TokenUsage, error) {
		return "answer to " + req.Task, types.TokenUsage{TotalTokens: 12}, nil
	}
	gw := NewLocal(solver, DefaultLocalConfig())

	resp, err := gw.Spawn(context.Background(), SpawnRequest{Task: "t1", Label: "baseline"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RunID == "" || !strings.HasPrefix(resp.ChildSessionKey, "local:") {
		t.Fatalf("response: %+v", resp)
	}

	gw.Wait(resp.RunID)
	status, err := gw.Status(context.Background(), resp.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != RunCompleted {
		t.Fatalf("state = %s, err = %s", status.State, status.Err)
	}
	if status.Output != "answer to t1" || status.Usage.TotalTokens != 12 {
		t.Errorf("status: %+v", status)
	}
}

func TestLocalSolverErrorFailsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	solver := func(ctx context.Context, req SpawnRequest) (string, types.TokenUsage, error) {
		return "", types.TokenUsage{}, fmt.Errorf("model unavailable")
	}
	gw := NewLocal(solver, DefaultLocalConfig())

	resp, err := gw.Spawn(context.Background(), SpawnRequest{Task: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	gw.Wait(resp.RunID)

	status, _ := gw.Status(context.Background(), resp.RunID)
	if status.State != RunFailed || !strings.Contains(status.Err, "model unavailable") {
		t.Fatalf("status: %+v", status)
	}
}

func TestLocalCancelStopsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	solver := func(ctx context.Context, req SpawnRequest) (string, types.TokenUsage, error) {
		<-ctx.Done()
		return "", types.TokenUsage{}, ctx.Err()
	}
	gw := NewLocal(solver, DefaultLocalConfig())

	resp, err := gw.Spawn(context.Background(), SpawnRequest{Task: "t1", TimeoutSeconds: 60})
	if err != nil {
		t.Fatal(err)
	}
	if err := gw.Cancel(context.Background(), resp.RunID); err != nil {
		t.Fatal(err)
	}
	gw.Wait(resp.RunID)

	status, _ := gw.Status(context.Background(), resp.RunID)
	if status.State != RunFailed {
		t.Fatalf("state = %s", status.State)
	}
}

func TestLocalConcurrencyCap(t *testing.T) {
	defer goleak.VerifyNone(t)

	var active, peak int32
	release := make(chan struct{})
	solver := func(ctx context.Context, req SpawnRequest) (string, types.TokenUsage, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&active, -1)
		return "done", types.TokenUsage{}, nil
	}
	gw := NewLocal(solver, LocalConfig{MaxConcurrentRuns: 2})

	var runs []string
	for i := 0; i < 5; i++ {
		resp, err := gw.Spawn(context.Background(), SpawnRequest{Task: fmt.Sprintf("t%d", i), TimeoutSeconds: 30})
		if err != nil {
			t.Fatal(err)
		}
		runs = append(runs, resp.RunID)
	}

	// Let the first two acquire their slots before releasing everyone.
	time.Sleep(50 * time.Millisecond)
	close(release)
	for _, id := range runs {
		gw.Wait(id)
	}

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrency %d exceeds cap 2", got)
	}
}

func TestLocalUnknownRun(t *testing.T) {
	gw := NewLocal(func(ctx context.Context, req SpawnRequest) (string, types.TokenUsage, error) {
		return "", types.TokenUsage{}, nil
	}, DefaultLocalConfig())

	if _, err := gw.Status(context.Background(), "nope"); err == nil {
		t.Error("unknown run id must error")
	}
	if err := gw.Cancel(context.Background(), "nope"); err == nil {
		t.Error("unknown run id must error")
	}
}
