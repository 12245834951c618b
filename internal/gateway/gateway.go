// Package gateway defines the worker gateway contract the iteration runner
// speaks: spawn a sub-agent run, poll its status, optionally cancel it.
// Concrete gateways wrap whatever actually executes the work (a session
// spawner, a remote agent service, or an in-process solver for tests).
package gateway

import (
	"context"
	"errors"

	"triagent/internal/types"
)

// ErrCancelUnsupported is returned by gateways that cannot cancel a run.
// Callers treat it as best-effort: the run is left to finish or time out.
var ErrCancelUnsupported = errors.New("gateway does not support cancellation")

// RunState is the coarse lifecycle state of a spawned run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// SpawnRequest describes one sub-agent run to start.
type SpawnRequest struct {
	// Task is the full prompt for the run.
	Task string

	// Label identifies the run for humans (usually the variation label).
	Label string

	// Model selects the backing model; empty means the gateway default.
	Model string

	// Thinking selects the deliberation level.
	Thinking types.ThinkingLevel

	// TimeoutSeconds bounds the run's wall clock.
	TimeoutSeconds int
}

// SpawnResponse acknowledges an accepted run.
type SpawnResponse struct {
	RunID           string
	ChildSessionKey string
}

// StatusResponse reports a run's current state. Output is set on
// completion, Err on failure. Usage is optional; gateways that meter
// tokens report it so the runner can enforce cost and token caps.
type StatusResponse struct {
	State  RunState
	Output string
	Err    string
	Usage  types.TokenUsage
}

// Gateway is the sub-agent execution boundary.
type Gateway interface {
	// Spawn starts a run. A returned error means the run was never started.
	Spawn(ctx context.Context, req SpawnRequest) (*SpawnResponse, error)

	// Status reports on a previously spawned run.
	Status(ctx context.Context, runID string) (*StatusResponse, error)

	// Cancel requests termination of a run. Gateways may return
	// ErrCancelUnsupported; the caller then lets the run expire.
	Cancel(ctx context.Context, runID string) error
}
