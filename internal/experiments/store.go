package experiments

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"triagent/internal/logging"
)

// stateFileName is the per-agent experiment state file.
const stateFileName = "ab-experiments.json"

// state is the on-disk shape. Assignments are keyed by
// experimentID + "\x00" + sessionKey; metrics by
// experimentID + "\x00" + variantID.
type state struct {
	Experiments map[string]*Experiment    `json:"experiments"`
	Assignments map[string]*Assignment    `json:"assignments"`
	Metrics     map[string]*VariantMetrics `json:"metrics"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

func newState() *state {
	return &state{
		Experiments: make(map[string]*Experiment),
		Assignments: make(map[string]*Assignment),
		Metrics:     make(map[string]*VariantMetrics),
	}
}

func stateKey(a, b string) string { return a + "\x00" + b }

// fileStore serializes all read-modify-write sequences on one agent's
// state file through a single mutex.
type fileStore struct {
	mu   sync.Mutex
	path string
}

// newFileStore roots the state file at <stateDir>/agents/<agentID>/.
func newFileStore(stateDir, agentID string) *fileStore {
	return &fileStore{path: filepath.Join(stateDir, "agents", agentID, stateFileName)}
}

// load reads the state file. A missing or corrupt file heals to an
// empty state; it is never an error.
func (fs *fileStore) load() *state {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return newState()
	}
	var s state
	if err := json.Unmarshal(raw, &s); err != nil {
		logging.Get(logging.CategoryExperiments).Warn("Corrupt experiment state at %s, starting fresh: %v", fs.path, err)
		return newState()
	}
	if s.Experiments == nil {
		s.Experiments = make(map[string]*Experiment)
	}
	if s.Assignments == nil {
		s.Assignments = make(map[string]*Assignment)
	}
	if s.Metrics == nil {
		s.Metrics = make(map[string]*VariantMetrics)
	}
	return &s
}

// save writes the state atomically via temp-file rename.
func (fs *fileStore) save(s *state) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0755); err != nil {
		return fmt.Errorf("failed to create experiment state directory: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal experiment state: %w", err)
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write experiment state: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace experiment state: %w", err)
	}
	return nil
}

// update runs one atomic read-modify-write cycle.
func (fs *fileStore) update(fn func(*state) error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s := fs.load()
	if err := fn(s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	return fs.save(s)
}

// view runs a read-only pass over the current state.
func (fs *fileStore) view(fn func(*state)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fn(fs.load())
}
