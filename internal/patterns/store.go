package patterns

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"triagent/internal/logging"
)

// ErrAgentMismatch is returned when a row addressed through this store
// belongs to a different agent.
var ErrAgentMismatch = fmt.Errorf("agent id mismatch")

// Store persists observations and patterns for exactly one agent.
// A single connection with WAL keeps concurrent writers serialized
// through SQLite's own locking.
type Store struct {
	db      *sql.DB
	agentID string
}

// NewStore opens (or creates) the pattern database at path, scoped to
// agentID. Schema creation is idempotent.
func NewStore(path, agentID string) (*Store, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create pattern store directory: %w", err)
	}

	logging.Store("Opening pattern store at %s for agent=%s", path, agentID)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, agentID: agentID}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize pattern schema: %w", err)
	}
	return s, nil
}

func (s *Store) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pattern_observations (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		type TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		data_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_observations_agent ON pattern_observations(agent_id);
	CREATE INDEX IF NOT EXISTS idx_observations_type ON pattern_observations(type);
	CREATE INDEX IF NOT EXISTS idx_observations_timestamp ON pattern_observations(timestamp);

	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		observation_count INTEGER NOT NULL DEFAULT 0,
		first_observed TIMESTAMP NOT NULL,
		last_observed TIMESTAMP NOT NULL,
		active INTEGER NOT NULL DEFAULT 0,
		linked_reminder_id TEXT DEFAULT '',
		data_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_agent ON patterns(agent_id);
	CREATE INDEX IF NOT EXISTS idx_patterns_type ON patterns(type);
	CREATE INDEX IF NOT EXISTS idx_patterns_active ON patterns(active);
	CREATE INDEX IF NOT EXISTS idx_patterns_confidence ON patterns(confidence);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AgentID returns the agent this store is scoped to.
func (s *Store) AgentID() string { return s.agentID }

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// InsertObservation stores one observation. The observation's agent must
// match the store's agent.
func (s *Store) InsertObservation(obs Observation) error {
	if obs.AgentID != s.agentID {
		return fmt.Errorf("%w: observation for %q on store for %q", ErrAgentMismatch, obs.AgentID, s.agentID)
	}

	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO pattern_observations (id, agent_id, type, timestamp, data_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, obs.ID, obs.AgentID, string(obs.Type), obs.Timestamp, string(payload), obs.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

// RecentObservations returns up to limit observations of one type,
// newest first.
func (s *Store) RecentObservations(ptype PatternType, limit int) ([]Observation, error) {
	rows, err := s.db.Query(`
		SELECT data_json FROM pattern_observations
		WHERE agent_id = ? AND type = ?
		ORDER BY timestamp DESC LIMIT ?
	`, s.agentID, string(ptype), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// AllObservations returns every observation of one type, oldest first.
func (s *Store) AllObservations(ptype PatternType) ([]Observation, error) {
	rows, err := s.db.Query(`
		SELECT data_json FROM pattern_observations
		WHERE agent_id = ? AND type = ?
		ORDER BY timestamp ASC
	`, s.agentID, string(ptype))
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]Observation, error) {
	var out []Observation
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		var obs Observation
		if err := json.Unmarshal([]byte(raw), &obs); err != nil {
			return nil, fmt.Errorf("failed to decode observation: %w", err)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// SavePattern inserts or replaces one pattern row.
func (s *Store) SavePattern(p Pattern) error {
	if p.AgentID != s.agentID {
		return fmt.Errorf("%w: pattern for %q on store for %q", ErrAgentMismatch, p.AgentID, s.agentID)
	}

	data, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal pattern data: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO patterns (id, agent_id, type, description, confidence, observation_count,
			first_observed, last_observed, active, linked_reminder_id, data_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			confidence = excluded.confidence,
			observation_count = excluded.observation_count,
			last_observed = excluded.last_observed,
			active = excluded.active,
			linked_reminder_id = excluded.linked_reminder_id,
			data_json = excluded.data_json,
			updated_at = excluded.updated_at
	`, p.ID, p.AgentID, string(p.Type), p.Description, p.Confidence, p.ObservationCount,
		p.FirstObserved, p.LastObserved, boolToInt(p.Active), p.LinkedReminderID, string(data),
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

// GetPattern loads one pattern by id. A pattern belonging to another
// agent is a hard error, not a miss.
func (s *Store) GetPattern(id string) (*Pattern, error) {
	row := s.db.QueryRow(`
		SELECT id, agent_id, type, description, confidence, observation_count,
			first_observed, last_observed, active, linked_reminder_id, data_json, created_at, updated_at
		FROM patterns WHERE id = ?
	`, id)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.AgentID != s.agentID {
		return nil, fmt.Errorf("%w: pattern %s belongs to %q", ErrAgentMismatch, id, p.AgentID)
	}
	return p, nil
}

// QueryPatterns returns this agent's patterns matching the filter,
// highest confidence first.
func (s *Store) QueryPatterns(filter QueryFilter) ([]Pattern, error) {
	query := `
		SELECT id, agent_id, type, description, confidence, observation_count,
			first_observed, last_observed, active, linked_reminder_id, data_json, created_at, updated_at
		FROM patterns WHERE agent_id = ?`
	args := []any{s.agentID}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.ActiveOnly {
		query += " AND active = 1"
	}
	if filter.MinConfidence > 0 {
		query += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}
	query += " ORDER BY confidence DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (*Pattern, error) {
	var p Pattern
	var ptype, dataJSON string
	var active int
	if err := row.Scan(&p.ID, &p.AgentID, &ptype, &p.Description, &p.Confidence,
		&p.ObservationCount, &p.FirstObserved, &p.LastObserved, &active,
		&p.LinkedReminderID, &dataJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan pattern: %w", err)
	}
	p.Type = PatternType(ptype)
	p.Active = active != 0
	if err := json.Unmarshal([]byte(dataJSON), &p.Data); err != nil {
		return nil, fmt.Errorf("failed to decode pattern data: %w", err)
	}
	return &p, nil
}

// DeletePattern removes one pattern by id.
func (s *Store) DeletePattern(id string) error {
	_, err := s.db.Exec(`DELETE FROM patterns WHERE id = ? AND agent_id = ?`, id, s.agentID)
	if err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}
	return nil
}

// ArchiveInactiveBefore deletes inactive patterns whose last observation
// is older than cutoff. Returns the number of rows removed.
func (s *Store) ArchiveInactiveBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM patterns WHERE agent_id = ? AND active = 0 AND last_observed < ?
	`, s.agentID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive patterns: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PruneObservations keeps only the most recent max observations.
func (s *Store) PruneObservations(max int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM pattern_observations WHERE agent_id = ? AND id NOT IN (
			SELECT id FROM pattern_observations WHERE agent_id = ?
			ORDER BY timestamp DESC LIMIT ?
		)
	`, s.agentID, s.agentID, max)
	if err != nil {
		return 0, fmt.Errorf("failed to prune observations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
