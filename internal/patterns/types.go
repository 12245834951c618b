// Package patterns records agent behavior observations in SQLite and
// distills them into time, event, and context patterns. All public
// operations are scoped to a single agent id; cross-agent access is a
// hard error regardless of what the caller passes in.
package patterns

import "time"

// PatternType discriminates observation and pattern rows.
type PatternType string

const (
	TypeTime    PatternType = "time-based"
	TypeEvent   PatternType = "event-based"
	TypeContext PatternType = "context-based"
)

// Observation is one recorded behavior sample. Exactly one of the data
// payloads is set, matching Type.
type Observation struct {
	ID        string      `json:"id"`
	AgentID   string      `json:"agent_id"`
	Type      PatternType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Time      *TimeData   `json:"time,omitempty"`
	Event     *EventData  `json:"event,omitempty"`
	Context   *ContextData `json:"context,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// TimeData is a recurring-action sample ("does standup around 09:00").
type TimeData struct {
	Action string `json:"action"`
}

// EventData is a followed-action sample ("after deploy, checks logs").
type EventData struct {
	Event        string  `json:"event"`
	FollowUp     string  `json:"follow_up"`
	DelaySeconds float64 `json:"delay_s"`
}

// ContextData is a topical-need sample ("when discussing billing, wants
// invoice links"). SimilarityScore is set when the caller matched the
// context semantically.
type ContextData struct {
	Keywords        []string `json:"keywords"`
	Need            string   `json:"need"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
}

// TriggerKind distinguishes how a time pattern fires.
type TriggerKind string

const (
	TriggerTimeOfDay TriggerKind = "time_of_day"
	TriggerDayOfWeek TriggerKind = "day_of_week"
)

// TimeTrigger is the firing condition of a time pattern.
type TimeTrigger struct {
	Kind    TriggerKind  `json:"kind"`
	Hour    int          `json:"hour"`
	Minute  int          `json:"minute"`
	Weekday time.Weekday `json:"weekday,omitempty"`
}

// PatternData is the typed payload stored in the pattern row's data_json.
// Consistency is carried so confidence can be recomputed incrementally.
type PatternData struct {
	Consistency float64 `json:"consistency"`

	// time-based
	Action  string       `json:"action,omitempty"`
	Trigger *TimeTrigger `json:"trigger,omitempty"`

	// event-based
	Event             string  `json:"event,omitempty"`
	FollowUp          string  `json:"follow_up,omitempty"`
	TypicalDelayS     float64 `json:"typical_delay_s,omitempty"`
	ExpirationSeconds float64 `json:"expiration_s,omitempty"`

	// context-based
	Need                string   `json:"need,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
	UseSemanticMatching bool     `json:"use_semantic_matching,omitempty"`
	RelevanceThreshold  float64  `json:"relevance_threshold,omitempty"`
}

// Pattern is one distilled behavior pattern.
type Pattern struct {
	ID               string      `json:"id"`
	AgentID          string      `json:"agent_id"`
	Type             PatternType `json:"type"`
	Description      string      `json:"description"`
	Confidence       float64     `json:"confidence"`
	ObservationCount int         `json:"observation_count"`
	FirstObserved    time.Time   `json:"first_observed"`
	LastObserved     time.Time   `json:"last_observed"`
	Active           bool        `json:"active"`
	LinkedReminderID string      `json:"linked_reminder_id,omitempty"`
	Data             PatternData `json:"data"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// QueryFilter narrows pattern queries. Zero values mean "no constraint".
type QueryFilter struct {
	Type          PatternType
	ActiveOnly    bool
	MinConfidence float64
}
