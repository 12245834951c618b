package patterns

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"triagent/internal/logging"
)

// Config tunes pattern formation and retention.
type Config struct {
	MinObservations       int     `yaml:"min_observations"`
	FullConfidenceAt      int     `yaml:"full_confidence_at"`
	ActivationThreshold   float64 `yaml:"activation_threshold"`
	ToleranceMinutes      int     `yaml:"tolerance_minutes"`
	RecencyHalfLifeDays   float64 `yaml:"recency_half_life_days"`
	MinOverlapRatio       float64 `yaml:"min_overlap_ratio"`
	MaxPatternsPerAgent   int     `yaml:"max_patterns_per_agent"`
	ArchiveAfterDays      int     `yaml:"archive_after_days"`
	MaxObservations       int     `yaml:"max_observations"`
	RecentScanWindow      int     `yaml:"recent_scan_window"`
}

// DefaultConfig returns the standard pattern tuning.
func DefaultConfig() Config {
	return Config{
		MinObservations:     3,
		FullConfidenceAt:    10,
		ActivationThreshold: 0.4,
		ToleranceMinutes:    30,
		RecencyHalfLifeDays: 7,
		MinOverlapRatio:     0.3,
		MaxPatternsPerAgent: 100,
		ArchiveAfterDays:    30,
		MaxObservations:     1000,
		RecentScanWindow:    100,
	}
}

// Tracker records observations for one agent and keeps its pattern set
// current. Instances are cheap; never share one across agents.
type Tracker struct {
	store    *Store
	detector *Detector
	cfg      Config
	now      func() time.Time
}

// NewTracker wires a tracker over an agent-scoped store.
func NewTracker(store *Store, cfg Config) *Tracker {
	return &Tracker{
		store:    store,
		detector: NewDetector(cfg),
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewTrackerWithClock is the testing constructor.
func NewTrackerWithClock(store *Store, cfg Config, now func() time.Time) *Tracker {
	t := NewTracker(store, cfg)
	t.now = now
	return t
}

// RecordTimeObservation records one recurring-action sample. A zero
// timestamp means now.
func (t *Tracker) RecordTimeObservation(action string, timestamp time.Time) error {
	obs := t.newObservation(TypeTime, timestamp)
	obs.Time = &TimeData{Action: action}
	return t.record(obs)
}

// RecordEventObservation records one event-followed-by-action sample.
func (t *Tracker) RecordEventObservation(event, followUp string, delaySeconds float64, timestamp time.Time) error {
	obs := t.newObservation(TypeEvent, timestamp)
	obs.Event = &EventData{Event: event, FollowUp: followUp, DelaySeconds: delaySeconds}
	return t.record(obs)
}

// RecordContextObservation records one topical-need sample.
func (t *Tracker) RecordContextObservation(keywords []string, need string, similarityScore *float64, timestamp time.Time) error {
	obs := t.newObservation(TypeContext, timestamp)
	obs.Context = &ContextData{Keywords: keywords, Need: need, SimilarityScore: similarityScore}
	return t.record(obs)
}

func (t *Tracker) newObservation(ptype PatternType, timestamp time.Time) Observation {
	if timestamp.IsZero() {
		timestamp = t.now()
	}
	return Observation{
		ID:        uuid.NewString(),
		AgentID:   t.store.AgentID(),
		Type:      ptype,
		Timestamp: timestamp,
		CreatedAt: t.now(),
	}
}

// record inserts the observation, then reinforces a matching pattern or
// promotes a new candidate from the recent window.
func (t *Tracker) record(obs Observation) error {
	timer := logging.StartTimer(logging.CategoryPatterns, "Tracker.record")
	defer timer.Stop()

	if err := t.store.InsertObservation(obs); err != nil {
		return err
	}
	logging.PatternsDebug("Recorded %s observation for agent=%s", obs.Type, obs.AgentID)

	existing, err := t.store.QueryPatterns(QueryFilter{Type: obs.Type})
	if err != nil {
		return err
	}
	for i := range existing {
		if t.observationMatchesPattern(obs, &existing[i]) {
			return t.reinforce(&existing[i], obs.Timestamp)
		}
	}
	return t.tryPromote(obs)
}

// observationMatchesPattern applies the per-type similarity rules.
func (t *Tracker) observationMatchesPattern(obs Observation, p *Pattern) bool {
	switch obs.Type {
	case TypeTime:
		if obs.Time == nil || p.Data.Trigger == nil {
			return false
		}
		triggerMinute := p.Data.Trigger.Hour*60 + p.Data.Trigger.Minute
		return similarText(obs.Time.Action, p.Data.Action) &&
			timeOfDayDistance(minuteOfDay(obs.Timestamp), triggerMinute) <= t.cfg.ToleranceMinutes
	case TypeEvent:
		if obs.Event == nil {
			return false
		}
		return normalizeText(obs.Event.Event) == normalizeText(p.Data.Event) &&
			similarText(obs.Event.FollowUp, p.Data.FollowUp)
	case TypeContext:
		if obs.Context == nil {
			return false
		}
		return similarText(obs.Context.Need, p.Data.Need) &&
			keywordOverlapRatio(obs.Context.Keywords, p.Data.Keywords) >= t.cfg.MinOverlapRatio
	}
	return false
}

// reinforce bumps a matched pattern's counters and recomputes its
// confidence and activation.
func (t *Tracker) reinforce(p *Pattern, observedAt time.Time) error {
	p.ObservationCount++
	if observedAt.After(p.LastObserved) {
		p.LastObserved = observedAt
	}
	p.Confidence = t.confidence(p.ObservationCount, p.LastObserved, p.Data.Consistency)
	p.Active = t.isActive(p.Confidence, p.ObservationCount)
	p.UpdatedAt = t.now()

	logging.PatternsDebug("Reinforced pattern %s: count=%d confidence=%.3f active=%v",
		p.ID, p.ObservationCount, p.Confidence, p.Active)
	return t.store.SavePattern(*p)
}

// tryPromote scans the recent window for enough similar observations to
// form a new pattern candidate.
func (t *Tracker) tryPromote(obs Observation) error {
	recent, err := t.store.RecentObservations(obs.Type, t.cfg.RecentScanWindow)
	if err != nil {
		return err
	}

	similar := make([]Observation, 0, len(recent))
	for _, other := range recent {
		if other.ID == obs.ID || t.similarObservations(obs, other) {
			similar = append(similar, other)
		}
	}
	if len(similar) < t.cfg.MinObservations {
		return nil
	}

	var candidates []Pattern
	switch obs.Type {
	case TypeTime:
		candidates = t.detector.DetectTime(obs.AgentID, similar)
	case TypeEvent:
		candidates = t.detector.DetectEvent(obs.AgentID, similar)
	case TypeContext:
		candidates = t.detector.DetectContext(obs.AgentID, similar)
	}
	if len(candidates) == 0 {
		return nil
	}

	// The largest cluster containing the triggering observation wins.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ObservationCount > candidates[j].ObservationCount
	})
	p := candidates[0]
	p.Confidence = t.confidence(p.ObservationCount, p.LastObserved, p.Data.Consistency)
	p.Active = t.isActive(p.Confidence, p.ObservationCount)
	p.CreatedAt = t.now()
	p.UpdatedAt = t.now()

	logging.Patterns("New %s pattern for agent=%s: %s (confidence %.3f)",
		p.Type, p.AgentID, p.Description, p.Confidence)
	return t.store.SavePattern(p)
}

func (t *Tracker) similarObservations(a, b Observation) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeTime:
		return a.Time != nil && b.Time != nil &&
			similarText(a.Time.Action, b.Time.Action) &&
			timeOfDayDistance(minuteOfDay(a.Timestamp), minuteOfDay(b.Timestamp)) <= t.cfg.ToleranceMinutes
	case TypeEvent:
		return a.Event != nil && b.Event != nil &&
			normalizeText(a.Event.Event) == normalizeText(b.Event.Event) &&
			similarText(a.Event.FollowUp, b.Event.FollowUp)
	case TypeContext:
		return a.Context != nil && b.Context != nil &&
			similarText(a.Context.Need, b.Context.Need) &&
			keywordOverlapRatio(a.Context.Keywords, b.Context.Keywords) >= t.cfg.MinOverlapRatio
	}
	return false
}

// confidence = base x recency x consistency.
func (t *Tracker) confidence(count int, lastObserved time.Time, consistency float64) float64 {
	base := float64(count) / float64(t.cfg.FullConfidenceAt)
	if base > 1 {
		base = 1
	}
	days := t.now().Sub(lastObserved).Hours() / 24
	if days < 0 {
		days = 0
	}
	recency := math.Exp(-days / t.cfg.RecencyHalfLifeDays)
	if consistency <= 0 || consistency > 1 {
		consistency = 1
	}
	return base * recency * consistency
}

func (t *Tracker) isActive(confidence float64, count int) bool {
	return confidence >= t.cfg.ActivationThreshold && count >= t.cfg.MinObservations
}

// QueryPatterns exposes the agent's current pattern set.
func (t *Tracker) QueryPatterns(filter QueryFilter) ([]Pattern, error) {
	return t.store.QueryPatterns(filter)
}

// Detect runs the detector over all stored observations and merges the
// candidates with the existing pattern set.
func (t *Tracker) Detect() error {
	timer := logging.StartTimer(logging.CategoryPatterns, "Tracker.Detect")
	defer timer.Stop()

	agentID := t.store.AgentID()
	var detected []Pattern
	for _, ptype := range []PatternType{TypeTime, TypeEvent, TypeContext} {
		obs, err := t.store.AllObservations(ptype)
		if err != nil {
			return err
		}
		switch ptype {
		case TypeTime:
			detected = append(detected, t.detector.DetectTime(agentID, obs)...)
		case TypeEvent:
			detected = append(detected, t.detector.DetectEvent(agentID, obs)...)
		case TypeContext:
			detected = append(detected, t.detector.DetectContext(agentID, obs)...)
		}
	}
	return t.merge(detected)
}

// merge folds detected candidates into the stored set: matched patterns
// are updated in place, new ones appended, and the total capped.
func (t *Tracker) merge(detected []Pattern) error {
	existing, err := t.store.QueryPatterns(QueryFilter{})
	if err != nil {
		return err
	}

	for _, cand := range detected {
		cand.Confidence = t.confidence(cand.ObservationCount, cand.LastObserved, cand.Data.Consistency)

		matched := false
		for i := range existing {
			if existing[i].Type != cand.Type || !t.patternsMatch(&existing[i], &cand) {
				continue
			}
			p := &existing[i]
			if cand.Confidence > p.Confidence {
				p.Confidence = cand.Confidence
			}
			p.ObservationCount += cand.ObservationCount
			if cand.LastObserved.After(p.LastObserved) {
				p.LastObserved = cand.LastObserved
			}
			p.Active = t.isActive(p.Confidence, p.ObservationCount)
			p.UpdatedAt = t.now()
			if err := t.store.SavePattern(*p); err != nil {
				return err
			}
			matched = true
			break
		}
		if !matched {
			cand.Active = t.isActive(cand.Confidence, cand.ObservationCount)
			cand.CreatedAt = t.now()
			cand.UpdatedAt = t.now()
			if err := t.store.SavePattern(cand); err != nil {
				return err
			}
			existing = append(existing, cand)
		}
	}

	return t.enforceCap(existing)
}

func (t *Tracker) patternsMatch(a, b *Pattern) bool {
	switch a.Type {
	case TypeTime:
		if !similarText(a.Data.Action, b.Data.Action) {
			return false
		}
		ta, tb := a.Data.Trigger, b.Data.Trigger
		if ta == nil || tb == nil || ta.Kind != tb.Kind {
			return false
		}
		if ta.Kind == TriggerDayOfWeek && ta.Weekday != tb.Weekday {
			return false
		}
		return timeOfDayDistance(ta.Hour*60+ta.Minute, tb.Hour*60+tb.Minute) <= t.cfg.ToleranceMinutes
	case TypeEvent:
		return normalizeText(a.Data.Event) == normalizeText(b.Data.Event) &&
			similarText(a.Data.FollowUp, b.Data.FollowUp)
	case TypeContext:
		return similarText(a.Data.Need, b.Data.Need) &&
			keywordOverlapRatio(a.Data.Keywords, b.Data.Keywords) >= 0.5
	}
	return false
}

// enforceCap keeps only the top patterns by confidence.
func (t *Tracker) enforceCap(all []Pattern) error {
	if len(all) <= t.cfg.MaxPatternsPerAgent {
		return nil
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Confidence > all[j].Confidence
	})
	for _, p := range all[t.cfg.MaxPatternsPerAgent:] {
		logging.PatternsDebug("Evicting pattern %s (confidence %.3f) over cap", p.ID, p.Confidence)
		if err := t.store.DeletePattern(p.ID); err != nil {
			return err
		}
	}
	return nil
}

// Maintain archives stale inactive patterns and prunes old observations.
func (t *Tracker) Maintain() error {
	timer := logging.StartTimer(logging.CategoryPatterns, "Tracker.Maintain")
	defer timer.Stop()

	cutoff := t.now().AddDate(0, 0, -t.cfg.ArchiveAfterDays)
	archived, err := t.store.ArchiveInactiveBefore(cutoff)
	if err != nil {
		return fmt.Errorf("archival sweep failed: %w", err)
	}
	pruned, err := t.store.PruneObservations(t.cfg.MaxObservations)
	if err != nil {
		return fmt.Errorf("observation pruning failed: %w", err)
	}
	if archived > 0 || pruned > 0 {
		logging.Patterns("Maintenance: archived %d patterns, pruned %d observations", archived, pruned)
	}
	return nil
}
