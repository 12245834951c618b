package patterns

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Detector clusters an agent's raw observations into candidate patterns.
// It is stateless; the tracker owns persistence and merging.
type Detector struct {
	cfg Config
}

// NewDetector returns a detector using the given tuning.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// minutesInDay is the modulus for wrap-around time-of-day arithmetic.
const minutesInDay = 24 * 60

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// timeOfDayDistance is the wrap-around distance in minutes: 23:50 and
// 00:10 are 20 minutes apart, not 1420.
func timeOfDayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrapped := minutesInDay - d; wrapped < d {
		return wrapped
	}
	return d
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// similarText matches normalized strings by equality, containment, or
// at least half word-set overlap.
func similarText(a, b string) bool {
	a, b = normalizeText(a), normalizeText(b)
	if a == "" || b == "" {
		return a == b
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return wordJaccard(a, b) >= 0.5
}

func wordJaccard(a, b string) float64 {
	setA := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		setA[w] = true
	}
	setB := make(map[string]bool)
	for _, w := range strings.Fields(b) {
		setB[w] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// keywordOverlapRatio is the fraction of the smaller keyword set matched
// in the other, with case-insensitive substring matching.
func keywordOverlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	matched := 0
	for _, kw := range small {
		nkw := normalizeText(kw)
		for _, other := range large {
			nother := normalizeText(other)
			if nkw == nother || strings.Contains(nkw, nother) || strings.Contains(nother, nkw) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(small))
}

// DetectTime greedily clusters time observations by similar action and
// time-of-day within tolerance, then emits one candidate per cluster of
// at least MinObservations.
func (d *Detector) DetectTime(agentID string, obs []Observation) []Pattern {
	type cluster struct {
		action  string
		members []Observation
	}
	var clusters []*cluster

	for _, o := range obs {
		if o.Time == nil {
			continue
		}
		placed := false
		for _, c := range clusters {
			if similarText(c.action, o.Time.Action) &&
				timeOfDayDistance(minuteOfDay(c.members[0].Timestamp), minuteOfDay(o.Timestamp)) <= d.cfg.ToleranceMinutes {
				c.members = append(c.members, o)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{action: o.Time.Action, members: []Observation{o}})
		}
	}

	var out []Pattern
	for _, c := range clusters {
		if len(c.members) < d.cfg.MinObservations {
			continue
		}
		out = append(out, d.timePattern(agentID, c.action, c.members))
	}
	return out
}

func (d *Detector) timePattern(agentID, action string, members []Observation) Pattern {
	// Offsets relative to the first member, wrap-adjusted so a cluster
	// straddling midnight averages correctly.
	ref := minuteOfDay(members[0].Timestamp)
	var sum, sumSq float64
	for _, m := range members {
		off := float64(minuteOfDay(m.Timestamp) - ref)
		if off > minutesInDay/2 {
			off -= minutesInDay
		} else if off < -minutesInDay/2 {
			off += minutesInDay
		}
		sum += off
		sumSq += off * off
	}
	n := float64(len(members))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	consistency := math.Exp(-math.Sqrt(variance) / 60)

	center := (ref + int(math.Round(mean)) + minutesInDay) % minutesInDay
	trigger := &TimeTrigger{Kind: TriggerTimeOfDay, Hour: center / 60, Minute: center % 60}

	// Few distinct weekdays means the habit is day-bound, not daily.
	dayCounts := make(map[time.Weekday]int)
	for _, m := range members {
		dayCounts[m.Timestamp.Weekday()]++
	}
	if len(dayCounts) <= 3 {
		best := members[0].Timestamp.Weekday()
		for day, count := range dayCounts {
			if count > dayCounts[best] {
				best = day
			}
		}
		trigger = &TimeTrigger{Kind: TriggerDayOfWeek, Hour: center / 60, Minute: center % 60, Weekday: best}
	}

	first, last := observationSpan(members)
	return Pattern{
		ID:               uuid.NewString(),
		AgentID:          agentID,
		Type:             TypeTime,
		Description:      fmt.Sprintf("Does %q around %02d:%02d", action, trigger.Hour, trigger.Minute),
		ObservationCount: len(members),
		FirstObserved:    first,
		LastObserved:     last,
		Data: PatternData{
			Consistency: consistency,
			Action:      action,
			Trigger:     trigger,
		},
	}
}

// DetectEvent groups event observations by (event, followUp) and emits
// one candidate per group of at least MinObservations.
func (d *Detector) DetectEvent(agentID string, obs []Observation) []Pattern {
	type group struct {
		event, followUp string
		members         []Observation
	}
	var groups []*group

	for _, o := range obs {
		if o.Event == nil {
			continue
		}
		placed := false
		for _, g := range groups {
			if normalizeText(g.event) == normalizeText(o.Event.Event) && similarText(g.followUp, o.Event.FollowUp) {
				g.members = append(g.members, o)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &group{event: o.Event.Event, followUp: o.Event.FollowUp, members: []Observation{o}})
		}
	}

	var out []Pattern
	for _, g := range groups {
		if len(g.members) < d.cfg.MinObservations {
			continue
		}

		var sum, sumSq, maxDelay float64
		for _, m := range g.members {
			delay := m.Event.DelaySeconds
			sum += delay
			sumSq += delay * delay
			if delay > maxDelay {
				maxDelay = delay
			}
		}
		n := float64(len(g.members))
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		cv := 0.0
		if mean > 0 {
			cv = math.Sqrt(variance) / mean
		}

		expiration := 2 * maxDelay
		if expiration < 300 {
			expiration = 300
		}

		first, last := observationSpan(g.members)
		out = append(out, Pattern{
			ID:               uuid.NewString(),
			AgentID:          agentID,
			Type:             TypeEvent,
			Description:      fmt.Sprintf("After %q, does %q", g.event, g.followUp),
			ObservationCount: len(g.members),
			FirstObserved:    first,
			LastObserved:     last,
			Data: PatternData{
				Consistency:       math.Exp(-cv),
				Event:             g.event,
				FollowUp:          g.followUp,
				TypicalDelayS:     mean,
				ExpirationSeconds: expiration,
			},
		})
	}
	return out
}

// representativeKeywordCount bounds the keywords kept per context pattern.
const representativeKeywordCount = 5

// DetectContext clusters context observations by shared need and keyword
// overlap at or above MinOverlapRatio.
func (d *Detector) DetectContext(agentID string, obs []Observation) []Pattern {
	type cluster struct {
		need    string
		members []Observation
	}
	var clusters []*cluster

	for _, o := range obs {
		if o.Context == nil {
			continue
		}
		placed := false
		for _, c := range clusters {
			if similarText(c.need, o.Context.Need) &&
				keywordOverlapRatio(c.members[0].Context.Keywords, o.Context.Keywords) >= d.cfg.MinOverlapRatio {
				c.members = append(c.members, o)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{need: o.Context.Need, members: []Observation{o}})
		}
	}

	var out []Pattern
	for _, c := range clusters {
		if len(c.members) < d.cfg.MinObservations {
			continue
		}

		freq := make(map[string]int)
		semantic := false
		minScore := math.Inf(1)
		for _, m := range c.members {
			for _, kw := range m.Context.Keywords {
				freq[normalizeText(kw)]++
			}
			if m.Context.SimilarityScore != nil {
				semantic = true
				if *m.Context.SimilarityScore < minScore {
					minScore = *m.Context.SimilarityScore
				}
			}
		}

		keywords := make([]string, 0, len(freq))
		for kw := range freq {
			keywords = append(keywords, kw)
		}
		sort.Slice(keywords, func(i, j int) bool {
			if freq[keywords[i]] != freq[keywords[j]] {
				return freq[keywords[i]] > freq[keywords[j]]
			}
			return keywords[i] < keywords[j]
		})
		if len(keywords) > representativeKeywordCount {
			keywords = keywords[:representativeKeywordCount]
		}

		threshold := 0.5
		if semantic {
			threshold = 0.9 * minScore
		}

		// Keyword agreement across the cluster is its consistency.
		var overlapSum float64
		for _, m := range c.members {
			overlapSum += keywordOverlapRatio(keywords, m.Context.Keywords)
		}

		first, last := observationSpan(c.members)
		out = append(out, Pattern{
			ID:               uuid.NewString(),
			AgentID:          agentID,
			Type:             TypeContext,
			Description:      fmt.Sprintf("When discussing %s, needs %q", strings.Join(keywords, ", "), c.need),
			ObservationCount: len(c.members),
			FirstObserved:    first,
			LastObserved:     last,
			Data: PatternData{
				Consistency:         overlapSum / float64(len(c.members)),
				Need:                c.need,
				Keywords:            keywords,
				UseSemanticMatching: semantic,
				RelevanceThreshold:  threshold,
			},
		})
	}
	return out
}

func observationSpan(members []Observation) (first, last time.Time) {
	first, last = members[0].Timestamp, members[0].Timestamp
	for _, m := range members[1:] {
		if m.Timestamp.Before(first) {
			first = m.Timestamp
		}
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}
	return first, last
}
