package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// ErrInvalidRankKey is returned by TopTools for an unsupported ranking key.
var ErrInvalidRankKey = errors.New("pipeline: invalid rank key")

// Ranking keys accepted by TopTools.
const (
	RankByCount    = "count"
	RankByCost     = "cost"
	RankByDuration = "duration"
)

// RankKeys lists the valid ranking keys in display order.
var RankKeys = []string{RankByCount, RankByCost, RankByDuration}

// UsageTracker keeps an append-only event log and per-key running totals.
// It is not safe for concurrent use; see Monitor.
type UsageTracker struct {
	events []model.Event
	stats  map[string]*model.ToolStats
	now    func() time.Time
}

// NewUsageTracker returns an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		stats: make(map[string]*model.ToolStats),
		now:   time.Now,
	}
}

// Record appends an event stamped with the current UTC time and folds it
// into the key's totals. Inputs are not validated.
func (t *UsageTracker) Record(key string, duration time.Duration, success bool, cost float64, metadata map[string]any) model.Event {
	ev := t.NewEvent(key, duration, success, cost, metadata)
	t.apply(ev)
	return ev
}

// NewEvent builds an event the way Record does without counting it.
func (t *UsageTracker) NewEvent(key string, duration time.Duration, success bool, cost float64, metadata map[string]any) model.Event {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return model.Event{
		ID:        uuid.NewString(),
		Key:       key,
		Timestamp: t.now().UTC(),
		Duration:  duration,
		Success:   success,
		Cost:      cost,
		Metadata:  metadata,
	}
}

// Replay folds previously recorded events into the tracker, keeping their
// IDs and timestamps.
func (t *UsageTracker) Replay(events []model.Event) {
	for _, ev := range events {
		if ev.Metadata == nil {
			ev.Metadata = make(map[string]any)
		}
		t.apply(ev)
	}
}

func (t *UsageTracker) apply(ev model.Event) {
	t.events = append(t.events, ev)

	s, ok := t.stats[ev.Key]
	if !ok {
		s = &model.ToolStats{Key: ev.Key}
		t.stats[ev.Key] = s
	}
	s.Count++
	if ev.Success {
		s.SuccessCount++
	}
	s.TotalDuration += ev.Duration
	s.TotalCost += ev.Cost
}

// Stats returns the totals for key, or a zero-valued ToolStats carrying the
// key when nothing has been recorded for it.
func (t *UsageTracker) Stats(key string) model.ToolStats {
	if s, ok := t.stats[key]; ok {
		return *s
	}
	return model.ToolStats{Key: key}
}

// AllStats returns a snapshot of every key's totals.
func (t *UsageTracker) AllStats() map[string]model.ToolStats {
	out := make(map[string]model.ToolStats, len(t.stats))
	for k, s := range t.stats {
		out[k] = *s
	}
	return out
}

// TopTools returns up to n keys ordered by the given metric, highest first.
// Ties are ordered by key.
func (t *UsageTracker) TopTools(n int, by string) ([]model.ToolStats, error) {
	var less func(a, b model.ToolStats) bool
	switch by {
	case RankByCount:
		less = func(a, b model.ToolStats) bool { return a.Count > b.Count }
	case RankByCost:
		less = func(a, b model.ToolStats) bool { return a.TotalCost > b.TotalCost }
	case RankByDuration:
		less = func(a, b model.ToolStats) bool { return a.TotalDuration > b.TotalDuration }
	default:
		return nil, fmt.Errorf("%w %q (want one of %v)", ErrInvalidRankKey, by, RankKeys)
	}

	if n <= 0 {
		return []model.ToolStats{}, nil
	}

	ranked := make([]model.ToolStats, 0, len(t.stats))
	for _, k := range sortedKeys(t.stats) {
		ranked = append(ranked, *t.stats[k])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n], nil
}

// Events returns a copy of the event log in insertion order.
func (t *UsageTracker) Events() []model.Event {
	out := make([]model.Event, len(t.events))
	copy(out, t.events)
	return out
}

// Len is the number of recorded events.
func (t *UsageTracker) Len() int {
	return len(t.events)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range maps.Keys(m) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
