package pipeline

import (
	"testing"
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
)

func ev(key, server string, ts time.Time, success bool, cost float64) model.Event {
	return model.Event{
		Key:       key,
		Timestamp: ts,
		Duration:  100 * time.Millisecond,
		Success:   success,
		Cost:      cost,
		Metadata:  map[string]any{"server": server},
	}
}

func TestAggregate(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)
	events := []model.Event{
		ev("git_log", "git", day1, true, 1),
		ev("git_log", "git", day1.Add(time.Hour), false, 1),
		ev("query", "sql", day2, true, 2),
	}

	s := Aggregate(events, time.Time{}, time.Time{})
	if s.TotalCalls != 3 || s.TotalFailures != 1 {
		t.Errorf("calls/failures = %d/%d, want 3/1", s.TotalCalls, s.TotalFailures)
	}
	if s.UniqueTools != 2 || s.ActiveDays != 2 {
		t.Errorf("tools/days = %d/%d, want 2/2", s.UniqueTools, s.ActiveDays)
	}
	if s.TotalCost != 4 || s.CostPerDay != 2 {
		t.Errorf("cost = %v (per day %v), want 4 (2)", s.TotalCost, s.CostPerDay)
	}
	if s.AvgDuration != 100*time.Millisecond {
		t.Errorf("AvgDuration = %v, want 100ms", s.AvgDuration)
	}

	windowed := Aggregate(events, day2, time.Time{})
	if windowed.TotalCalls != 1 {
		t.Errorf("since day2 calls = %d, want 1", windowed.TotalCalls)
	}
}

func TestAggregateDaysFillsGaps(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	until := since.AddDate(0, 0, 3)
	events := []model.Event{
		ev("a", "s", since.Add(2*time.Hour), true, 0),
		ev("a", "s", since.AddDate(0, 0, 2).Add(time.Hour), false, 0),
	}

	days := AggregateDays(events, since, until)
	if len(days) != 4 {
		t.Fatalf("len(days) = %d, want 4", len(days))
	}
	if !days[0].Date.After(days[1].Date) {
		t.Error("days should be most recent first")
	}
	var calls, failures int
	for _, d := range days {
		calls += d.Calls
		failures += d.Failures
	}
	if calls != 2 || failures != 1 {
		t.Errorf("calls/failures = %d/%d, want 2/1", calls, failures)
	}
}

func TestAggregateServers(t *testing.T) {
	now := time.Now()
	events := []model.Event{
		ev("git_log", "git", now, true, 0.1),
		ev("git_blame", "git", now, true, 0.1),
		ev("query", "sql", now, false, 1),
		{Key: "orphan", Timestamp: now, Success: true},
	}

	got := AggregateServers(events, time.Time{}, time.Time{})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Server != "sql" || got[1].Server != "git" || got[2].Server != "unknown" {
		t.Errorf("order = %s,%s,%s", got[0].Server, got[1].Server, got[2].Server)
	}
	if len(got[1].Tools) != 2 || got[1].SharePercent != 50 {
		t.Errorf("git = %+v", got[1])
	}
}

func TestAggregateHourly(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 30, 0, 0, time.Local)
	hours := AggregateHourly([]model.Event{
		ev("a", "s", ts, true, 0),
		ev("a", "s", ts, false, 0),
	}, time.Time{}, time.Time{})
	if len(hours) != 24 || hours[14].Calls != 2 || hours[14].Failures != 1 {
		t.Errorf("hour 14 = %+v", hours[14])
	}
}

func TestFilters(t *testing.T) {
	now := time.Now()
	events := []model.Event{
		ev("Git_Log", "git_insights", now, true, 0),
		ev("query", "sqlite_explorer", now, true, 0),
		ev("zero", "x", time.Time{}, true, 0),
	}
	if got := FilterByKey(events, "git"); len(got) != 1 {
		t.Errorf("FilterByKey = %d, want 1", len(got))
	}
	if got := FilterByServer(events, "SQLITE"); len(got) != 1 {
		t.Errorf("FilterByServer = %d, want 1", len(got))
	}
	if got := FilterByTime(events, now.Add(-time.Minute), now.Add(time.Minute)); len(got) != 2 {
		t.Errorf("FilterByTime = %d, want 2 (zero timestamps dropped)", len(got))
	}
	if got := FilterByTime(events, time.Time{}, time.Time{}); len(got) != 3 {
		t.Errorf("unbounded FilterByTime = %d, want 3", len(got))
	}
}
