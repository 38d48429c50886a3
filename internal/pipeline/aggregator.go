// Package pipeline aggregates tool invocation events: running per-key
// totals, latency percentiles, threshold alerts, and log import.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// Aggregate computes summary statistics from events within [since, until).
func Aggregate(events []model.Event, since, until time.Time) model.SummaryStats {
	filtered := FilterByTime(events, since, until)

	var stats model.SummaryStats
	activeDays := make(map[string]struct{})
	tools := make(map[string]struct{})

	for _, ev := range filtered {
		stats.TotalCalls++
		if !ev.Success {
			stats.TotalFailures++
		}
		stats.TotalDuration += ev.Duration
		stats.TotalCost += ev.Cost
		tools[ev.Key] = struct{}{}

		if !ev.Timestamp.IsZero() {
			activeDays[ev.Timestamp.Local().Format("2006-01-02")] = struct{}{}
		}
	}

	stats.UniqueTools = len(tools)
	stats.ActiveDays = len(activeDays)

	if stats.TotalCalls > 0 {
		stats.SuccessRate = float64(stats.TotalCalls-stats.TotalFailures) / float64(stats.TotalCalls)
		stats.AvgDuration = stats.TotalDuration / time.Duration(stats.TotalCalls)
	}

	// Per-active-day rates
	if stats.ActiveDays > 0 {
		days := float64(stats.ActiveDays)
		stats.CostPerDay = stats.TotalCost / days
		stats.CallsPerDay = float64(stats.TotalCalls) / days
	}

	return stats
}

// AggregateDays computes per-day statistics, most recent day first. Every
// day in the range is present so charts show gaps as zeros.
func AggregateDays(events []model.Event, since, until time.Time) []model.DailyStats {
	filtered := FilterByTime(events, since, until)

	dayMap := make(map[string]*model.DailyStats)

	for _, ev := range filtered {
		if ev.Timestamp.IsZero() {
			continue
		}
		dayKey := ev.Timestamp.Local().Format("2006-01-02")
		ds, ok := dayMap[dayKey]
		if !ok {
			t, _ := time.ParseInLocation("2006-01-02", dayKey, time.Local)
			ds = &model.DailyStats{Date: t}
			dayMap[dayKey] = ds
		}

		ds.Calls++
		if !ev.Success {
			ds.Failures++
		}
		ds.TotalDuration += ev.Duration
		ds.Cost += ev.Cost
	}

	if !since.IsZero() && !until.IsZero() {
		day := startOfDay(since)
		end := startOfDay(until)
		for !day.After(end) {
			dayKey := day.Format("2006-01-02")
			if _, ok := dayMap[dayKey]; !ok {
				dayMap[dayKey] = &model.DailyStats{Date: day}
			}
			day = day.AddDate(0, 0, 1)
		}
	}

	days := make([]model.DailyStats, 0, len(dayMap))
	for _, ds := range dayMap {
		days = append(days, *ds)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})

	return days
}

// AggregateServers groups events by their "server" metadata and orders the
// result by cost, then calls, descending.
func AggregateServers(events []model.Event, since, until time.Time) []model.ServerStats {
	filtered := FilterByTime(events, since, until)

	byServer := make(map[string]*model.ServerStats)
	total := 0

	for _, ev := range filtered {
		name := ServerOf(ev)
		ss, ok := byServer[name]
		if !ok {
			ss = &model.ServerStats{Server: name, Tools: make(map[string]struct{})}
			byServer[name] = ss
		}
		ss.Calls++
		if !ev.Success {
			ss.Failures++
		}
		ss.Cost += ev.Cost
		ss.Tools[ev.Key] = struct{}{}
		total++
	}

	servers := make([]model.ServerStats, 0, len(byServer))
	for _, ss := range byServer {
		if total > 0 {
			ss.SharePercent = float64(ss.Calls) / float64(total) * 100
		}
		servers = append(servers, *ss)
	}
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].Cost != servers[j].Cost {
			return servers[i].Cost > servers[j].Cost
		}
		if servers[i].Calls != servers[j].Calls {
			return servers[i].Calls > servers[j].Calls
		}
		return servers[i].Server < servers[j].Server
	})

	return servers
}

// AggregateHourly counts calls by local hour of day.
func AggregateHourly(events []model.Event, since, until time.Time) []model.HourlyStats {
	filtered := FilterByTime(events, since, until)

	hours := make([]model.HourlyStats, 24)
	for i := range hours {
		hours[i].Hour = i
	}

	for _, ev := range filtered {
		if ev.Timestamp.IsZero() {
			continue
		}
		h := ev.Timestamp.Local().Hour()
		hours[h].Calls++
		if !ev.Success {
			hours[h].Failures++
		}
	}

	return hours
}

// ServerOf returns the event's "server" metadata, or "unknown".
func ServerOf(ev model.Event) string {
	if s, ok := ev.Metadata["server"].(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// FilterByTime returns events whose timestamp falls within [since, until).
func FilterByTime(events []model.Event, since, until time.Time) []model.Event {
	if since.IsZero() && until.IsZero() {
		return events
	}

	var result []model.Event
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			continue
		}
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && !ev.Timestamp.Before(until) {
			continue
		}
		result = append(result, ev)
	}
	return result
}

// FilterByKey returns events whose key contains the substring, ignoring case.
func FilterByKey(events []model.Event, key string) []model.Event {
	if key == "" {
		return events
	}
	var result []model.Event
	for _, ev := range events {
		if containsIgnoreCase(ev.Key, key) {
			result = append(result, ev)
		}
	}
	return result
}

// FilterByServer returns events from servers matching the substring.
func FilterByServer(events []model.Event, server string) []model.Event {
	if server == "" {
		return events
	}
	var result []model.Event
	for _, ev := range events {
		if containsIgnoreCase(ServerOf(ev), server) {
			result = append(result, ev)
		}
	}
	return result
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func startOfDay(t time.Time) time.Time {
	l := t.Local()
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.Local)
}
