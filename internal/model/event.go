// Package model defines domain types for toolmeter events, stats and alerts.
package model

import "time"

// Event is one recorded tool invocation. Events are created once by the
// tracker and never mutated afterwards.
type Event struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration_ns"`
	Success   bool           `json:"success"`
	Cost      float64        `json:"cost"`
	Metadata  map[string]any `json:"metadata"`
}

// ToolStats holds running totals for a single key.
type ToolStats struct {
	Key           string        `json:"key"`
	Count         int64         `json:"count"`
	SuccessCount  int64         `json:"success_count"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	TotalCost     float64       `json:"total_cost"`
}

// SuccessRate returns SuccessCount/Count, or 0 for an empty accumulator.
func (s ToolStats) SuccessRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.Count)
}

// AvgDuration returns TotalDuration/Count, or 0 for an empty accumulator.
func (s ToolStats) AvgDuration() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Count)
}

// ErrorCount is the number of recorded failures.
func (s ToolStats) ErrorCount() int64 {
	return s.Count - s.SuccessCount
}
