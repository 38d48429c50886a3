package model

import "time"

// PerfSummary describes the distribution of one sample stream.
// All fields are zero for an empty stream.
type PerfSummary struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Map returns the summary keyed by the same names used in its JSON form.
func (p PerfSummary) Map() map[string]float64 {
	return map[string]float64{
		"min":   p.Min,
		"max":   p.Max,
		"mean":  p.Mean,
		"std":   p.Std,
		"p50":   p.P50,
		"p95":   p.P95,
		"p99":   p.P99,
		"count": float64(p.Count),
	}
}

// DailyStats holds invocation totals for a single calendar day.
type DailyStats struct {
	Date          time.Time
	Calls         int
	Failures      int
	TotalDuration time.Duration
	Cost          float64
}

// SummaryStats holds the top-level aggregate across all keys.
type SummaryStats struct {
	TotalCalls    int64
	TotalFailures int64
	TotalDuration time.Duration
	TotalCost     float64
	UniqueTools   int
	ActiveDays    int

	SuccessRate float64
	AvgDuration time.Duration
	CostPerDay  float64
	CallsPerDay float64
}

// ServerStats holds per-server totals across all of its tools.
type ServerStats struct {
	Server       string
	Calls        int
	Failures     int
	Cost         float64
	SharePercent float64
	Tools        map[string]struct{}
}

// HourlyStats holds call counts for one hour of the day.
type HourlyStats struct {
	Hour     int
	Calls    int
	Failures int
}
