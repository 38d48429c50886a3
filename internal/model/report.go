package model

import (
	"maps"
	"slices"
	"time"
)

// Report bundles tool stats, a performance summary and the latest alerts.
// It is a snapshot and is not updated after construction.
type Report struct {
	Tools       map[string]ToolStats `json:"tools"`
	Performance map[string]float64   `json:"performance"`
	Alerts      []Alert              `json:"alerts"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// NewReport copies its inputs into a Report stamped with the current UTC time.
func NewReport(tools map[string]ToolStats, perf map[string]float64, alerts []Alert) Report {
	r := Report{
		Tools:       maps.Clone(tools),
		Performance: maps.Clone(perf),
		Alerts:      slices.Clone(alerts),
		GeneratedAt: time.Now().UTC(),
	}
	if r.Tools == nil {
		r.Tools = make(map[string]ToolStats)
	}
	if r.Performance == nil {
		r.Performance = make(map[string]float64)
	}
	if r.Alerts == nil {
		r.Alerts = []Alert{}
	}
	return r
}
