package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PriceConfig is one [[pricing]] entry: the cost of a tool call from a
// given date onward.
type PriceConfig struct {
	Tool          string  `toml:"tool"`
	PerCall       float64 `toml:"per_call"`
	PerSecond     float64 `toml:"per_second,omitempty"`
	EffectiveFrom string  `toml:"effective_from,omitempty"`
}

// ToolPricing holds the rates for a tool.
type ToolPricing struct {
	PerCall   float64
	PerSecond float64
}

type toolPricingVersion struct {
	EffectiveFrom time.Time
	Pricing       ToolPricing
}

// PriceTable estimates the cost of calls that did not report one.
type PriceTable struct {
	history map[string][]toolPricingVersion
}

// NewPriceTable builds a table from config entries. Entries without an
// effective date apply from the beginning of time.
func NewPriceTable(entries []PriceConfig) (*PriceTable, error) {
	pt := &PriceTable{history: make(map[string][]toolPricingVersion)}
	for i, e := range entries {
		name := NormalizeToolName(e.Tool)
		if name == "" {
			return nil, fmt.Errorf("pricing %d: tool is required", i+1)
		}
		if e.PerCall < 0 || e.PerSecond < 0 {
			return nil, fmt.Errorf("pricing %d (%s): rates must not be negative", i+1, e.Tool)
		}
		var from time.Time
		if e.EffectiveFrom != "" {
			t, err := time.Parse("2006-01-02", e.EffectiveFrom)
			if err != nil {
				return nil, fmt.Errorf("pricing %d (%s): effective_from: %w", i+1, e.Tool, err)
			}
			from = t
		}
		pt.history[name] = append(pt.history[name], toolPricingVersion{
			EffectiveFrom: from,
			Pricing:       ToolPricing{PerCall: e.PerCall, PerSecond: e.PerSecond},
		})
	}
	for _, versions := range pt.history {
		sort.SliceStable(versions, func(i, j int) bool {
			return versions[i].EffectiveFrom.Before(versions[j].EffectiveFrom)
		})
	}
	return pt, nil
}

// NormalizeToolName lowercases a tool key and strips a "server." or
// "server__" prefix, so "git_insights.git_log" prices as "git_log".
func NormalizeToolName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.LastIndex(name, "__"); i >= 0 {
		name = name[i+2:]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Lookup returns the latest pricing for a tool.
func (pt *PriceTable) Lookup(tool string) (ToolPricing, bool) {
	return pt.LookupAt(tool, time.Time{})
}

// LookupAt returns the pricing in effect at the given time. A zero time
// resolves to the latest version.
func (pt *PriceTable) LookupAt(tool string, at time.Time) (ToolPricing, bool) {
	if pt == nil {
		return ToolPricing{}, false
	}
	versions, ok := pt.history[NormalizeToolName(tool)]
	if !ok || len(versions) == 0 {
		return ToolPricing{}, false
	}
	if at.IsZero() {
		return versions[len(versions)-1].Pricing, true
	}

	at = at.UTC()
	for i := len(versions) - 1; i >= 0; i-- {
		if !at.Before(versions[i].EffectiveFrom) {
			return versions[i].Pricing, true
		}
	}
	return ToolPricing{}, false
}

// CostAt estimates the cost of one call of the given duration.
func (pt *PriceTable) CostAt(tool string, at time.Time, d time.Duration) float64 {
	p, ok := pt.LookupAt(tool, at)
	if !ok {
		return 0
	}
	cost := p.PerCall
	if d > 0 {
		cost += p.PerSecond * d.Seconds()
	}
	return cost
}

// Len is the number of priced tools.
func (pt *PriceTable) Len() int {
	if pt == nil {
		return 0
	}
	return len(pt.history)
}
