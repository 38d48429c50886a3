package pipeline

import (
	"maps"
	"sync"
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/telemetry"
)

// Monitor serializes access to one tracker, per-key and overall latency
// streams and an alert engine, so it can be shared between request
// handlers and a background checker.
type Monitor struct {
	mu         sync.Mutex
	tracker    *UsageTracker
	overall    *PerformanceStats
	perKey     map[string]*PerformanceStats
	alerts     *AlertEngine
	lastAlerts []model.Alert

	clock func() time.Time
	tel   *telemetry.Client
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithTelemetry forwards every recorded event and fired alert to c.
func WithTelemetry(c *telemetry.Client) MonitorOption {
	return func(m *Monitor) { m.tel = c }
}

// WithMonitorClock sets the time source for event stamps and cooldowns.
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.clock = now }
}

// NewMonitor returns a Monitor with the given rules registered.
func NewMonitor(rules []model.AlertRule, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		tracker: NewUsageTracker(),
		overall: NewPerformanceStats(),
		perKey:  make(map[string]*PerformanceStats),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.tracker.now = m.clock
	m.alerts = m.newEngine(rules)
	return m
}

func (m *Monitor) newEngine(rules []model.AlertRule) *AlertEngine {
	e := NewAlertEngine(WithClock(m.clock))
	for _, r := range rules {
		e.AddRule(r)
	}
	return e
}

// Record records one invocation and feeds its latency into the streams.
func (m *Monitor) Record(key string, duration time.Duration, success bool, cost float64, metadata map[string]any) model.Event {
	m.mu.Lock()
	ev := m.tracker.NewEvent(key, duration, success, cost, metadata)
	m.mu.Unlock()
	m.commit(ev)
	return ev
}

// RecordPersisted is Record with a persistence step in front: the event is
// handed to persist first and only counted if persist succeeds.
func (m *Monitor) RecordPersisted(key string, duration time.Duration, success bool, cost float64, metadata map[string]any, persist func(model.Event) error) (model.Event, error) {
	m.mu.Lock()
	ev := m.tracker.NewEvent(key, duration, success, cost, metadata)
	m.mu.Unlock()
	if err := persist(ev); err != nil {
		return ev, err
	}
	m.commit(ev)
	return ev, nil
}

func (m *Monitor) commit(ev model.Event) {
	m.mu.Lock()
	m.tracker.apply(ev)
	m.sample(ev)
	m.mu.Unlock()

	status := "ok"
	if !ev.Success {
		status = "error"
	}
	m.tel.Incr(telemetry.EventRecorded, telemetry.Tag("tool", ev.Key), telemetry.Tag("status", status))
	m.tel.Timing(telemetry.EventDuration, ev.Duration, telemetry.Tag("tool", ev.Key))
	if ev.Cost > 0 {
		m.tel.Add(telemetry.EventCost, ev.Cost, telemetry.Tag("tool", ev.Key))
	}
}

// Replay rebuilds state from persisted events without re-exporting them.
func (m *Monitor) Replay(events []model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.Replay(events)
	for _, ev := range events {
		m.sample(ev)
	}
}

func (m *Monitor) sample(ev model.Event) {
	ms := durationMS(ev.Duration)
	m.overall.Add(ms)
	p, ok := m.perKey[ev.Key]
	if !ok {
		p = NewPerformanceStats()
		m.perKey[ev.Key] = p
	}
	p.Add(ms)
}

// Stats returns the totals for one key.
func (m *Monitor) Stats(key string) model.ToolStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Stats(key)
}

// AllStats returns a snapshot of every key's totals.
func (m *Monitor) AllStats() map[string]model.ToolStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.AllStats()
}

// TopTools ranks keys; see UsageTracker.TopTools.
func (m *Monitor) TopTools(n int, by string) ([]model.ToolStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.TopTools(n, by)
}

// Events returns a copy of the event log.
func (m *Monitor) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Events()
}

// Len is the number of recorded events.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Len()
}

// Perf summarizes latency in milliseconds across all keys.
func (m *Monitor) Perf() model.PerfSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overall.Summary()
}

// PerfByKey summarizes latency in milliseconds for each key.
func (m *Monitor) PerfByKey() map[string]model.PerfSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.PerfSummary, len(m.perKey))
	for k, p := range m.perKey {
		out[k] = p.Summary()
	}
	return out
}

// Metrics derives the snapshot alert rules are evaluated against. Global
// metrics use bare names; per-key metrics are prefixed "<key>.".
func (m *Monitor) Metrics() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metricsLocked()
}

func (m *Monitor) metricsLocked() map[string]float64 {
	out := make(map[string]float64)

	var total model.ToolStats
	for k, s := range m.tracker.AllStats() {
		total.Count += s.Count
		total.SuccessCount += s.SuccessCount
		total.TotalDuration += s.TotalDuration
		total.TotalCost += s.TotalCost
		putStats(out, k+".", s)
		if p, ok := m.perKey[k]; ok {
			putPerf(out, k+".", p.Summary())
		}
	}
	putStats(out, "", total)
	putPerf(out, "", m.overall.Summary())
	return out
}

func putStats(out map[string]float64, prefix string, s model.ToolStats) {
	out[prefix+"count"] = float64(s.Count)
	out[prefix+"success_rate"] = s.SuccessRate()
	errRate := 0.0
	if s.Count > 0 {
		errRate = 1 - s.SuccessRate()
	}
	out[prefix+"error_rate"] = errRate
	out[prefix+"avg_duration_ms"] = durationMS(s.AvgDuration())
	out[prefix+"total_cost"] = s.TotalCost
}

func putPerf(out map[string]float64, prefix string, p model.PerfSummary) {
	out[prefix+"p50"] = p.P50
	out[prefix+"p95"] = p.P95
	out[prefix+"p99"] = p.P99
}

// Check evaluates the rules against the derived metrics merged with extra
// readings (extra wins on conflict) and remembers the fired alerts for
// Report.
func (m *Monitor) Check(extra map[string]float64) []model.Alert {
	m.mu.Lock()
	metrics := m.metricsLocked()
	maps.Copy(metrics, extra)
	fired := m.alerts.Check(metrics)
	m.lastAlerts = fired
	m.mu.Unlock()

	for _, a := range fired {
		m.tel.Incr(telemetry.AlertFired, telemetry.Tag("rule", a.Rule))
	}
	return fired
}

// AddRule registers one more rule on the current engine.
func (m *Monitor) AddRule(rule model.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts.AddRule(rule)
}

// SetRules replaces the rule set. Rules whose name survives the swap keep
// their last fire time, so a reload does not restart their cooldown.
func (m *Monitor) SetRules(rules []model.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.newEngine(rules)
	for _, r := range rules {
		if t, ok := m.alerts.LastFired(r.Name); ok {
			next.lastFired[r.Name] = t
		}
	}
	m.alerts = next
}

// Rules returns the registered rules.
func (m *Monitor) Rules() []model.AlertRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alerts.Rules()
}

// LastAlerts returns the alerts fired by the most recent Check.
func (m *Monitor) LastAlerts() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, len(m.lastAlerts))
	copy(out, m.lastAlerts)
	return out
}

// Report snapshots stats, overall latency and the latest alerts.
func (m *Monitor) Report() model.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.NewReport(m.tracker.AllStats(), m.overall.Summary().Map(), m.lastAlerts)
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
