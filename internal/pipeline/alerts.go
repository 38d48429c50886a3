package pipeline

import (
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// AlertEngine evaluates threshold rules against metric snapshots. Each rule
// name has one cooldown slot, so rules sharing a name suppress each other.
// It is not safe for concurrent use; see Monitor.
type AlertEngine struct {
	rules     []model.AlertRule
	lastFired map[string]time.Time
	now       func() time.Time
}

// AlertOption configures an AlertEngine.
type AlertOption func(*AlertEngine)

// WithClock replaces the engine's time source.
func WithClock(now func() time.Time) AlertOption {
	return func(e *AlertEngine) { e.now = now }
}

// NewAlertEngine returns an engine with no rules.
func NewAlertEngine(opts ...AlertOption) *AlertEngine {
	e := &AlertEngine{
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddRule appends a rule. Rules are evaluated in the order they were added.
func (e *AlertEngine) AddRule(rule model.AlertRule) {
	e.rules = append(e.rules, rule)
}

// Rules returns a copy of the registered rules.
func (e *AlertEngine) Rules() []model.AlertRule {
	out := make([]model.AlertRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// LastFired reports when the named rule last fired.
func (e *AlertEngine) LastFired(name string) (time.Time, bool) {
	t, ok := e.lastFired[name]
	return t, ok
}

// Check evaluates every rule against metrics and returns the alerts fired
// by this call in rule order. Rules whose metric is missing are skipped.
// A triggered rule still inside its cooldown emits nothing and keeps its
// previous fire time.
func (e *AlertEngine) Check(metrics map[string]float64) []model.Alert {
	now := e.now().UTC()
	alerts := []model.Alert{}

	for _, rule := range e.rules {
		value, ok := metrics[rule.Metric]
		if !ok {
			continue
		}
		if !rule.Operator.Compare(value, rule.Threshold) {
			continue
		}
		if last, ok := e.lastFired[rule.Name]; ok && now.Sub(last) < rule.Cooldown {
			continue
		}

		e.lastFired[rule.Name] = now
		alerts = append(alerts, model.Alert{
			Rule:        rule.Name,
			Metric:      rule.Metric,
			Value:       value,
			Threshold:   rule.Threshold,
			TriggeredAt: now,
		})
	}
	return alerts
}
