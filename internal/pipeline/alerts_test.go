package pipeline

import (
	"testing"
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func rule(name, metric string, op model.Operator, threshold float64, cooldown time.Duration) model.AlertRule {
	return model.AlertRule{Name: name, Metric: metric, Operator: op, Threshold: threshold, Cooldown: cooldown}
}

func TestCheckFiresAboveThreshold(t *testing.T) {
	e := NewAlertEngine()
	e.AddRule(rule("high", "p99", model.OpGreater, 500, 0))

	alerts := e.Check(map[string]float64{"p99": 600})
	if len(alerts) != 1 {
		t.Fatalf("len(alerts) = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Rule != "high" || a.Value != 600 || a.Threshold != 500 {
		t.Errorf("alert = %+v", a)
	}

	if got := e.Check(map[string]float64{"p99": 400}); len(got) != 0 {
		t.Errorf("below threshold fired %d alerts", len(got))
	}
}

func TestCheckOperators(t *testing.T) {
	tests := []struct {
		op    model.Operator
		value float64
		want  bool
	}{
		{model.OpGreater, 11, true},
		{model.OpGreater, 10, false},
		{model.OpLess, 9, true},
		{model.OpLess, 10, false},
		{model.OpEqual, 10, true},
		{model.OpEqual, 10.5, false},
		{"gte", 100, false},
		{"", 10, false},
	}
	for _, tt := range tests {
		e := NewAlertEngine()
		e.AddRule(rule("r", "m", tt.op, 10, 0))
		got := len(e.Check(map[string]float64{"m": tt.value})) == 1
		if got != tt.want {
			t.Errorf("%q with value %v fired = %v, want %v", tt.op, tt.value, got, tt.want)
		}
	}
}

func TestCheckSkipsMissingMetric(t *testing.T) {
	e := NewAlertEngine()
	e.AddRule(rule("r", "error_rate", model.OpGreater, 0, 0))
	if got := e.Check(map[string]float64{"p99": 1}); len(got) != 0 {
		t.Errorf("missing metric fired %d alerts", len(got))
	}
	if _, ok := e.LastFired("r"); ok {
		t.Error("skipped rule recorded a fire time")
	}
}

func TestCheckCooldown(t *testing.T) {
	clk := newClock()
	e := NewAlertEngine(WithClock(clk.Now))
	e.AddRule(rule("slow", "p99", model.OpGreater, 500, 300*time.Second))
	metrics := map[string]float64{"p99": 900}

	if got := e.Check(metrics); len(got) != 1 {
		t.Fatalf("first check fired %d, want 1", len(got))
	}
	first, _ := e.LastFired("slow")

	clk.Advance(299 * time.Second)
	if got := e.Check(metrics); len(got) != 0 {
		t.Fatalf("inside cooldown fired %d, want 0", len(got))
	}
	if last, _ := e.LastFired("slow"); !last.Equal(first) {
		t.Errorf("suppressed check moved last-fired to %v", last)
	}

	clk.Advance(time.Second)
	got := e.Check(metrics)
	if len(got) != 1 {
		t.Fatalf("after cooldown fired %d, want 1", len(got))
	}
	if !got[0].TriggeredAt.Equal(clk.Now()) {
		t.Errorf("TriggeredAt = %v, want %v", got[0].TriggeredAt, clk.Now())
	}
}

func TestCheckZeroCooldownFiresEveryTime(t *testing.T) {
	e := NewAlertEngine(WithClock(newClock().Now))
	e.AddRule(rule("r", "m", model.OpGreater, 0, 0))
	for i := range 3 {
		if got := e.Check(map[string]float64{"m": 1}); len(got) != 1 {
			t.Fatalf("check %d fired %d, want 1", i, len(got))
		}
	}
}

func TestCheckOrderAndSharedNames(t *testing.T) {
	e := NewAlertEngine(WithClock(newClock().Now))
	e.AddRule(rule("b-rule", "m", model.OpGreater, 0, time.Minute))
	e.AddRule(rule("a-rule", "m", model.OpGreater, 0, time.Minute))
	e.AddRule(rule("b-rule", "other", model.OpGreater, 0, time.Minute))

	got := e.Check(map[string]float64{"m": 1, "other": 1})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (duplicate name shares cooldown)", len(got))
	}
	if got[0].Rule != "b-rule" || got[1].Rule != "a-rule" {
		t.Errorf("order = %s,%s, want registration order", got[0].Rule, got[1].Rule)
	}
}

func TestRulesCopy(t *testing.T) {
	e := NewAlertEngine()
	e.AddRule(rule("r", "m", model.OpGreater, 1, 0))
	rs := e.Rules()
	rs[0].Name = "changed"
	if e.Rules()[0].Name != "r" {
		t.Error("Rules must return a copy")
	}
}
