package pipeline

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/telemetry"
)

func TestMonitorMetrics(t *testing.T) {
	m := NewMonitor(nil)
	m.Record("grep", 100*time.Millisecond, true, 0.5, nil)
	m.Record("grep", 300*time.Millisecond, false, 0.5, nil)
	m.Record("sql", 200*time.Millisecond, true, 1, nil)

	got := m.Metrics()
	want := map[string]float64{
		"count":                3,
		"total_cost":           2,
		"avg_duration_ms":      200,
		"p50":                  200,
		"grep.count":           2,
		"grep.success_rate":    0.5,
		"grep.error_rate":      0.5,
		"grep.avg_duration_ms": 200,
		"grep.p99":             298,
		"sql.p50":              200,
	}
	for k, v := range want {
		if !approx(got[k], v) {
			t.Errorf("Metrics[%q] = %v, want %v", k, got[k], v)
		}
	}
	if !approx(got["success_rate"], 2.0/3) || !approx(got["error_rate"], 1.0/3) {
		t.Errorf("rates = %v/%v", got["success_rate"], got["error_rate"])
	}
}

func TestMonitorMetricsEmpty(t *testing.T) {
	got := NewMonitor(nil).Metrics()
	if got["count"] != 0 || got["error_rate"] != 0 || got["p99"] != 0 {
		t.Errorf("empty metrics = %v", got)
	}
}

func TestMonitorCheckAndReport(t *testing.T) {
	clk := newClock()
	rules := []model.AlertRule{
		rule("errors", "error_rate", model.OpGreater, 0.2, time.Minute),
		rule("cpu", "cpu_percent", model.OpGreater, 90, time.Minute),
	}
	m := NewMonitor(rules, WithMonitorClock(clk.Now))
	m.Record("grep", time.Millisecond, false, 0, nil)

	fired := m.Check(map[string]float64{"cpu_percent": 95})
	if len(fired) != 2 {
		t.Fatalf("fired %d, want 2", len(fired))
	}
	if again := m.Check(map[string]float64{"cpu_percent": 95}); len(again) != 0 {
		t.Errorf("cooldown ignored: fired %d", len(again))
	}

	r := m.Report()
	if len(r.Alerts) != 0 {
		t.Errorf("report alerts = %d, want the latest (empty) check", len(r.Alerts))
	}
	if r.Tools["grep"].Count != 1 {
		t.Errorf("report tools = %+v", r.Tools)
	}
	if r.Performance["count"] != 1 {
		t.Errorf("report perf count = %v, want 1", r.Performance["count"])
	}

	m.SetRules(rules)
	if again := m.Check(map[string]float64{"cpu_percent": 95}); len(again) != 0 {
		t.Errorf("SetRules with the same rules restarted cooldowns: fired %d", len(again))
	}

	// renamed rule starts fresh; the surviving one stays cooled down
	m.SetRules([]model.AlertRule{
		rule("errors", "error_rate", model.OpGreater, 0.2, time.Minute),
		rule("cpu-hot", "cpu_percent", model.OpGreater, 90, time.Minute),
	})
	fired = m.Check(map[string]float64{"cpu_percent": 95})
	if len(fired) != 1 || fired[0].Rule != "cpu-hot" {
		t.Fatalf("fired = %+v, want only cpu-hot", fired)
	}

	clk.Advance(2 * time.Minute)
	if len(m.Check(map[string]float64{"cpu_percent": 95})) != 2 {
		t.Error("cooldowns should expire after a reload")
	}
	if len(m.LastAlerts()) != 2 {
		t.Errorf("LastAlerts = %d, want 2", len(m.LastAlerts()))
	}
}

func TestMonitorRecordPersisted(t *testing.T) {
	m := NewMonitor(nil)

	var saved []model.Event
	ok := func(ev model.Event) error {
		saved = append(saved, ev)
		return nil
	}
	ev, err := m.RecordPersisted("grep", 10*time.Millisecond, true, 0, nil, ok)
	if err != nil {
		t.Fatalf("RecordPersisted: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != ev.ID {
		t.Fatalf("persisted %+v, want the returned event", saved)
	}

	errDisk := errors.New("disk full")
	_, err = m.RecordPersisted("grep", 10*time.Millisecond, true, 0, nil, func(model.Event) error { return errDisk })
	if !errors.Is(err, errDisk) {
		t.Fatalf("err = %v, want %v", err, errDisk)
	}
	if got := m.Stats("grep").Count; got != 1 {
		t.Errorf("Count = %d, want 1 (failed persist not counted)", got)
	}
	if got := m.Perf().Count; got != 1 {
		t.Errorf("perf count = %d, want 1", got)
	}
}

func TestMonitorReplay(t *testing.T) {
	src := NewMonitor(nil)
	src.Record("a", 10*time.Millisecond, true, 0, nil)
	src.Record("b", 30*time.Millisecond, true, 0, nil)

	dst := NewMonitor(nil)
	dst.Replay(src.Events())
	if dst.Len() != 2 {
		t.Errorf("Len = %d, want 2", dst.Len())
	}
	if p := dst.Perf(); p.Count != 2 || p.Max != 30 {
		t.Errorf("Perf = %+v", p)
	}
	if pk := dst.PerfByKey(); pk["a"].P50 != 10 {
		t.Errorf("PerfByKey[a] = %+v", pk["a"])
	}
}

func TestMonitorTelemetry(t *testing.T) {
	tel, err := telemetry.New(telemetry.Config{Provider: telemetry.ProviderPrometheus})
	if err != nil {
		t.Fatal(err)
	}
	m := NewMonitor([]model.AlertRule{rule("any", "count", model.OpGreater, 0, 0)}, WithTelemetry(tel))
	m.Record("grep", time.Millisecond, true, 0.1, nil)
	m.Record("grep", time.Millisecond, false, 0, nil)
	m.Check(nil)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	out := rec.Body.String()
	for _, want := range []string{
		`toolmeter_events_total{status="ok",tool="grep"} 1`,
		`toolmeter_events_total{status="error",tool="grep"} 1`,
		`toolmeter_alerts_total{rule="any"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestMonitorConcurrent(t *testing.T) {
	m := NewMonitor([]model.AlertRule{rule("r", "count", model.OpGreater, 0, 0)})
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				m.Record("k", time.Duration(i*j)*time.Microsecond, j%3 != 0, 0.01, nil)
				if j%10 == 0 {
					m.Check(nil)
					_ = m.Report()
				}
			}
		}()
	}
	wg.Wait()
	if got := m.Stats("k").Count; got != 400 {
		t.Errorf("Count = %d, want 400", got)
	}
}
