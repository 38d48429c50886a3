package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/store"
	"github.com/theirongolddev/toolmeter/internal/telemetry"
)

func newTestService(t *testing.T, rules []model.AlertRule, opts ...Option) (*Service, *httptest.Server) {
	t.Helper()
	s := New(Config{Interval: 10 * time.Second, EventsBuffer: 50}, pipeline.NewMonitor(rules), opts...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{Events: 10, TotalCost: 10.5}
	curr := Snapshot{Events: 12, TotalCost: 13.1}

	delta := diffSnapshots(prev, curr)
	if delta.Events != 2 {
		t.Fatalf("Events delta = %d, want 2", delta.Events)
	}
	if math.Abs(delta.TotalCost-2.6) > 1e-9 {
		t.Fatalf("Cost delta = %.2f, want 2.60", delta.TotalCost)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
	if !diffSnapshots(curr, curr).isZero() {
		t.Fatal("identical snapshots should give a zero delta")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(Config{Interval: 10 * time.Second, EventsBuffer: 2}, pipeline.NewMonitor(nil))

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestIngestAndQuery(t *testing.T) {
	_, srv := newTestService(t, nil)

	for _, body := range []string{
		`{"key":"git_log","duration_ms":100,"cost":0.5}`,
		`{"key":"git_log","duration_ms":300,"success":false}`,
		`{"key":"sql_query","duration_ms":20,"metadata":{"server":"sql"}}`,
	} {
		resp := postJSON(t, srv.URL+"/v1/events", body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("POST %s status = %d, want 201", body, resp.StatusCode)
		}
	}

	var st model.ToolStats
	if code := getJSON(t, srv.URL+"/v1/stats/git_log", &st); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if st.Count != 2 || st.SuccessCount != 1 || st.TotalCost != 0.5 {
		t.Fatalf("git_log stats = %+v, want count 2, success 1, cost 0.5", st)
	}
	if st.TotalDuration != 400*time.Millisecond {
		t.Fatalf("TotalDuration = %v, want 400ms", st.TotalDuration)
	}

	var unknown model.ToolStats
	getJSON(t, srv.URL+"/v1/stats/nope", &unknown)
	if unknown.Count != 0 || unknown.Key != "nope" {
		t.Fatalf("unknown stats = %+v, want empty", unknown)
	}

	var top []model.ToolStats
	getJSON(t, srv.URL+"/v1/top?n=1&by=count", &top)
	if len(top) != 1 || top[0].Key != "git_log" {
		t.Fatalf("top = %+v, want [git_log]", top)
	}

	var perf model.PerfSummary
	getJSON(t, srv.URL+"/v1/perf", &perf)
	if perf.Count != 3 || perf.Max != 300 || perf.Min != 20 {
		t.Fatalf("perf = %+v, want count 3, min 20, max 300", perf)
	}

	var rep model.Report
	getJSON(t, srv.URL+"/v1/report", &rep)
	if len(rep.Tools) != 2 {
		t.Fatalf("report tools = %d, want 2", len(rep.Tools))
	}
	if rep.Performance["p50"] != 100 {
		t.Fatalf("report p50 = %v, want 100", rep.Performance["p50"])
	}
}

func TestIngestNotCountedWhenPersistFails(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	s, srv := newTestService(t, nil, WithStore(st))
	_ = st.Close()

	resp := postJSON(t, srv.URL+"/v1/events", `{"key":"git_log","duration_ms":5}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if got := s.mon.Stats("git_log").Count; got != 0 {
		t.Fatalf("in-memory count = %d, want 0 for an unpersisted event", got)
	}
	if got := s.mon.Metrics()["count"]; got != 0 {
		t.Fatalf("metrics count = %v, want 0", got)
	}
}

func TestIngestRejectsInvalid(t *testing.T) {
	_, srv := newTestService(t, nil)

	for _, body := range []string{
		`{"duration_ms":1}`,
		`{"key":"a","duration_ms":-1}`,
		`{"key":"a","cost":-0.1}`,
		`not json`,
	} {
		resp := postJSON(t, srv.URL+"/v1/events", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestTopRejectsBadRankKey(t *testing.T) {
	_, srv := newTestService(t, nil)

	if code := getJSON(t, srv.URL+"/v1/top?by=latency", nil); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if code := getJSON(t, srv.URL+"/v1/top?n=ten", nil); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestIngestEstimatesCost(t *testing.T) {
	pt, err := config.NewPriceTable([]config.PriceConfig{{Tool: "search", PerCall: 0.01, PerSecond: 0.1}})
	if err != nil {
		t.Fatal(err)
	}
	_, srv := newTestService(t, nil, WithPrices(pt))

	postJSON(t, srv.URL+"/v1/events", `{"key":"search","duration_ms":2000}`)

	var st model.ToolStats
	getJSON(t, srv.URL+"/v1/stats/search", &st)
	if math.Abs(st.TotalCost-0.21) > 1e-9 {
		t.Fatalf("TotalCost = %v, want 0.21", st.TotalCost)
	}
}

func TestCheckFiresAndPersistsAlerts(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	rules := []model.AlertRule{
		model.NewAlertRule("busy", "count", model.OpGreater, 1),
		model.NewAlertRule("cpu", "cpu_percent", model.OpGreater, 80),
	}
	s, srv := newTestService(t, rules, WithStore(st))

	postJSON(t, srv.URL+"/v1/events", `{"key":"a","duration_ms":1}`)
	postJSON(t, srv.URL+"/v1/events", `{"key":"a","duration_ms":2}`)
	postJSON(t, srv.URL+"/v1/metrics", `{"cpu_percent":91}`)

	var fired []model.Alert
	resp := postJSON(t, srv.URL+"/v1/alerts/check", "")
	if err := json.NewDecoder(resp.Body).Decode(&fired); err != nil {
		t.Fatal(err)
	}
	if len(fired) != 2 {
		t.Fatalf("fired = %+v, want 2 alerts", fired)
	}

	// Second check is inside the cooldown.
	if again := s.checkOnce(); len(again) != 0 {
		t.Fatalf("second check fired %d alerts, want 0", len(again))
	}

	n, err := st.EventCount()
	if err != nil || n != 2 {
		t.Fatalf("EventCount = %d, %v; want 2", n, err)
	}

	var alerts []model.Alert
	getJSON(t, srv.URL+"/v1/alerts", &alerts)
	if len(alerts) != 2 {
		t.Fatalf("alerts = %+v, want 2", alerts)
	}

	var status Status
	getJSON(t, srv.URL+"/v1/status", &status)
	if status.AlertsFired != 2 || status.CheckCount != 2 || status.Rules != 2 {
		t.Fatalf("status = %+v", status)
	}
}

func TestAlertsFromRingWithoutStore(t *testing.T) {
	s, srv := newTestService(t, []model.AlertRule{model.NewAlertRule("any", "count", model.OpGreater, 0)})

	var empty []model.Alert
	getJSON(t, srv.URL+"/v1/alerts", &empty)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("alerts before any check = %v, want []", empty)
	}

	postJSON(t, srv.URL+"/v1/events", `{"key":"a"}`)
	s.checkOnce()

	var alerts []model.Alert
	getJSON(t, srv.URL+"/v1/alerts", &alerts)
	if len(alerts) != 1 || alerts[0].Rule != "any" {
		t.Fatalf("alerts = %+v, want [any]", alerts)
	}
}

func TestStreamSendsSnapshot(t *testing.T) {
	_, srv := newTestService(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "event: snapshot\n" {
		t.Fatalf("first line = %q, want snapshot event", line)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	tel, err := telemetry.New(telemetry.Config{Provider: telemetry.ProviderPrometheus})
	if err != nil {
		t.Fatal(err)
	}
	mon := pipeline.NewMonitor(nil, pipeline.WithTelemetry(tel))
	s := New(Config{}, mon, WithTelemetry(tel))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	mon.Record("git_log", time.Millisecond, true, 0, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `tool="git_log"`) {
		t.Fatalf("scrape missing git_log series:\n%s", body)
	}
}

func TestReloadRules(t *testing.T) {
	mon := pipeline.NewMonitor(nil)
	s := New(Config{LoadRules: func() ([]model.AlertRule, error) {
		return []model.AlertRule{model.NewAlertRule("r", "count", model.OpGreater, 0)}, nil
	}}, mon)

	s.reloadRules()
	if got := len(mon.Rules()); got != 1 {
		t.Fatalf("rules after reload = %d, want 1", got)
	}
}

func TestReloadRulesKeepsCooldown(t *testing.T) {
	busy := model.NewAlertRule("busy", "count", model.OpGreater, 0)
	busy.Cooldown = time.Hour
	load := func() ([]model.AlertRule, error) { return []model.AlertRule{busy}, nil }

	mon := pipeline.NewMonitor([]model.AlertRule{busy})
	s := New(Config{LoadRules: load}, mon)
	mon.Record("git_log", time.Millisecond, true, 0, nil)

	if fired := s.checkOnce(); len(fired) != 1 {
		t.Fatalf("first check fired %d, want 1", len(fired))
	}

	// a save of an unrelated setting reloads the same rules
	s.reloadRules()
	if again := s.checkOnce(); len(again) != 0 {
		t.Fatalf("check after reload fired %d, want 0 while cooling down", len(again))
	}
}
