package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/tui/components"
)

func loadedApp(t *testing.T, rules []model.AlertRule) App {
	t.Helper()
	now := time.Now()
	events := []model.Event{
		{ID: "1", Key: "git_log", Timestamp: now.Add(-time.Hour), Duration: 100 * time.Millisecond, Success: true, Cost: 0.01},
		{ID: "2", Key: "git_log", Timestamp: now.Add(-2 * time.Hour), Duration: 300 * time.Millisecond, Success: false},
		{ID: "3", Key: "sql_query", Timestamp: now.Add(-3 * time.Hour), Duration: 20 * time.Millisecond, Success: true, Cost: 0.5},
		{ID: "4", Key: "sql_query", Timestamp: now.AddDate(0, 0, -40), Duration: time.Second, Success: true},
	}

	a := NewApp(Options{Days: 30, Rules: rules})
	m, _ := a.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	m, _ = m.(App).Update(DataLoadedMsg{Events: events})
	return m.(App)
}

func TestRecomputeUsesWindow(t *testing.T) {
	a := loadedApp(t, nil)

	if a.stats.TotalCalls != 3 {
		t.Fatalf("TotalCalls = %d, want 3 (old event outside window)", a.stats.TotalCalls)
	}
	if a.prevStats.TotalCalls != 1 {
		t.Fatalf("prev TotalCalls = %d, want 1", a.prevStats.TotalCalls)
	}
	if a.metrics["count"] != 3 {
		t.Fatalf("metrics[count] = %v, want 3", a.metrics["count"])
	}
	if got := a.perf["git_log"].Max; got != 300 {
		t.Fatalf("git_log max = %v, want 300", got)
	}
}

func TestFiringRules(t *testing.T) {
	rules := []model.AlertRule{
		model.NewAlertRule("errors", "error_rate", model.OpGreater, 0.2),
		model.NewAlertRule("cheap", "total_cost", model.OpGreater, 10),
		model.NewAlertRule("missing", "cpu_percent", model.OpGreater, 0),
	}
	a := loadedApp(t, rules)

	firing := a.firing()
	if len(firing) != 1 || firing[0].Name != "errors" {
		t.Fatalf("firing = %+v, want [errors]", firing)
	}
}

func TestTabNavigation(t *testing.T) {
	a := loadedApp(t, nil)

	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	if got := m.(App).activeTab; got != tabAlerts {
		t.Fatalf("activeTab = %d, want alerts", got)
	}
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyRight})
	if got := m.(App).activeTab; got != tabOverview {
		t.Fatalf("activeTab after right = %d, want wrap to overview", got)
	}
}

func TestToolsRankCycle(t *testing.T) {
	a := loadedApp(t, nil)
	a.activeTab = tabTools

	ranked := a.rankedTools()
	if len(ranked) != 2 || ranked[0].Key != "git_log" {
		t.Fatalf("by count = %+v, want git_log first", ranked)
	}

	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	a = m.(App)
	if a.tools.rankKey() != pipeline.RankByCost {
		t.Fatalf("rankKey = %q, want cost", a.tools.rankKey())
	}
	if got := a.rankedTools()[0].Key; got != "sql_query" {
		t.Fatalf("by cost first = %q, want sql_query", got)
	}

	m, _ = a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if got := m.(App).tools.cursor; got != 1 {
		t.Fatalf("cursor = %d, want clamped to 1", got)
	}
}

func TestTimeWindowKeys(t *testing.T) {
	a := loadedApp(t, nil)

	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{']'}})
	a = m.(App)
	if a.days != 90 || a.stats.TotalCalls != 4 {
		t.Fatalf("days = %d calls = %d, want 90 and 4", a.days, a.stats.TotalCalls)
	}
	if prevWindow(1) != 1 || nextWindow(365) != 365 {
		t.Fatal("window bounds should clamp")
	}
}

func TestTabAtX(t *testing.T) {
	for active := range components.Tabs {
		a := App{activeTab: active}
		pos := components.TabBarOffset()
		for i := range components.Tabs {
			w := components.TabVisualWidth(i, i == active)
			if got := a.tabAtX(pos + w/2); got != i {
				t.Fatalf("active=%d: tabAtX(%d) = %d, want %d", active, pos+w/2, got, i)
			}
			pos += w + 1
		}
	}
	if got := (App{}).tabAtX(0); got != -1 {
		t.Fatalf("tabAtX over logo = %d, want -1", got)
	}
}

func TestViewRendersEachTab(t *testing.T) {
	a := loadedApp(t, []model.AlertRule{model.NewAlertRule("errors", "error_rate", model.OpGreater, 0.2)})
	for tab := range components.Tabs {
		a.activeTab = tab
		if out := a.View(); out == "" {
			t.Fatalf("tab %d rendered nothing", tab)
		}
	}
}

func TestChartDateLabels(t *testing.T) {
	days := []model.DailyStats{
		{Date: time.Date(2025, 2, 2, 0, 0, 0, 0, time.Local)},
		{Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.Local)},
		{Date: time.Date(2025, 1, 31, 0, 0, 0, 0, time.Local)},
	}
	got := chartDateLabels(days)
	want := []string{"Jan 31", "Feb 1", "2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("labels = %v, want %v", got, want)
		}
	}
}

func TestApplySetup(t *testing.T) {
	cfg := defaultConfigForTest()
	ApplySetup(&cfg, SetupValues{Days: 7, Theme: "terminal", DaemonAddr: "0.0.0.0:9000", StarterRules: true})

	if cfg.General.DefaultDays != 7 || cfg.Appearance.Theme != "terminal" || cfg.Daemon.Addr != "0.0.0.0:9000" {
		t.Fatalf("cfg = %+v", cfg)
	}
	rules, err := cfg.Rules()
	if err != nil || len(rules) != 2 {
		t.Fatalf("Rules() = %v, %v; want 2 starter rules", rules, err)
	}
	if err := validateAddr("nope"); err == nil {
		t.Fatal("validateAddr should reject an address without a port")
	}
}

func TestSaveSetupConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	a := loadedApp(t, nil)
	a.opts.ConfigPath = path
	a.setupVals = &SetupValues{Days: 7, Theme: "flexoki-dark", DaemonAddr: "127.0.0.1:9000"}

	if err := a.saveSetupConfig(); err != nil {
		t.Fatalf("saveSetupConfig: %v", err)
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.DefaultDays != 7 || cfg.Daemon.Addr != "127.0.0.1:9000" {
		t.Errorf("saved cfg = %+v / %+v", cfg.General, cfg.Daemon)
	}
}

func TestSaveSetupConfig_UnreadableFileKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	broken := "[general\ndefault_days = oops\n"
	if err := os.WriteFile(path, []byte(broken), 0o600); err != nil {
		t.Fatal(err)
	}

	a := loadedApp(t, nil)
	a.opts.ConfigPath = path
	a.setupVals = &SetupValues{Days: 7, Theme: "flexoki-dark", DaemonAddr: "127.0.0.1:9000"}

	a.saveErr = a.saveSetupConfig()
	if a.saveErr == nil {
		t.Fatal("saveSetupConfig should fail on an unparseable config")
	}
	if a.days != 7 {
		t.Errorf("days = %d, want 7 applied to the session", a.days)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != broken {
		t.Errorf("config file was overwritten: %q", data)
	}
	if !strings.Contains(a.View(), "config not saved") {
		t.Error("status bar should report the failed save")
	}
}

func defaultConfigForTest() config.Config {
	return config.DefaultConfig()
}
