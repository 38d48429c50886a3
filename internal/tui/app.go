// Package tui provides the interactive Bubble Tea dashboard for toolmeter.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/store"
	"github.com/theirongolddev/toolmeter/internal/tui/components"
	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

// Options configures the dashboard.
type Options struct {
	DBPath string
	// LogDir, if set, is imported into the store before every load.
	LogDir          string
	Days            int
	Rules           []model.AlertRule
	RefreshInterval time.Duration
	AutoRefresh     bool
	// NeedSetup shows the first-run form once data has loaded. Answers
	// are saved to ConfigPath, or the default config path when empty.
	NeedSetup  bool
	ConfigPath string
}

// DataLoadedMsg is sent when a load or refresh finishes.
type DataLoadedMsg struct {
	Events   []model.Event
	Alerts   []model.Alert
	Imported int
	LoadTime time.Duration
	Err      error
}

// ProgressMsg reports import progress.
type ProgressMsg struct {
	Current int
	Total   int
}

// refreshMsg wraps a background refresh so it does not show the loader.
type refreshMsg struct{ DataLoadedMsg }

// App is the root Bubble Tea model.
type App struct {
	opts Options

	// Data
	events   []model.Event
	history  []model.Alert
	loaded   bool
	loadTime time.Duration
	loadErr  error
	saveErr  error

	// Derived for the current window
	stats     model.SummaryStats
	prevStats model.SummaryStats
	daily     []model.DailyStats
	servers   []model.ServerStats
	hourly    []model.HourlyStats
	mon       *pipeline.Monitor
	perf      map[string]model.PerfSummary
	metrics   map[string]float64

	// Refresh state
	autoRefresh bool
	lastRefresh time.Time
	refreshing  bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	days      int
	tools     toolsState
	alertsTab alertsState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals *SetupValues
	needSetup bool

	// Loading
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180
	minContentHeight = 5

	tabOverview = 0
	tabTools    = 1
	tabAlerts   = 2
)

// NewApp creates a new dashboard model.
func NewApp(opts Options) App {
	if opts.Days <= 0 {
		opts.Days = 30
	}
	if opts.RefreshInterval < 10*time.Second {
		opts.RefreshInterval = 30 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	return App{
		opts:        opts,
		days:        opts.Days,
		autoRefresh: opts.AutoRefresh,
		needSetup:   opts.NeedSetup,
		spinner:     sp,
		loadSub:     make(chan tea.Msg, 1),
		mon:         pipeline.NewMonitor(opts.Rules),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		loadDataCmd(a.opts, a.loadSub),
		a.spinner.Tick,
		tickCmd(),
	)
}

// recompute rebuilds every derived view from the loaded events.
func (a *App) recompute() {
	now := time.Now()
	since := now.AddDate(0, 0, -a.days)

	window := pipeline.FilterByTime(a.events, since, now)
	a.stats = pipeline.Aggregate(window, since, now)
	a.prevStats = pipeline.Aggregate(a.events, since.AddDate(0, 0, -a.days), since)
	a.daily = pipeline.AggregateDays(window, since, now)
	a.servers = pipeline.AggregateServers(window, since, now)
	a.hourly = pipeline.AggregateHourly(window, since, now)

	a.mon = pipeline.NewMonitor(a.opts.Rules)
	a.mon.Replay(window)
	a.perf = a.mon.PerfByKey()
	a.metrics = a.mon.Metrics()

	a.tools.clamp(len(a.mon.AllStats()))
}

// firing returns the rules whose metric is currently over threshold,
// ignoring cooldown.
func (a App) firing() []model.AlertRule {
	var out []model.AlertRule
	for _, r := range a.opts.Rules {
		if v, ok := a.metrics[r.Metric]; ok && r.Operator.Compare(v, r.Threshold) {
			out = append(out, r)
		}
	}
	return out
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		return a.updateKey(msg)

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case DataLoadedMsg:
		a.applyData(msg)
		if a.needSetup {
			a.setupVals = defaultSetupValues(a.days)
			a.setupForm = NewSetupForm(len(a.events), a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}
		return a, nil

	case refreshMsg:
		a.refreshing = false
		a.applyData(msg.DataLoadedMsg)
		return a, nil

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.loaded && a.autoRefresh && !a.refreshing && time.Since(a.lastRefresh) >= a.opts.RefreshInterval {
			a.refreshing = true
			cmds = append(cmds, refreshDataCmd(a.opts))
		}
		return a, tea.Batch(cmds...)
	}

	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a *App) applyData(msg DataLoadedMsg) {
	a.loaded = true
	a.loadTime = msg.LoadTime
	a.loadErr = msg.Err
	a.lastRefresh = time.Now()
	if msg.Err == nil {
		a.events = msg.Events
		a.history = msg.Alerts
	}
	a.recompute()
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch a.activeTab {
	case tabTools:
		if a.updateToolsKey(key) {
			return a, nil
		}
	case tabAlerts:
		if a.updateAlertsKey(key) {
			return a, nil
		}
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.opts)
		}
	case "R":
		a.autoRefresh = !a.autoRefresh
	case "[":
		a.days = prevWindow(a.days)
		a.recompute()
	case "]":
		a.days = nextWindow(a.days)
		a.recompute()
	case "left", "h":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
	case "right", "l", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
	default:
		if idx := components.TabIdxByKey(key); idx >= 0 {
			a.activeTab = idx
		}
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !a.loaded || a.showHelp || (a.needSetup && a.setupForm != nil) {
		return a, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if a.activeTab == tabTools {
			a.tools.move(-1, len(a.mon.AllStats()))
		}
	case tea.MouseButtonWheelDown:
		if a.activeTab == tabTools {
			a.tools.move(1, len(a.mon.AllStats()))
		}
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
	}
	return a, nil
}

// tabAtX returns the tab index at the given column, or -1.
func (a App) tabAtX(x int) int {
	pos := components.TabBarOffset()
	for i := range components.Tabs {
		w := components.TabVisualWidth(i, i == a.activeTab)
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + 1 // separator
	}
	return -1
}

var windows = []int{1, 7, 30, 90, 365}

func prevWindow(days int) int {
	for i := len(windows) - 1; i >= 0; i-- {
		if windows[i] < days {
			return windows[i]
		}
	}
	return windows[0]
}

func nextWindow(days int) int {
	for _, w := range windows {
		if w > days {
			return w
		}
	}
	return windows[len(windows)-1]
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	switch {
	case a.width == 0:
		return ""
	case a.width < minTerminalWidth:
		return a.viewTooNarrow()
	case !a.loaded:
		return a.viewLoading()
	case a.needSetup && a.setupForm != nil:
		return a.setupForm.View()
	case a.showHelp:
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  toolmeter needs at least %d columns.\n",
		a.width, minTerminalWidth)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logo.Render("◈ toolmeter") + muted.Render(" · tool usage analytics"))
	b.WriteString("\n\n")
	if a.progressMax > 0 {
		barW := min(max(a.width-30, 20), 40)
		b.WriteString(a.spinner.View() + muted.Render(" Importing logs\n\n"))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
		b.WriteString("\n")
		b.WriteString(muted.Render(fmt.Sprintf("%s / %s files",
			cli.FormatNumber(int64(a.progress)), cli.FormatNumber(int64(a.progressMax)))))
	} else {
		b.WriteString(a.spinner.View() + muted.Render(" Loading events..."))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	bindings := []struct{ key, desc string }{
		{"o t a", "Jump to tab"},
		{"← →", "Previous / next tab"},
		{"[ ]", "Shrink / grow time window"},
		{"j k", "Move selection"},
		{"s", "Cycle rank key (Tools)"},
		{"r", "Refresh data"},
		{"R", "Toggle auto-refresh"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}

	var b strings.Builder
	b.WriteString(title.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, bind := range bindings {
		fmt.Fprintf(&b, "%s  %s\n", keyStyle.Render(fmt.Sprintf("%-8s", bind.key)), desc.Render(bind.desc))
	}
	b.WriteString("\n")
	b.WriteString(desc.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w, h, cw := a.width, a.height, a.contentWidth()

	pill := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	filter := pill.Render(" window ") + accent.Render(strconv.Itoa(a.days)+"d") +
		pill.Render(" │ ") + accent.Render(cli.FormatNumber(a.stats.TotalCalls)) + pill.Render(" calls ")
	header := components.RenderTabBar(a.activeTab, w) + "\n" +
		lipgloss.NewStyle().Background(t.Surface).Width(w).Render(filter)

	info := fmt.Sprintf("loaded in %.1fs", a.loadTime.Seconds())
	if a.loadErr != nil {
		info = "load error: " + a.loadErr.Error()
	}
	if a.saveErr != nil {
		info = "config not saved: " + a.saveErr.Error()
	}
	status := components.RenderStatusBar(w, info, len(a.firing()), a.refreshing, a.autoRefresh)

	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(status), minContentHeight)

	var content string
	switch a.activeTab {
	case tabOverview:
		content = a.renderOverviewTab(cw)
	case tabTools:
		content = a.renderToolsTab(cw, contentH)
	case tabAlerts:
		content = a.renderAlertsTab(cw)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	out := lipgloss.JoinVertical(lipgloss.Left, header, content, status)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, out,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Loading ────────────────────────────────────────────────────

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadDataCmd runs the load in a goroutine, streaming ProgressMsg updates
// and a final DataLoadedMsg through sub.
func loadDataCmd(opts Options, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}
			sub <- loadData(opts, progressFn)
		}()
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// refreshDataCmd reloads in the background without the progress UI.
func refreshDataCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{loadData(opts, nil)}
	}
}

// loadData imports opts.LogDir (if set) and reads the retained window
// plus one extra window for period-over-period comparison.
func loadData(opts Options, progressFn pipeline.ProgressFunc) DataLoadedMsg {
	start := time.Now()

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return DataLoadedMsg{Err: err, LoadTime: time.Since(start)}
	}
	defer func() { _ = st.Close() }()

	var imported int
	if opts.LogDir != "" {
		res, err := pipeline.Import(opts.LogDir, st, progressFn)
		if err != nil {
			return DataLoadedMsg{Err: err, LoadTime: time.Since(start)}
		}
		imported = res.Inserted
	}

	since := time.Now().AddDate(0, 0, -2*windows[len(windows)-1])
	events, err := st.LoadEvents(since)
	if err != nil {
		return DataLoadedMsg{Err: err, LoadTime: time.Since(start)}
	}
	alerts, err := st.LoadAlerts(100)
	if err != nil {
		return DataLoadedMsg{Err: err, LoadTime: time.Since(start)}
	}

	return DataLoadedMsg{
		Events:   events,
		Alerts:   alerts,
		Imported: imported,
		LoadTime: time.Since(start),
	}
}

// ─── Helpers ────────────────────────────────────────────────────

// chartDateLabels builds x-axis labels for a newest-first day series,
// returned oldest-left. Month boundaries get the month name.
func chartDateLabels(days []model.DailyStats) []string {
	n := len(days)
	labels := make([]string, n)
	prevMonth := time.Month(0)
	for i := n - 1; i >= 0; i-- {
		dt := days[i].Date
		idx := n - 1 - i
		if idx == 0 || dt.Month() != prevMonth {
			labels[idx] = dt.Format("Jan 2")
		} else {
			labels[idx] = strconv.Itoa(dt.Day())
		}
		prevMonth = dt.Month()
	}
	return labels
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line, lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}
