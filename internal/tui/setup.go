package tui

import (
	"errors"
	"fmt"
	"net"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

// SetupValues holds the answers collected by the setup form.
type SetupValues struct {
	Days         int
	Theme        string
	DaemonAddr   string
	LogDir       string
	StarterRules bool
}

func defaultSetupValues(days int) *SetupValues {
	cfg := config.DefaultConfig()
	return &SetupValues{
		Days:         days,
		Theme:        theme.Active.Name,
		DaemonAddr:   cfg.Daemon.Addr,
		StarterRules: true,
	}
}

// ValuesFromConfig seeds the form with existing settings.
func ValuesFromConfig(cfg config.Config) *SetupValues {
	return &SetupValues{
		Days:         cfg.General.DefaultDays,
		Theme:        cfg.Appearance.Theme,
		DaemonAddr:   cfg.Daemon.Addr,
		LogDir:       cfg.General.LogDir,
		StarterRules: len(cfg.Alerts) == 0,
	}
}

// NewSetupForm builds the first-run form. eventCount is shown in the intro.
func NewSetupForm(eventCount int, v *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], len(theme.All))
	for i, th := range theme.All {
		themeOpts[i] = huh.NewOption(th.Name, th.Name)
	}

	intro := "Let's set up a few things."
	if eventCount > 0 {
		intro = fmt.Sprintf("Found %s recorded tool calls. %s", cli.FormatNumber(int64(eventCount)), intro)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to toolmeter").
				Description(intro),
			huh.NewSelect[int]().
				Title("Default time window").
				Options(
					huh.NewOption("7 days", 7),
					huh.NewOption("30 days", 30),
					huh.NewOption("90 days", 90),
				).
				Value(&v.Days),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&v.Theme),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Event log directory").
				Description("Tool servers write *.jsonl logs here. Leave empty to skip imports.").
				Placeholder("~/.local/share/toolmeter/logs").
				Value(&v.LogDir),
			huh.NewInput().
				Title("Daemon listen address").
				Value(&v.DaemonAddr).
				Validate(validateAddr),
			huh.NewConfirm().
				Title("Add starter alert rules?").
				Description("p99 latency over 2s and error rate over 5%.").
				Value(&v.StarterRules),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(true)
}

func validateAddr(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("address is required")
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("want host:port: %w", err)
	}
	return nil
}

// StarterRules are offered by the setup form.
func StarterRules() []model.AlertRule {
	return []model.AlertRule{
		model.NewAlertRule("slow-p99", "p99", model.OpGreater, 2000),
		model.NewAlertRule("error-rate", "error_rate", model.OpGreater, 0.05),
	}
}

// ApplySetup copies form answers into cfg.
func ApplySetup(cfg *config.Config, v SetupValues) {
	if v.Days > 0 {
		cfg.General.DefaultDays = v.Days
	}
	if v.Theme != "" {
		cfg.Appearance.Theme = v.Theme
	}
	cfg.General.LogDir = strings.TrimSpace(v.LogDir)
	if addr := strings.TrimSpace(v.DaemonAddr); addr != "" {
		cfg.Daemon.Addr = addr
	}
	if v.StarterRules && len(cfg.Alerts) == 0 {
		for _, r := range StarterRules() {
			cfg.Alerts = append(cfg.Alerts, config.FromRule(r))
		}
	}
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		a.saveErr = a.saveSetupConfig()
		a.needSetup = false
		a.setupForm = nil
		a.recompute()
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

// saveSetupConfig applies the answers to this session and persists them.
// An unreadable config file is left untouched.
func (a *App) saveSetupConfig() error {
	path := a.opts.ConfigPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, loadErr := config.LoadFrom(path)
	if loadErr != nil {
		cfg = config.DefaultConfig()
	}
	ApplySetup(&cfg, *a.setupVals)

	a.days = cfg.General.DefaultDays
	theme.SetActive(cfg.Appearance.Theme)
	if rules, err := cfg.Rules(); err == nil && len(a.opts.Rules) == 0 {
		a.opts.Rules = rules
	}

	if loadErr != nil {
		return loadErr
	}
	if err := config.SaveTo(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
