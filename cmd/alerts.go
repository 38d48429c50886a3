package cmd

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/remote"
)

var (
	flagAlertsLimit    int
	flagAlertsReadings map[string]string
	flagAlertsRemote   bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Recently fired alerts",
	RunE:  runAlertsHistory,
}

var alertsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate alert rules against the current window",
	RunE:  runAlertsCheck,
}

var alertsRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List configured alert rules",
	RunE:  runAlertsRules,
}

func init() {
	alertsCmd.Flags().IntVar(&flagAlertsLimit, "limit", 20, "Number of alerts to show")
	alertsCheckCmd.Flags().StringToStringVar(&flagAlertsReadings, "reading", nil, "Extra metric readings name=value")
	alertsCheckCmd.Flags().BoolVar(&flagAlertsRemote, "remote", false, "Ask the daemon to check its rules")

	alertsCmd.AddCommand(alertsCheckCmd)
	alertsCmd.AddCommand(alertsRulesCmd)
	rootCmd.AddCommand(alertsCmd)
}

func runAlertsHistory(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	alerts, err := st.LoadAlerts(flagAlertsLimit)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("ALERT HISTORY"))
	fmt.Println()
	if len(alerts) == 0 {
		fmt.Println(cli.RenderMuted("  No alerts have fired."))
		return nil
	}

	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			a.TriggeredAt.Local().Format("2006-01-02 15:04:05"),
			a.Rule,
			a.Metric,
			cli.FormatValue(a.Value),
			cli.FormatValue(a.Threshold),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Time", "Rule", "Metric", "Value", "Threshold"},
		Rows:    rows,
	}))
	return nil
}

func runAlertsCheck(cmd *cobra.Command, _ []string) error {
	extra, err := parseReadings(flagAlertsReadings)
	if err != nil {
		return err
	}

	var fired []model.Alert
	if flagAlertsRemote {
		client := remote.NewClient(appCfg.Daemon.Addr)
		if client == nil {
			return errors.New("no daemon address configured")
		}
		if len(extra) > 0 {
			if err := client.PushReadings(cmd.Context(), extra); err != nil {
				return remoteError(err)
			}
		}
		if fired, err = client.Check(cmd.Context()); err != nil {
			return remoteError(err)
		}
	} else {
		if fired, err = checkLocal(extra); err != nil {
			return err
		}
	}

	fmt.Println()
	if len(fired) == 0 {
		fmt.Println(cli.RenderOK("  All rules within thresholds."))
		return nil
	}
	for _, a := range fired {
		fmt.Println("  " + cli.RenderAlert(a))
	}
	fmt.Println()
	return nil
}

// checkLocal evaluates the rules once over the stored window and saves
// what fires. Readings found in the imported logs are merged first, then
// the explicit ones.
func checkLocal(extra map[string]float64) ([]model.Alert, error) {
	events, readings, err := loadEvents()
	if err != nil {
		return nil, err
	}
	mon, err := windowMonitor(events)
	if err != nil {
		return nil, err
	}
	if len(mon.Rules()) == 0 {
		return nil, errors.New("no alert rules configured; add [[alerts]] to " + flagConfig)
	}

	all := make(map[string]float64, len(readings)+len(extra))
	maps.Copy(all, readings)
	maps.Copy(all, extra)
	fired := mon.Check(all)

	if len(fired) > 0 {
		st, err := openStore()
		if err != nil {
			return nil, err
		}
		defer func() { _ = st.Close() }()
		for _, a := range fired {
			if err := st.SaveAlert(a); err != nil {
				return nil, fmt.Errorf("saving alert: %w", err)
			}
			logger.Warn().Str("rule", a.Rule).Float64("value", a.Value).Msg("alert fired")
		}
	}
	return fired, nil
}

func runAlertsRules(_ *cobra.Command, _ []string) error {
	rules, err := appCfg.AllRules()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("ALERT RULES"))
	fmt.Println()
	if len(rules) == 0 {
		fmt.Println(cli.RenderMuted("  No rules configured. Run `toolmeter setup` to add starter rules."))
		return nil
	}

	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{
			r.Name,
			r.Metric,
			r.Operator.Symbol() + " " + cli.FormatValue(r.Threshold),
			formatCooldown(r.Cooldown),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Rule", "Metric", "Condition", "Cooldown"},
		Rows:    rows,
	}))

	if appCfg.General.RulesFile != "" {
		fmt.Printf("\n  Rules file: %s\n", appCfg.General.RulesFile)
	}
	fmt.Printf("  Config: %s\n", flagConfig)
	return nil
}

func formatCooldown(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return cli.FormatDuration(d)
}

// rulesPaths lists the files the daemon watches for rule changes.
func rulesPaths() []string {
	paths := []string{flagConfig}
	if appCfg.General.RulesFile != "" {
		paths = append(paths, appCfg.General.RulesFile)
	}
	return paths
}

// reloadRules re-reads the config file and returns every rule it names.
func reloadRules() ([]model.AlertRule, error) {
	cfg, err := config.LoadFrom(flagConfig)
	if err != nil {
		return nil, err
	}
	return cfg.AllRules()
}
