package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
)

var statsCmd = &cobra.Command{
	Use:   "stats [tool]",
	Short: "Usage summary, or detailed stats for one tool",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	events, _, err := loadEvents()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		noEvents()
		return nil
	}

	if len(args) == 1 {
		return runToolStats(events, args[0])
	}

	since, until := timeWindow()
	stats := pipeline.Aggregate(events, since, until)
	if stats.TotalCalls == 0 {
		fmt.Println("\n  No tool calls in the selected time range.")
		return nil
	}
	prevStats := pipeline.Aggregate(events, since.Add(-until.Sub(since)), since)

	mon, err := windowMonitor(events)
	if err != nil {
		return err
	}
	perf := mon.Perf()

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("TOOL USAGE  Last %dd", flagDays)))
	fmt.Println()

	rows := [][]string{
		{"Calls", cli.FormatNumber(stats.TotalCalls)},
		{"Failures", cli.FormatNumber(stats.TotalFailures)},
		{"Success Rate", cli.FormatPercent(stats.SuccessRate)},
		{"Tools", cli.FormatNumber(int64(stats.UniqueTools))},
		{"Active Days", cli.FormatNumber(int64(stats.ActiveDays))},
		cli.SeparatorRow,
		{"Total Time", cli.FormatDuration(stats.TotalDuration)},
		{"Avg Latency", cli.FormatDuration(stats.AvgDuration)},
		{"p50 / p95 / p99", fmt.Sprintf("%s / %s / %s",
			cli.FormatMillis(perf.P50), cli.FormatMillis(perf.P95), cli.FormatMillis(perf.P99))},
		cli.SeparatorRow,
		{"Cost", cli.FormatCost(stats.TotalCost)},
	}

	costDay := cli.FormatCost(stats.CostPerDay) + "/day"
	if prevStats.CostPerDay > 0 {
		costDay += fmt.Sprintf("  (%s vs prev %dd)", cli.FormatDelta(stats.CostPerDay, prevStats.CostPerDay), flagDays)
	}
	callsDay := fmt.Sprintf("%.1f", stats.CallsPerDay)
	if prevStats.CallsPerDay > 0 {
		callsDay += fmt.Sprintf("  (%s)", cli.FormatDelta(stats.CallsPerDay, prevStats.CallsPerDay))
	}
	rows = append(rows,
		[]string{"Cost/day", costDay},
		[]string{"Calls/day", callsDay},
	)

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))
	return nil
}

func runToolStats(events []model.Event, key string) error {
	mon, err := windowMonitor(events)
	if err != nil {
		return err
	}

	all := mon.AllStats()
	s, ok := all[key]
	if !ok {
		return fmt.Errorf("no calls to %q in the last %dd", key, flagDays)
	}
	p := mon.PerfByKey()[key]

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("%s  Last %dd", key, flagDays)))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Calls", cli.FormatNumber(s.Count)},
			{"Errors", cli.FormatNumber(s.ErrorCount())},
			{"Success Rate", cli.FormatPercent(s.SuccessRate())},
			cli.SeparatorRow,
			{"Avg", cli.FormatDuration(s.AvgDuration())},
			{"Min / Max", cli.FormatMillis(p.Min) + " / " + cli.FormatMillis(p.Max)},
			{"Std Dev", cli.FormatMillis(p.Std)},
			{"p50", cli.FormatMillis(p.P50)},
			{"p95", cli.FormatMillis(p.P95)},
			{"p99", cli.FormatMillis(p.P99)},
			cli.SeparatorRow,
			{"Cost", cli.FormatCost(s.TotalCost)},
		},
	}))
	return nil
}
