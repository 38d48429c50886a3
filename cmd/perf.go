package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/model"
)

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Latency percentiles overall and per tool",
	RunE:  runPerf,
}

func init() {
	rootCmd.AddCommand(perfCmd)
}

func runPerf(_ *cobra.Command, _ []string) error {
	events, _, err := loadEvents()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		noEvents()
		return nil
	}

	mon, err := windowMonitor(events)
	if err != nil {
		return err
	}
	overall := mon.Perf()
	if overall.Count == 0 {
		fmt.Println("\n  No tool calls in the selected time range.")
		return nil
	}
	byKey := mon.PerfByKey()

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	// Slowest tail first
	sort.Slice(keys, func(i, j int) bool {
		if byKey[keys[i]].P99 != byKey[keys[j]].P99 {
			return byKey[keys[i]].P99 > byKey[keys[j]].P99
		}
		return keys[i] < keys[j]
	})

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("LATENCY  Last %dd", flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(keys)+2)
	for _, k := range keys {
		rows = append(rows, perfRow(truncate(k, 28), byKey[k]))
	}
	rows = append(rows, cli.SeparatorRow, perfRow("all tools", overall))

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Tool", "Calls", "Min", "p50", "p95", "p99", "Max", "Std"},
		Rows:    rows,
	}))
	return nil
}

func perfRow(label string, p model.PerfSummary) []string {
	return []string{
		label,
		cli.FormatNumber(int64(p.Count)),
		cli.FormatMillis(p.Min),
		cli.FormatMillis(p.P50),
		cli.FormatMillis(p.P95),
		cli.FormatMillis(p.P99),
		cli.FormatMillis(p.Max),
		cli.FormatMillis(p.Std),
	}
}
