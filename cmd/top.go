package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
)

var (
	flagTopLimit int
	flagTopBy    string
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Most used, most expensive, or slowest tools",
	RunE:  runTop,
}

func init() {
	topCmd.Flags().IntVarP(&flagTopLimit, "limit", "l", 10, "Number of tools to show")
	topCmd.Flags().StringVar(&flagTopBy, "by", pipeline.RankByCount, "Rank by count, cost, or duration")
	rootCmd.AddCommand(topCmd)
}

func runTop(_ *cobra.Command, _ []string) error {
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
	top, err := mon.TopTools(flagTopLimit, flagTopBy)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("\n  No tool calls in the selected time range.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("TOP TOOLS BY %s  Last %dd", flagTopBy, flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(top))
	for i, s := range top {
		rows = append(rows, []string{
			strconv.Itoa(i+1) + ". " + truncate(s.Key, 28),
			cli.FormatNumber(s.Count),
			cli.FormatPercent(s.SuccessRate()),
			cli.FormatDuration(s.AvgDuration()),
			cli.FormatDuration(s.TotalDuration),
			cli.FormatCost(s.TotalCost),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Tool", "Calls", "Success", "Avg", "Total Time", "Cost"},
		Rows:    rows,
	}))
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
