package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Daily usage table",
	RunE:  runDaily,
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}

func runDaily(_ *cobra.Command, _ []string) error {
	events, _, err := loadEvents()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		noEvents()
		return nil
	}

	since, until := timeWindow()
	days := pipeline.AggregateDays(events, since, until)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("DAILY USAGE  Last %dd", flagDays)))
	fmt.Println()

	calls := make([]float64, len(days))
	rows := make([][]string, 0, len(days))
	for i, d := range days {
		calls[len(days)-1-i] = float64(d.Calls)
		avg := "-"
		if d.Calls > 0 {
			avg = cli.FormatDuration(d.TotalDuration / time.Duration(d.Calls))
		}
		rows = append(rows, []string{
			d.Date.Format("2006-01-02"),
			d.Date.Format("Mon"),
			cli.FormatNumber(int64(d.Calls)),
			cli.FormatNumber(int64(d.Failures)),
			avg,
			cli.FormatCost(d.Cost),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Day", "Calls", "Failures", "Avg", "Cost"},
		Rows:    rows,
	}))
	fmt.Printf("\n  %s\n\n", cli.RenderSparkline(calls))
	return nil
}
