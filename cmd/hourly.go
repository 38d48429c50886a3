package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
)

var hourlyCmd = &cobra.Command{
	Use:   "hourly",
	Short: "Activity by hour of day",
	RunE:  runHourly,
}

func init() {
	rootCmd.AddCommand(hourlyCmd)
}

func runHourly(_ *cobra.Command, _ []string) error {
	events, _, err := loadEvents()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		noEvents()
		return nil
	}

	since, until := timeWindow()
	hours := pipeline.AggregateHourly(events, since, until)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("ACTIVITY BY HOUR  Last %dd (local time)", flagDays)))
	fmt.Println()

	maxCalls := 0
	peakHour := 0
	for _, h := range hours {
		if h.Calls > maxCalls {
			maxCalls = h.Calls
			peakHour = h.Hour
		}
	}

	for _, h := range hours {
		label := fmt.Sprintf("%02d:00", h.Hour)
		suffix := cli.FormatNumber(int64(h.Calls))
		if h.Failures > 0 {
			suffix += fmt.Sprintf(" (%d failed)", h.Failures)
		}
		fmt.Println(cli.RenderHorizontalBar(label, 5, float64(h.Calls), float64(maxCalls), 40, suffix))
	}

	fmt.Printf("\n  Peak: %02d:00 (%s calls)\n\n", peakHour, cli.FormatNumber(int64(maxCalls)))
	return nil
}
