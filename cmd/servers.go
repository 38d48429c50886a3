package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Usage ranking by tool server",
	RunE:  runServers,
}

func init() {
	rootCmd.AddCommand(serversCmd)
}

func runServers(_ *cobra.Command, _ []string) error {
	events, _, err := loadEvents()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		noEvents()
		return nil
	}

	since, until := timeWindow()
	servers := pipeline.AggregateServers(events, since, until)
	if len(servers) == 0 {
		fmt.Println("\n  No server data in the selected time range.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SERVERS  Last %dd", flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(servers))
	for _, ss := range servers {
		rows = append(rows, []string{
			truncate(ss.Server, 24),
			cli.FormatNumber(int64(len(ss.Tools))),
			cli.FormatNumber(int64(ss.Calls)),
			cli.FormatNumber(int64(ss.Failures)),
			fmt.Sprintf("%.1f%%", ss.SharePercent),
			cli.FormatCost(ss.Cost),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Server", "Tools", "Calls", "Failures", "Share", "Cost"},
		Rows:    rows,
	}))
	return nil
}
