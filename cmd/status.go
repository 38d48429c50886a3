package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/remote"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live status of a running daemon",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return printDaemonStatus(cmd.Context(), appCfg.Daemon.Addr)
}

// printDaemonStatus queries the daemon at addr and renders its status.
func printDaemonStatus(ctx context.Context, addr string) error {
	client := remote.NewClient(addr)
	if client == nil {
		fmt.Println("  No daemon address configured.")
		return nil
	}

	st, err := client.Status(ctx)
	if err != nil {
		fmt.Printf("  API status: %v\n", remoteError(err))
		return nil
	}

	lastCheck := "pending"
	if !st.LastCheckAt.IsZero() {
		lastCheck = st.LastCheckAt.Local().Format(time.RFC3339)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("DAEMON STATUS"))
	fmt.Println()

	rows := [][]string{
		{"Address", "http://" + addr},
		{"Uptime", cli.FormatDuration(time.Since(st.StartedAt).Truncate(time.Second))},
		{"Check interval", cli.FormatDuration(time.Duration(st.CheckIntervalSec) * time.Second)},
		{"Last check", lastCheck},
		{"Checks", cli.FormatNumber(st.CheckCount)},
		cli.SeparatorRow,
		{"Events", cli.FormatNumber(st.Summary.Events)},
		{"Tools", cli.FormatNumber(int64(st.Summary.Tools))},
		{"Success rate", cli.FormatPercent(st.Summary.SuccessRate)},
		{"p50 / p95 / p99", fmt.Sprintf("%s / %s / %s",
			cli.FormatMillis(st.Summary.P50), cli.FormatMillis(st.Summary.P95), cli.FormatMillis(st.Summary.P99))},
		{"Cost", cli.FormatCost(st.Summary.TotalCost)},
		cli.SeparatorRow,
		{"Rules", cli.FormatNumber(int64(st.Rules))},
		{"Alerts fired", cli.FormatNumber(st.AlertsFired)},
		{"Stream subscribers", cli.FormatNumber(int64(st.SubscriberCount))},
	}
	if st.LastError != "" {
		rows = append(rows, []string{"Last error", st.LastError})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"", "Value"},
		Rows:    rows,
	}))
	return nil
}
