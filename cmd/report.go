package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/remote"
)

var (
	flagReportOutput string
	flagReportRemote bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analytics report as JSON",
	Long:  "Print tool stats, the overall latency summary and the alerts fired by one\nrule check, as JSON.",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&flagReportOutput, "output", "o", "", "Write to file instead of stdout")
	reportCmd.Flags().BoolVar(&flagReportRemote, "remote", false, "Fetch the daemon's live report")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	var report model.Report
	if flagReportRemote {
		client := remote.NewClient(appCfg.Daemon.Addr)
		if client == nil {
			return errors.New("no daemon address configured")
		}
		r, err := client.Report(cmd.Context())
		if err != nil {
			return remoteError(err)
		}
		report = *r
	} else {
		events, readings, err := loadEvents()
		if err != nil {
			return err
		}
		mon, err := windowMonitor(events)
		if err != nil {
			return err
		}
		mon.Check(readings)
		report = mon.Report()
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	if flagReportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(flagReportOutput, data, 0o600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Wrote %s\n", flagReportOutput)
	}
	return nil
}
