package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Import *.jsonl tool logs into the event store",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(_ *cobra.Command, args []string) error {
	dir := flagLogDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no log directory: pass one or set --log-dir")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	res, err := importLogs(st, dir)
	if err != nil {
		return err
	}
	total, err := st.EventCount()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Import",
		Headers: []string{"", "Count"},
		Rows: [][]string{
			{"Log files", cli.FormatNumber(int64(res.TotalFiles))},
			{"Servers", cli.FormatNumber(int64(res.ServerCount))},
			{"Unchanged", cli.FormatNumber(int64(res.Unchanged))},
			{"Reparsed", cli.FormatNumber(int64(res.Reparsed))},
			cli.SeparatorRow,
			{"New events", cli.FormatNumber(int64(res.Inserted))},
			{"Metric readings", cli.FormatNumber(int64(len(res.Metrics)))},
			{"Bad lines", cli.FormatNumber(int64(res.ParseErrors))},
			{"Unreadable files", cli.FormatNumber(int64(res.FileErrors))},
			cli.SeparatorRow,
			{"Events in store", cli.FormatNumber(int64(total))},
		},
	}))
	return nil
}
