package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
)

var flagPruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored events and alerts older than the retention window",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&flagPruneDays, "older-than", 0, "Retention in days (default: general.retention_days, else 90)")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(_ *cobra.Command, _ []string) error {
	days := flagPruneDays
	if days == 0 {
		days = appCfg.General.RetentionDays
	}
	if days == 0 {
		days = 90
	}
	if days < 0 {
		return errors.New("--older-than must be positive")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := st.DeleteBefore(cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("  Removed %s events older than %s\n", cli.FormatNumber(n), cutoff.Format("2006-01-02"))
	return nil
}
