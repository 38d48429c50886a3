package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := appCfg

	fmt.Printf("  Config file: %s\n", flagConfig)
	if _, err := os.Stat(flagConfig); err == nil {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Default days:   %d\n", cfg.General.DefaultDays)
	fmt.Printf("    Database:       %s\n", flagDBPath)
	if flagLogDir != "" {
		fmt.Printf("    Log directory:  %s\n", flagLogDir)
	}
	if cfg.General.RetentionDays > 0 {
		fmt.Printf("    Retention:      %dd\n", cfg.General.RetentionDays)
	}
	if cfg.General.RulesFile != "" {
		fmt.Printf("    Rules file:     %s\n", cfg.General.RulesFile)
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:        %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Check interval: %s\n", cfg.Daemon.Interval())
	fmt.Printf("    Events buffer:  %d\n", cfg.Daemon.EventsBuffer)
	if os.Getenv(config.EnvAddr) != "" {
		fmt.Printf("    (address from %s)\n", config.EnvAddr)
	}
	fmt.Println()

	fmt.Println("  [Logging]")
	fmt.Printf("    Level:  %s\n", cfg.Logging.Level)
	fmt.Printf("    Format: %s\n", cfg.Logging.Format)
	fmt.Println()

	fmt.Println("  [Telemetry]")
	fmt.Printf("    Provider: %s\n", cfg.Telemetry.Provider)
	if cfg.Telemetry.StatsdAddress != "" {
		fmt.Printf("    StatsD:   %s\n", cfg.Telemetry.StatsdAddress)
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	rules, err := cfg.AllRules()
	if err != nil {
		return err
	}
	fmt.Printf("  Alert rules: %d    Pricing entries: %d\n", len(rules), len(cfg.Pricing))
	fmt.Println()

	fmt.Println("  Run `toolmeter setup` to reconfigure.")
	return nil
}
