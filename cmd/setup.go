package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := fileCfg

	eventCount := 0
	if st, err := openStore(); err == nil {
		eventCount, _ = st.EventCount()
		_ = st.Close()
	}

	vals := tui.ValuesFromConfig(cfg)
	if err := tui.NewSetupForm(eventCount, vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}

	tui.ApplySetup(&cfg, *vals)
	if err := config.SaveTo(flagConfig, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", flagConfig)
	fmt.Println("  Run `toolmeter setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
