package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/tui"
	"github.com/theirongolddev/toolmeter/internal/tui/theme"
)

var flagTUIAutoRefresh bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().BoolVar(&flagTUIAutoRefresh, "auto-refresh", true, "Reload data every 30s")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	theme.SetActive(appCfg.Appearance.Theme)

	// Force TrueColor so background styling always produces ANSI codes.
	lipgloss.SetColorProfile(termenv.TrueColor)

	rules, err := appCfg.AllRules()
	if err != nil {
		return err
	}

	logDir := flagLogDir
	if flagNoImport {
		logDir = ""
	}
	_, statErr := os.Stat(flagConfig)

	app := tui.NewApp(tui.Options{
		DBPath:      flagDBPath,
		LogDir:      logDir,
		Days:        flagDays,
		Rules:       rules,
		AutoRefresh: flagTUIAutoRefresh,
		NeedSetup:   os.IsNotExist(statErr),
		ConfigPath:  flagConfig,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
