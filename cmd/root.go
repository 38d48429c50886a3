// Package cmd implements the toolmeter CLI commands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/logging"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/store"
)

var (
	flagDays     int
	flagTool     string
	flagServer   string
	flagDBPath   string
	flagLogDir   string
	flagConfig   string
	flagNoImport bool
	flagQuiet    bool
)

// Loaded once per invocation by the root pre-run hook. fileCfg is the
// config as written on disk; appCfg adds environment overrides and is
// never saved.
var (
	fileCfg config.Config
	appCfg  config.Config
	logger  = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:               "toolmeter",
	Short:             "Tool invocation analytics and alerting",
	Long:              "Track tool server calls: usage, latency percentiles, costs, and threshold alerts.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runStats,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 30, "Time window in days")
	rootCmd.PersistentFlags().StringVarP(&flagTool, "tool", "t", "", "Filter to tool key (substring match)")
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "Filter to server (substring match)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Event database path (default "+pipeline.DefaultDBPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "Directory of *.jsonl tool logs to import")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.ConfigPath(), "Config file")
	rootCmd.PersistentFlags().BoolVar(&flagNoImport, "no-import", false, "Skip importing logs, read the store only")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

// loadConfig reads the config file and fills flags the user left unset.
func loadConfig(cmd *cobra.Command, _ []string) error {
	file, err := config.LoadFrom(flagConfig)
	if err != nil {
		return err
	}
	fileCfg = file
	appCfg = file.WithEnv()
	cfg := appCfg

	flags := cmd.Flags()
	if !flags.Changed("days") && cfg.General.DefaultDays > 0 {
		flagDays = cfg.General.DefaultDays
	}
	if flagDBPath == "" {
		flagDBPath = cfg.General.DBPath
	}
	if flagDBPath == "" {
		flagDBPath = pipeline.DefaultDBPath()
	}
	if flagLogDir == "" {
		flagLogDir = cfg.General.LogDir
	}

	level := cfg.Logging.Level
	if flagQuiet {
		level = "error"
	}
	logger = logging.New(logging.Config{Level: level, Format: cfg.Logging.Format}, os.Stderr)
	return nil
}

// openStore opens the event database at the resolved path.
func openStore() (*store.Store, error) {
	return store.Open(flagDBPath, store.WithLogger(logging.Component(logger, "store")))
}

// loadEvents is the shared data loading path used by the report commands.
// It imports the log directory into the store, unless disabled, and returns
// the events from the current and previous windows with filters applied.
func loadEvents() ([]model.Event, map[string]float64, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = st.Close() }()

	var readings map[string]float64
	if flagLogDir != "" && !flagNoImport {
		res, err := importLogs(st, flagLogDir)
		if err != nil {
			return nil, nil, err
		}
		readings = res.Metrics
	}

	since, _ := timeWindow()
	events, err := st.LoadEvents(since.AddDate(0, 0, -flagDays))
	if err != nil {
		return nil, nil, err
	}

	events = pipeline.FilterByKey(events, flagTool)
	events = pipeline.FilterByServer(events, flagServer)
	return events, readings, nil
}

func importLogs(st *store.Store, dir string) (*pipeline.ImportResult, error) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning %s...\n", dir)
	}

	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%25 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Parsing [%d/%d]", current, total)
		}
	}

	res, err := pipeline.Import(dir, st, progressFn)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Int("files", res.TotalFiles).
		Int("reparsed", res.Reparsed).
		Int("inserted", res.Inserted).
		Int("parse_errors", res.ParseErrors).
		Msg("import finished")

	if !flagQuiet && res.TotalFiles > 0 {
		fmt.Fprintf(os.Stderr, "\r  %d unchanged + %d reparsed, %s new events (%d servers)    \n",
			res.Unchanged, res.Reparsed, cli.FormatNumber(int64(res.Inserted)), res.ServerCount)
	}
	return res, nil
}

// timeWindow returns [now-days, now).
func timeWindow() (time.Time, time.Time) {
	now := time.Now()
	return now.AddDate(0, 0, -flagDays), now
}

// windowMonitor replays the events of the current window into a monitor
// carrying the configured rules.
func windowMonitor(events []model.Event) (*pipeline.Monitor, error) {
	rules, err := appCfg.AllRules()
	if err != nil {
		return nil, err
	}
	since, until := timeWindow()
	mon := pipeline.NewMonitor(rules)
	mon.Replay(pipeline.FilterByTime(events, since, until))
	return mon, nil
}

func noEvents() {
	fmt.Println("\n  No tool calls recorded.")
	if flagLogDir == "" {
		fmt.Println("  Record one with `toolmeter record`, or point --log-dir at your tool logs.")
	}
}
