package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/daemon"
	"github.com/theirongolddev/toolmeter/internal/logging"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/telemetry"
)

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the ingest and alerting daemon with HTTP/SSE endpoints",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	pf := daemonCmd.PersistentFlags()
	pf.StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default daemon.addr)")
	pf.DurationVar(&flagDaemonInterval, "interval", 0, "Alert check interval (default daemon.check_interval)")
	pf.IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Stream events kept in memory (default daemon.events_buffer)")
	pf.StringVar(&flagDaemonPIDFile, "pid-file", filepath.Join(pipeline.DataDir(), "toolmeterd.pid"), "PID file path")
	pf.StringVar(&flagDaemonLogFile, "log-file", filepath.Join(pipeline.DataDir(), "toolmeterd.log"), "Log file for detached mode")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

// daemonFlagDefaults fills unset daemon flags from the loaded config.
func daemonFlagDefaults() {
	if flagDaemonAddr == "" {
		flagDaemonAddr = appCfg.Daemon.Addr
	}
	if flagDaemonInterval <= 0 {
		flagDaemonInterval = appCfg.Daemon.Interval()
	}
	if flagDaemonEventsBuffer <= 0 {
		flagDaemonEventsBuffer = appCfg.Daemon.EventsBuffer
	}
}

func runDaemon(_ *cobra.Command, _ []string) error {
	daemonFlagDefaults()
	pf := pidFile(flagDaemonPIDFile)

	switch {
	case flagDaemonDetach && flagDaemonChild:
		return errors.New("--detach and --child are mutually exclusive")
	case flagDaemonDetach:
		return spawnDetached(pf)
	}
	return serveForeground(pf)
}

// spawnDetached re-executes the current command line as a background child
// writing to the log file.
func spawnDetached(pf pidFile) error {
	if err := pf.claimable(); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	for _, dir := range []string{filepath.Dir(pf.path()), filepath.Dir(flagDaemonLogFile)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	//nolint:gosec // log path is configured by the local user
	out, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	defer func() { _ = out.Close() }()

	child := exec.Command(exe, append(filterDetachArg(os.Args[1:]), "--child")...) //nolint:gosec // re-exec of self
	child.Stdout, child.Stderr = out, out
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  API: http://%s/v1/status\n", flagDaemonAddr)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

func serveForeground(pf pidFile) error {
	if err := pf.claim(daemonState{Addr: flagDaemonAddr, DBPath: flagDBPath}); err != nil {
		return err
	}
	defer pf.release()

	svc, cleanup, err := buildDaemon()
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("  toolmeter daemon listening on http://%s\n", flagDaemonAddr)
	fmt.Printf("  Checking rules every %s, storing to %s\n", flagDaemonInterval, flagDBPath)
	fmt.Printf("  Stop with: toolmeter daemon stop --pid-file %s\n", pf.path())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildDaemon wires the store, telemetry provider, pricing and rules into
// a daemon service. The monitor is seeded with the retained window so
// stats survive restarts.
func buildDaemon() (*daemon.Service, func(), error) {
	log := logging.Component(logger, "daemon")

	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	tel, err := telemetry.New(telemetry.Config{
		Provider:      telemetry.ProviderType(appCfg.Telemetry.Provider),
		StatsdAddress: appCfg.Telemetry.StatsdAddress,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = tel.Close()
		_ = st.Close()
	}

	prices, err := config.NewPriceTable(appCfg.Pricing)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	rules, err := appCfg.AllRules()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if flagLogDir != "" && !flagNoImport {
		if _, err := pipeline.Import(flagLogDir, st, nil); err != nil {
			log.Warn().Err(err).Str("dir", flagLogDir).Msg("initial import failed")
		}
	}
	since, _ := timeWindow()
	events, err := st.LoadEvents(since)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	mon := pipeline.NewMonitor(rules, pipeline.WithTelemetry(tel))
	mon.Replay(events)
	log.Info().Int("events", len(events)).Int("rules", len(rules)).Msg("monitor seeded")

	svc := daemon.New(daemon.Config{
		Addr:         flagDaemonAddr,
		Interval:     flagDaemonInterval,
		EventsBuffer: flagDaemonEventsBuffer,
		WatchPaths:   rulesPaths(),
		LoadRules:    reloadRules,
	}, mon,
		daemon.WithStore(st),
		daemon.WithTelemetry(tel),
		daemon.WithPrices(prices),
		daemon.WithLogger(log),
	)
	return svc, cleanup, nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	daemonFlagDefaults()
	pf := pidFile(flagDaemonPIDFile)

	pid, err := pf.pid()
	switch {
	case err != nil:
		fmt.Println("  Daemon: not running (no pid file)")
		return nil
	case !processAlive(pid):
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := flagDaemonAddr
	if st, err := pf.state(); err == nil && st.Addr != "" {
		addr = st.Addr
	}
	fmt.Printf("  Daemon PID: %d\n", pid)
	return printDaemonStatus(cmd.Context(), addr)
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pf := pidFile(flagDaemonPIDFile)
	pid, err := pf.pid()
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling daemon: %w", err)
	}

	for deadline := time.Now().Add(8 * time.Second); time.Now().Before(deadline); time.Sleep(150 * time.Millisecond) {
		if !processAlive(pid) {
			pf.release()
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
	}
	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

// filterDetachArg drops --detach so the child runs in the foreground.
func filterDetachArg(args []string) []string {
	return slices.DeleteFunc(slices.Clone(args), func(a string) bool {
		return a == "--detach" || strings.HasPrefix(a, "--detach=")
	})
}
