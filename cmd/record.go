package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/toolmeter/internal/cli"
	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/daemon"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/remote"
)

var (
	flagRecordDuration time.Duration
	flagRecordFailed   bool
	flagRecordCost     float64
	flagRecordMeta     map[string]string
	flagRecordRemote   bool
)

var recordCmd = &cobra.Command{
	Use:   "record <tool>",
	Short: "Record one tool invocation",
	Long: "Record one tool invocation in the local store, or send it to a running\n" +
		"daemon with --remote. Cost is estimated from [[pricing]] when not given.",
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().DurationVar(&flagRecordDuration, "duration", 0, "Call duration (e.g. 120ms)")
	recordCmd.Flags().BoolVar(&flagRecordFailed, "failed", false, "Mark the call as failed")
	recordCmd.Flags().Float64Var(&flagRecordCost, "cost", 0, "Call cost in dollars")
	recordCmd.Flags().StringToStringVar(&flagRecordMeta, "meta", nil, "Metadata key=value pairs")
	recordCmd.Flags().BoolVar(&flagRecordRemote, "remote", false, "Send to the daemon instead of the local store")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	key := args[0]
	if flagRecordDuration < 0 || flagRecordCost < 0 {
		return errors.New("duration and cost must not be negative")
	}

	meta := make(map[string]any, len(flagRecordMeta))
	for k, v := range flagRecordMeta {
		meta[k] = v
	}
	costSet := cmd.Flags().Changed("cost")

	if flagRecordRemote {
		return recordRemote(cmd.Context(), key, meta, costSet)
	}

	prices, err := config.NewPriceTable(appCfg.Pricing)
	if err != nil {
		return err
	}
	cost := flagRecordCost
	if !costSet {
		cost = prices.CostAt(key, time.Now(), flagRecordDuration)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ev := pipeline.NewMonitor(nil).Record(key, flagRecordDuration, !flagRecordFailed, cost, meta)
	if err := st.SaveEvent(ev); err != nil {
		return fmt.Errorf("saving event: %w", err)
	}
	logger.Debug().Str("id", ev.ID).Str("tool", key).Msg("event recorded")

	printRecorded(ev)
	return nil
}

func recordRemote(ctx context.Context, key string, meta map[string]any, costSet bool) error {
	client := remote.NewClient(appCfg.Daemon.Addr)
	if client == nil {
		return errors.New("no daemon address configured")
	}

	success := !flagRecordFailed
	req := daemon.IngestRequest{
		Key:        key,
		DurationMs: float64(flagRecordDuration) / float64(time.Millisecond),
		Success:    &success,
		Metadata:   meta,
	}
	if costSet {
		req.Cost = &flagRecordCost
	}

	ev, err := client.Record(ctx, req)
	if err != nil {
		return remoteError(err)
	}
	printRecorded(*ev)
	return nil
}

func printRecorded(ev model.Event) {
	if flagQuiet {
		return
	}
	status := "ok"
	if !ev.Success {
		status = "failed"
	}
	fmt.Printf("  Recorded %s (%s, %s, %s)  id %s\n",
		ev.Key, cli.FormatDuration(ev.Duration), status, cli.FormatCost(ev.Cost), ev.ID)
}

// remoteError turns client errors into actionable messages.
func remoteError(err error) error {
	switch {
	case errors.Is(err, remote.ErrUnreachable):
		return fmt.Errorf("daemon at %s is not reachable; start it with `toolmeter daemon --detach`", appCfg.Daemon.Addr)
	case errors.Is(err, remote.ErrBadRequest):
		return err
	}
	return fmt.Errorf("daemon request failed: %w", err)
}

func parseReadings(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", k, err)
		}
		out[k] = f
	}
	return out, nil
}
