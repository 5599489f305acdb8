// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/capture"
	"github.com/Thermoquad/skylink/pkg/skylink"
)

var (
	replaySpeed   float64
	replayDir     string
	replayStats   bool
	replayQuiet   bool
	replayAnomaly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Decode a capture file recorded with --capture",
	Long: `Feed the recorded bytes of a capture file through the frame decoder.

Frames are printed the way "monitor" prints them. By default the bytes the
board sent (rx) are replayed; --dir tx replays what this end sent instead.
--speed 1 keeps the recorded timing, 0 replays as fast as possible.

Examples:
  skylink monitor --tcp localhost:5760 --capture flight.cbor
  skylink replay flight.cbor --stats`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Replay speed relative to the recording (0 for no delay)")
	replayCmd.Flags().StringVar(&replayDir, "dir", "rx", "Direction to replay (rx or tx)")
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print link statistics at the end")
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "Do not print frames")
	replayCmd.Flags().BoolVar(&replayAnomaly, "anomalies", false, "Print decoder anomalies as they occur")
}

// replaySink prints decoded events and, optionally, anomalies
type replaySink struct {
	quiet     bool
	anomalies bool
}

func (s replaySink) HandleEvent(ev skylink.Event) {
	if !s.quiet {
		fmt.Print(skylink.FormatEvent(ev))
	}
}

func (s replaySink) HandleAnomaly(v skylink.ValidationError) {
	if s.anomalies {
		fmt.Printf("! %s: %s\n", v.Type, v.Message)
	}
}

func parseDirection(s string) (capture.Direction, error) {
	switch s {
	case "rx":
		return capture.DirRX, nil
	case "tx":
		return capture.DirTX, nil
	}
	return 0, fmt.Errorf("unknown direction %q (want rx or tx)", s)
}

func runReplay(cmd *cobra.Command, args []string) error {
	dir, err := parseDirection(replayDir)
	if err != nil {
		return err
	}
	if replaySpeed < 0 {
		return errors.New("speed must not be negative")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := skylink.NewDispatcher(replaySink{quiet: replayQuiet, anomalies: replayAnomaly})
	n, err := capture.Replay(ctx, f, capture.ReplayOptions{Dir: dir, Speed: replaySpeed}, d.Feed)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay stopped after %d records: %w", n, err)
	}

	log.Info().Int("records", n).Str("dir", dir.String()).Msg("Replay finished")
	if replayStats {
		stats := d.Statistics()
		stats.CalculateRates()
		fmt.Print(stats.String())
	}
	return nil
}
