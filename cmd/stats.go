// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Detect and analyze framing errors and malformed frames",
	Long: `Track framing failures, malformed frames and anomalous values with statistics.

This command validates each recovered frame and detects:
  - CRC errors and preamble collisions (frames cut short by a new frame)
  - Segmented payload anomalies (chunk index errors, interleaved records)
  - Malformed frames (unknown commands or parameters, length mismatches)
  - Non-finite telemetry and out of range coordinates
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	statsCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	statsCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// statsReport is one dispatcher outcome together with the counters after it.
// event is nil for framing anomalies.
type statsReport struct {
	time     time.Time
	event    skylink.Event
	problems []skylink.ValidationError
	stats    skylink.Statistics
	invalid  uint64
}

// statsSink validates what the dispatcher recovers and hands a report with a
// copy of the counters to report. It runs on the transport reader goroutine.
type statsSink struct {
	fl      *frameListener
	report  func(statsReport)
	invalid uint64
}

func newStatsSink(report func(statsReport)) *statsSink {
	s := &statsSink{report: report}
	s.fl = newFrameListener(s)
	return s
}

// HandleEvent implements skylink.DispatcherListener
func (s *statsSink) HandleEvent(ev skylink.Event) {
	var problems []skylink.ValidationError
	switch e := ev.(type) {
	case *skylink.MessageEvent:
		problems = skylink.ValidateMessage(e.Message)
	case *skylink.PayloadEvent:
		problems = skylink.ValidatePayload(e.Data)
	}

	stats := s.fl.dispatcher.Statistics()
	for _, p := range problems {
		stats.RecordAnomaly(p)
	}
	if len(problems) > 0 {
		s.invalid++
	}
	s.emit(ev, problems)
}

// HandleAnomaly implements skylink.AnomalyListener
func (s *statsSink) HandleAnomaly(v skylink.ValidationError) {
	s.emit(nil, []skylink.ValidationError{v})
}

func (s *statsSink) emit(ev skylink.Event, problems []skylink.ValidationError) {
	s.report(statsReport{
		time:     time.Now(),
		event:    ev,
		problems: problems,
		stats:    *s.fl.dispatcher.Statistics(),
		invalid:  s.invalid,
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	l, err := OpenLink()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if useTUI {
		return runTUIMode(ctx, l)
	}
	return runTextMode(ctx, l)
}

// isPing reports whether ev is a ping answer, which text mode always shows
func isPing(ev skylink.Event) bool {
	s, ok := skylink.SignalOf(ev)
	return ok && s.Command == skylink.CmdPingValue
}

// printValidationErrors prints the problems of one report
func printValidationErrors(r statsReport) {
	timestamp := r.time.Format("15:04:05.000")

	if r.event == nil {
		for _, v := range r.problems {
			fmt.Printf("[%s] \033[1;31m%s:\033[0m %s\n", timestamp, v.Type, v.Message)
		}
		fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
		return
	}

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s\n", timestamp, r.event)
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, v := range r.problems {
		switch v.Type {
		case skylink.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, v.Message)
			if length, ok := v.Details["length"].(int); ok {
				if expected, ok := v.Details["expected"].(int); ok {
					fmt.Printf("    Length: received=%d, expected=%d\n", length, expected)
				}
			}

		case skylink.AnomalyUnknownCommand, skylink.AnomalyUnknownParameter, skylink.AnomalyRecordCRC:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, v.Message)

		case skylink.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, v.Message)
			if field, ok := v.Details["field"].(string); ok {
				fmt.Printf("    Field: %s\n", field)
			}

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, v.Message)
		}
	}

	if me, ok := r.event.(*skylink.MessageEvent); ok {
		fmt.Print(skylink.FormatPayload(me.Message))
	}
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runTUIMode runs the statistics view as a bubbletea program
func runTUIMode(ctx context.Context, l *link) error {
	m := initialModel(l.name, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	sink := newStatsSink(func(r statsReport) {
		p.Send(statsMsg(r))
	})
	l.SetListener(sink.fl)
	if err := l.Connect(); err != nil {
		return err
	}
	defer l.Close()

	go func() {
		select {
		case err := <-sink.fl.errs:
			p.Send(linkDownMsg{err: err})
		case <-sink.fl.done:
			p.Send(linkDownMsg{})
		case <-ctx.Done():
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// runTextMode prints errors as they happen and periodic summaries
func runTextMode(ctx context.Context, l *link) error {
	reports := make(chan statsReport, 64)
	sink := newStatsSink(func(r statsReport) {
		select {
		case reports <- r:
		case <-ctx.Done():
		}
	})
	l.SetListener(sink.fl)
	if err := l.Connect(); err != nil {
		return err
	}
	defer l.Close()

	fmt.Printf("Skylink - Link Statistics\n")
	fmt.Printf("Connection: %s\n", l.name)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// framing failures before the first good frame are line noise
	synchronized := false
	skipped := 0
	var last skylink.Statistics
	last.StartTime = time.Now()

	for {
		select {
		case r := <-reports:
			last = r.stats
			if r.event == nil && !synchronized {
				skipped++
				continue
			}
			if !synchronized {
				synchronized = true
				if skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after %d framing failures\n\n", skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			switch {
			case len(r.problems) > 0:
				printValidationErrors(r)
			case isPing(r.event):
				fmt.Printf("[%s] \033[1;32m%s\033[0m\n\n", r.time.Format("15:04:05.000"), r.event)
			case showAll:
				fmt.Print(skylink.FormatEvent(r.event))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(last.String())
			fmt.Println()

		case err := <-sink.fl.errs:
			log.Error().Err(err).Msg("Read error")
			fmt.Print(last.String())
			return nil

		case <-sink.fl.done:
			log.Info().Msg("Connection closed")
			fmt.Print(last.String())
			return nil

		case <-ctx.Done():
			fmt.Println()
			fmt.Print(last.String())
			return nil
		}
	}
}
