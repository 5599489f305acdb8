// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded frames in human-readable format",
	Long: `Continuously decode and display Skylink frames as they arrive.

Each frame is shown with timestamp, frame type and decoded payload. Segmented
records are shown once reassembled. Nothing is sent to the board.

Supports serial, WebSocket and TCP connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&cfg.CapturePath, "capture", "", "Also record the raw traffic to a capture file")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	l, err := OpenLink()
	if err != nil {
		return err
	}

	fl := newFrameListener(skylink.DispatcherFunc(func(ev skylink.Event) {
		fmt.Print(skylink.FormatEvent(ev))
	}))
	l.SetListener(fl)
	if err := l.Connect(); err != nil {
		return err
	}
	defer l.Close()

	fmt.Printf("Skylink - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", l.name)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-fl.errs:
		log.Error().Err(err).Msg("Read error")
	case <-fl.done:
		log.Info().Msg("Connection closed")
	}
	return nil
}
