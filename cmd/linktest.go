// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test raw link stability",
	Long: `Test the link without starting a session.

This command connects and just listens for the given duration, logging the
frames received and any transport errors. Useful for debugging connection
stability issues on serial adapters and WebSocket bridges.

Exit codes:
  0 - Test completed normally
  1 - Test failed (link dropped)
  2 - Connection error`,
	RunE: runLinkTest,
}

var linkTestDuration int

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	l, err := OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnectionError)
	}

	var frames, failures atomic.Uint64
	var fl *frameListener
	fl = newFrameListener(skylink.DispatcherFunc(func(ev skylink.Event) {
		frames.Add(1)
		failures.Store(fl.dispatcher.Failures())
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), ev)
	}))
	l.SetListener(fl)
	if err := l.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnectionError)
	}
	defer l.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", l.name)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)
	fmt.Printf("Listening for frames...\n\n")

	start := time.Now()
	endTime := start.Add(time.Duration(linkTestDuration) * time.Second)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	result := func(verdict string) {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Frames received: %d\n", frames.Load())
		fmt.Printf("Framing failures: %d\n", failures.Load())
		fmt.Printf("Result: %s\n", verdict)
	}

	for time.Now().Before(endTime) {
		select {
		case err := <-fl.errs:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			result("FAILED (connection error)")
			os.Exit(exitTestFailed)

		case <-fl.done:
			fmt.Printf("\n[%s] Connection closed by peer\n", time.Now().Format("15:04:05.000"))
			result("FAILED (connection closed)")
			os.Exit(exitTestFailed)

		case <-heartbeat.C:
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	result("PASSED (connection stable)")
	return nil
}
