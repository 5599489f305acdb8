// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid Skylink frame",
	Long: `Wait for a valid Skylink frame on the connection until timeout.

This command connects to a serial port, WebSocket or TCP endpoint and waits for
any frame passing its CRC check. Bytes that do not form a valid frame are
skipped and counted. Nothing is sent to the board.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing that a board is streaming telemetry.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	l, err := OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnectionError)
	}

	type received struct {
		msg     *skylink.Message
		skipped uint64
	}
	frames := make(chan received, 1)
	var fl *frameListener
	fl = newFrameListener(skylink.DispatcherFunc(func(ev skylink.Event) {
		if m, ok := ev.(*skylink.MessageEvent); ok {
			select {
			case frames <- received{m.Message, fl.dispatcher.Failures()}:
			default:
			}
		}
	}))
	l.SetListener(fl)
	if err := l.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnectionError)
	}
	defer l.Close()

	fmt.Printf("Skylink - Packet Test\n")
	fmt.Printf("Connection: %s\n", l.name)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid Skylink frame...\n\n")

	select {
	case r := <-frames:
		m := r.msg
		if r.skipped > 0 {
			fmt.Printf("(skipped %d invalid frames before sync)\n", r.skipped)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s\n", m.Type())
		fmt.Printf("  Length: %d bytes\n", m.Size())
		fmt.Printf("  CRC: 0x%04X\n", m.CRC())
		fmt.Print(skylink.FormatPayload(m))
		l.Close()
		os.Exit(exitOK)

	case err := <-fl.errs:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(exitConnectionError)

	case <-fl.done:
		fmt.Fprintf(os.Stderr, "Connection closed\n")
		os.Exit(exitConnectionError)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(exitTestFailed)
	}

	return nil
}
