// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/session"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure link latency through a session",
	Long: `Connect a session and report the ping task measurements.

The session runs the full connect handshake, then the ping task sends a random
key at --ping-freq and the board echoes it back. Each echo reports half the
round trip as the one-way delay.

This is useful for verifying:
  - the board accepts our protocol version
  - calibration is exchanged and the application loop starts
  - bidirectional frame flow works

Exit codes:
  0 - All pings answered
  1 - Session failed or a ping timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to wait for")
}

func runPing(cmd *cobra.Command, args []string) error {
	l, err := OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnectionError)
	}

	m, sched := newManager()
	defer sched.StopAll()

	events := make(chan session.Event, 64)
	unsubscribe := m.Subscribe(session.ListenerFunc(func(ev session.Event) {
		switch ev.Type {
		case session.EventConnected, session.EventDisconnected, session.EventError, session.EventPingUpdated:
			select {
			case events <- ev:
			default:
			}
		}
	}))
	defer unsubscribe()

	fmt.Printf("Skylink - Ping Test\n")
	fmt.Printf("Connection: %s\n", l.name)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	if err := m.Connect(l); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnectionError)
	}
	defer l.Close()

	successCount := 0
	connected := false
	var total time.Duration
	for successCount < pingCount {
		select {
		case ev := <-events:
			switch ev.Type {
			case session.EventConnected:
				connected = true
				fmt.Printf("Session established\n")
			case session.EventPingUpdated:
				delay, _ := ev.Data.(time.Duration)
				successCount++
				total += delay
				fmt.Printf("Ping %d/%d: delay=%v\n", successCount, pingCount, delay.Round(time.Microsecond))
			case session.EventError:
				fmt.Printf("ERROR: %v\n", ev.Err)
			case session.EventDisconnected:
				fmt.Printf("Session closed\n")
				pingSummary(successCount, total)
				os.Exit(exitTestFailed)
			}

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			if !connected {
				fmt.Printf("TIMEOUT (no session in %ds)\n", pingTimeout)
			} else {
				fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			}
			pingSummary(successCount, total)
			m.Disconnect()
			os.Exit(exitTestFailed)
		}
	}

	pingSummary(successCount, total)
	if err := m.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("Disconnect failed")
	}
	waitDisconnected(events, 2*time.Second)
	return nil
}

func pingSummary(received int, total time.Duration) {
	fmt.Printf("\n--- Ping statistics ---\n")
	lost := pingCount - received
	fmt.Printf("%d pings expected, %d responses received, %.0f%% packet loss\n",
		pingCount, received, float64(lost)/float64(pingCount)*100)
	if received > 0 {
		fmt.Printf("average delay %v\n", (total / time.Duration(received)).Round(time.Microsecond))
	}
}

// waitDisconnected drains events until DISCONNECTED or timeout
func waitDisconnected(events <-chan session.Event, timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if ev.Type == session.EventDisconnected {
				return
			}
		case <-deadline:
			return
		}
	}
}
