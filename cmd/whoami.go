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

var whoAmITimeout int

var whoAmICmd = &cobra.Command{
	Use:   "whoami",
	Short: "Ask the board for its type",
	Long: `Send WHO_AM_I_VALUE:START and wait for the board type reply.

The board answers before any session is started and closes the link shortly
after, so this can be used to identify hardware without connecting.

Examples:
  skylink whoami --port /dev/ttyUSB0
  skylink whoami --tcp 127.0.0.1:4000

Exit codes:
  0 - Board answered
  1 - No answer before timeout
  2 - Connection error`,
	RunE: runWhoAmI,
}

func init() {
	rootCmd.AddCommand(whoAmICmd)
	whoAmICmd.Flags().IntVar(&whoAmITimeout, "timeout", 5, "Timeout in seconds for the reply")
}

func runWhoAmI(cmd *cobra.Command, args []string) error {
	l, err := OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnectionError)
	}

	boards := make(chan skylink.BoardType, 1)
	fl := newFrameListener(skylink.DispatcherFunc(func(ev skylink.Event) {
		if s, ok := skylink.SignalOf(ev); ok && s.Command == skylink.CmdWhoAmIValue {
			select {
			case boards <- skylink.BoardType(s.Value()):
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

	fmt.Printf("Skylink - Who Am I\n")
	fmt.Printf("Connection: %s\n", l.name)
	fmt.Printf("Timeout: %d seconds\n\n", whoAmITimeout)

	req := skylink.NewSignal(skylink.CmdWhoAmIValue, skylink.ParamStart)
	fmt.Printf("Sending %s...\n", req)
	if err := l.Send(req.Message().Bytes()); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(exitConnectionError)
	}

	select {
	case board := <-boards:
		fmt.Printf("\nBoard found:\n")
		fmt.Printf("  Type: %s (%d)\n", board, int32(board))
		return nil
	case err := <-fl.errs:
		fmt.Printf("READ FAILED: %v\n", err)
		os.Exit(exitConnectionError)
	case <-time.After(time.Duration(whoAmITimeout) * time.Second):
		fmt.Printf("\nTIMEOUT: No reply in %ds\n", whoAmITimeout)
		os.Exit(exitTestFailed)
	}
	return nil
}
