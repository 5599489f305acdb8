// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/settings"
)

var (
	settingsFile    string
	settingsTimeout int
	settingsRoute   bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Export and upload board settings as TOML",
	Long: `Move the board records between the board and an editable TOML file.

The file holds up to three sections: [calibration], [control] and [route].
Record CRCs are recomputed when the file is read, so hand edits are fine.`,
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download calibration, control settings and route to a file",
	Long: `Connect a session and save the board records.

Calibration is received during the connect handshake. Control settings and,
unless --route=false, the route are downloaded afterwards. The file is written
to --file, or printed when --file is "-".`,
	RunE: runSettingsExport,
}

var settingsUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload control settings and route from a file",
	Long: `Connect a session and upload the [control] and [route] sections of --file.

Calibration is produced by the board's own calibration routines and is never
uploaded.`,
	RunE: runSettingsUpload,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Check and print a settings file",
	RunE:  runSettingsShow,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsExportCmd, settingsUploadCmd, settingsShowCmd)
	settingsCmd.PersistentFlags().StringVarP(&settingsFile, "file", "f", "board.toml", "Settings file")
	settingsCmd.PersistentFlags().IntVar(&settingsTimeout, "timeout", 10, "Timeout in seconds for each step")
	settingsExportCmd.Flags().BoolVar(&settingsRoute, "route", true, "Also download the route")
}

// sessionClient runs a session for a one-shot command
type sessionClient struct {
	m           *session.Manager
	sched       *scheduler.Ticker
	l           *link
	events      chan session.Event
	unsubscribe func()
}

func openSession() (*sessionClient, error) {
	l, err := OpenLink()
	if err != nil {
		return nil, err
	}

	m, sched := newManager()
	c := &sessionClient{m: m, sched: sched, l: l, events: make(chan session.Event, 64)}
	c.unsubscribe = m.Subscribe(session.ListenerFunc(func(ev session.Event) {
		switch ev.Type {
		case session.EventDebugUpdated, session.EventAutopilotUpdated, session.EventPingUpdated:
			return
		}
		select {
		case c.events <- ev:
		default:
		}
	}))

	if err := m.Connect(l); err != nil {
		c.unsubscribe()
		sched.StopAll()
		return nil, err
	}
	return c, nil
}

// await returns the first event of type want. ERROR and DISCONNECTED fail.
func (c *sessionClient) await(want session.EventType, timeout time.Duration) (session.Event, error) {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-c.events:
			switch ev.Type {
			case want:
				return ev, nil
			case session.EventError:
				return ev, ev.Err
			case session.EventDisconnected:
				return ev, errors.New("session closed")
			case session.EventMessage:
				fmt.Printf("  %s\n", ev.Message)
			}
		case <-deadline:
			return session.Event{}, fmt.Errorf("no %s within %v", want, timeout)
		}
	}
}

func (c *sessionClient) close() {
	if c.m.Connected() {
		if err := c.m.Disconnect(); err == nil {
			waitDisconnected(c.events, 2*time.Second)
		}
	}
	c.unsubscribe()
	c.sched.StopAll()
	c.l.Close()
}

func runSettingsExport(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(settingsTimeout) * time.Second

	c, err := openSession()
	if err != nil {
		return err
	}
	defer c.close()

	fmt.Printf("Connecting to %s...\n", c.l.name)
	if _, err := c.await(session.EventConnected, timeout); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	b := &settings.Bundle{Calibration: c.m.CalibrationSettings()}

	fmt.Printf("Downloading control settings...\n")
	if err := c.m.DownloadControlSettings(); err != nil {
		return err
	}
	if _, err := c.await(session.EventControlUpdated, timeout); err != nil {
		return fmt.Errorf("control settings: %w", err)
	}
	b.Control = c.m.ControlSettings()

	if settingsRoute {
		fmt.Printf("Downloading route...\n")
		if err := c.m.DownloadRouteContainer(); err != nil {
			return err
		}
		if _, err := c.await(session.EventRouteUpdated, timeout); err != nil {
			return fmt.Errorf("route: %w", err)
		}
		b.Route = c.m.RouteContainer()
	}

	if settingsFile == "-" {
		return b.Encode(os.Stdout)
	}
	if err := settings.Save(settingsFile, b); err != nil {
		return err
	}
	fmt.Printf("Settings written to %s\n", settingsFile)
	return nil
}

func runSettingsUpload(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(settingsTimeout) * time.Second

	b, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}
	if b.Control == nil && b.Route == nil {
		return fmt.Errorf("%s has no [control] or [route] section", settingsFile)
	}

	c, err := openSession()
	if err != nil {
		return err
	}
	defer c.close()

	fmt.Printf("Connecting to %s...\n", c.l.name)
	if _, err := c.await(session.EventConnected, timeout); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if b.Control != nil {
		fmt.Printf("Uploading control settings...\n")
		if err := c.m.UploadControlSettings(b.Control); err != nil {
			return err
		}
		if _, err := c.await(session.EventControlUpdated, timeout); err != nil {
			return fmt.Errorf("control settings: %w", err)
		}
	}

	if b.Route != nil {
		fmt.Printf("Uploading route (%d waypoints)...\n", len(b.Route.Waypoints))
		if err := c.m.UploadRouteContainer(b.Route); err != nil {
			return err
		}
		if _, err := c.await(session.EventRouteUpdated, timeout); err != nil {
			return fmt.Errorf("route: %w", err)
		}
	}

	fmt.Printf("Upload complete\n")
	return nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	b, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}
	if b.Empty() {
		fmt.Printf("%s has no sections\n", settingsFile)
		return nil
	}
	if b.Calibration != nil {
		fmt.Println(b.Calibration)
	}
	if b.Control != nil {
		fmt.Println(b.Control)
	}
	if b.Route != nil {
		fmt.Println(b.Route)
	}
	return nil
}
