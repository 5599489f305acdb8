// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/relay"
	"github.com/Thermoquad/skylink/pkg/session"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive ground station TUI",
	Long: `Fly and configure a board via an interactive terminal UI.

This command runs a full session: the connect handshake, ping and control
tasks, and the actions started from the TUI.

Features:
  - Session state and link latency
  - Real-time telemetry display
  - Flight loop with throttle control and stop
  - Accelerometer and magnetometer calibration
  - Control settings and route download
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the action list and the throttle panel. Arrow keys
navigate the action list, Enter runs the selected action.

Supports serial, WebSocket and TCP connections.`,
	RunE: runControl,
}

var controlReconnect bool

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().BoolVar(&controlReconnect, "reconnect", true, "Reconnect automatically when the link drops")
}

// connectionManager handles the session lifecycle and reconnection
type connectionManager struct {
	mgr  *session.Manager
	mu   sync.Mutex
	link *link
	p    *tea.Program

	events chan session.Event
	lost   chan struct{}
	done   chan struct{}

	// set while the operator asked for the link to be down
	userDisconnect atomic.Bool
}

func newConnectionManager(mgr *session.Manager, l *link) *connectionManager {
	return &connectionManager{
		mgr:    mgr,
		link:   l,
		events: make(chan session.Event, 256),
		lost:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (cm *connectionManager) linkName() string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.link.name
}

// onSessionEvent runs under the engine lock: it queues and never blocks
func (cm *connectionManager) onSessionEvent(ev session.Event) {
	select {
	case cm.events <- ev:
	default:
	}
	if ev.Type == session.EventDisconnected {
		select {
		case cm.lost <- struct{}{}:
		default:
		}
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	l, err := OpenLink()
	if err != nil {
		return err
	}

	mgr, sched := newManager()
	defer sched.StopAll()

	cm := newConnectionManager(mgr, l)
	unsubscribe := mgr.Subscribe(session.ListenerFunc(cm.onSessionEvent))
	defer unsubscribe()

	m := initialControlModel(cm, l.name)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	if err := mgr.Connect(l); err != nil {
		l.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchConfig(ctx, mgr)

	go cm.batchLoop()
	go cm.supervise()

	_, err = p.Run()
	close(cm.done) // Signal goroutines to stop
	cm.shutdown()
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// batchLoop hands queued session events to the TUI at a fixed rate
func (cm *connectionManager) batchLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cm.done:
			return
		case <-ticker.C:
			var batch controlBatchMsg

			// Drain all available events
		drainLoop:
			for {
				select {
				case ev := <-cm.events:
					batch.events = append(batch.events, ev)
				default:
					break drainLoop
				}
			}

			if len(batch.events) > 0 {
				cm.p.Send(batch)
			}
		}
	}
}

// supervise reconnects after a link loss the operator did not ask for
func (cm *connectionManager) supervise() {
	for {
		select {
		case <-cm.done:
			return
		case <-cm.lost:
		}

		if cm.userDisconnect.Load() || !controlReconnect {
			continue
		}

		cm.p.Send(connectionLostMsg{})
		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		if cm.userDisconnect.Load() {
			return true
		}
		err := cm.connect()
		if err == nil {
			cm.p.Send(reconnectedMsg{linkName: cm.linkName()})
			return true
		}
		log.Debug().Err(err).Dur("backoff", backoff).Msg("Reconnect failed")

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// connect opens a fresh transport and starts a session on it
func (cm *connectionManager) connect() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.link.Disconnect()
	if err := cm.link.Reopen(); err != nil {
		return err
	}
	cm.userDisconnect.Store(false)
	return cm.mgr.Connect(cm.link)
}

// execute runs a named session command off the UI goroutine
func (cm *connectionManager) execute(command string) tea.Cmd {
	return func() tea.Msg {
		var err error
		switch command {
		case "connect":
			err = cm.connect()
		case "disconnect":
			cm.userDisconnect.Store(true)
			err = relay.Execute(cm.mgr, command)
		default:
			err = relay.Execute(cm.mgr, command)
		}
		return commandResultMsg{command: command, err: err}
	}
}

func (cm *connectionManager) shutdown() {
	cm.userDisconnect.Store(true)
	if cm.mgr.Connected() {
		if err := cm.mgr.Disconnect(); err != nil {
			log.Debug().Err(err).Msg("Disconnect failed")
		}
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.link.Close()
}
