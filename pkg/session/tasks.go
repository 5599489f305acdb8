// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"time"

	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/skylink"
)

// Task names as registered with the scheduler
const (
	PingTaskName              = "ping_task"
	ControlTaskName           = "control_task"
	ConnectionTimeoutTaskName = "connection_timeout_task"
	SignalTimeoutTaskName     = "signal_timeout_task"
)

// Answer windows of the signal timeout task
const (
	DefaultSignalTimeout = 1000 * time.Millisecond
	// PayloadSignalTimeout covers a multi chunk record and slow board steps
	PayloadSignalTimeout = 1500 * time.Millisecond
)

// pingKeyRange bounds the random ping key
const pingKeyRange = 1000000000

// pingState tracks the outstanding ping. A key is confirmed once its echo
// arrives; a tick while still waiting counts as a lost ping.
type pingState struct {
	waiting bool
	key     int32
	sent    time.Time
	lost    int
}

func (e *Engine) initTasks() {
	e.pingTask = scheduler.NewTask(PingTaskName, e.runPing)
	e.controlTask = scheduler.NewTask(ControlTaskName, e.runControl)
	e.timeoutTask = scheduler.NewTask(ConnectionTimeoutTaskName, e.runConnectionTimeout)
	e.signalTask = scheduler.NewTask(SignalTimeoutTaskName, e.runSignalTimeout)
}

func (e *Engine) startTask(t scheduler.Task, hz float64) {
	e.running[t] = true
	e.sched.Start(t, hz)
}

func (e *Engine) stopTask(t scheduler.Task) {
	if !e.running[t] {
		return
	}
	delete(e.running, t)
	e.sched.Stop(t)
}

func (e *Engine) stopAllTasks() {
	e.stopTask(e.pingTask)
	e.stopTask(e.controlTask)
	e.stopTask(e.timeoutTask)
	e.stopTask(e.signalTask)
}

func (e *Engine) startPing() {
	e.ping = pingState{}
	e.startTask(e.pingTask, e.pingFreq)
}

func (e *Engine) stopPing() {
	e.stopTask(e.pingTask)
}

func (e *Engine) startControl() {
	e.controlStop = false
	e.startTask(e.controlTask, e.controlFreq)
}

func (e *Engine) stopControl() {
	e.stopTask(e.controlTask)
}

// runPing sends a fresh PING_VALUE key
func (e *Engine) runPing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running[e.pingTask] {
		return
	}

	if e.ping.waiting {
		e.ping.lost++
		e.log.Warn().Int32("key", e.ping.key).Int("lost", e.ping.lost).Msg("Ping timeout")
	}
	e.ping.key = e.rng.Int31n(pingKeyRange)
	e.ping.sent = e.now()
	e.ping.waiting = true
	if err := e.sendSignal(skylink.NewValueSignal(skylink.CmdPingValue, e.ping.key)); err != nil {
		e.log.Warn().Err(err).Msg("Ping send failed")
	}
}

// handlePong matches an echoed key and reports half the round trip
func (e *Engine) handlePong(s skylink.SignalData) {
	if !e.ping.waiting || s.Value() != e.ping.key {
		e.log.Debug().Int32("key", s.Value()).Msg("Unmatched ping echo")
		return
	}
	e.ping.waiting = false
	delay := e.now().Sub(e.ping.sent) / 2
	e.report(Event{Type: EventPingUpdated, Data: delay})
}

// runControl sends the current control frame, or a stop frame while the
// flight loop is breaking
func (e *Engine) runControl() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running[e.controlTask] {
		return
	}

	c := skylink.NewControlData()
	if e.control != nil {
		if src := e.control.ControlData(); src != nil {
			*c = *src
		}
	}
	if e.controlStop {
		c.SetStop()
	}
	if err := e.send(c.Message()); err != nil {
		e.log.Warn().Err(err).Msg("Control send failed")
	}
}

// runConnectionTimeout reports a start command left unanswered. The connect
// action keeps waiting.
func (e *Engine) runConnectionTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running[e.timeoutTask] {
		return
	}

	if c, ok := e.active.(*connectAction); ok && c.state == connectInitialCommand {
		e.report(Event{Type: EventError, Err: ErrConnectionTimeout, Message: "Connection timeout"})
	}
}

// runSignalTimeout expires the answer the active action is waiting for
func (e *Engine) runSignalTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running[e.signalTask] {
		return
	}

	w, ok := e.active.(signalWaiter)
	if !ok || !w.waiting() {
		e.stopTask(e.signalTask)
		return
	}
	e.log.Debug().Str("action", e.active.Type().String()).Msg("Signal timeout")
	w.signalTimeout()
}
