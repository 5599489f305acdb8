// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"time"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

// MaxPayloadRetries is the number of failed transfers after which an upload
// or download gives up
const MaxPayloadRetries = 3

// ActionType identifies an action variant
type ActionType int

const (
	ActionIdle ActionType = iota
	ActionConnect
	ActionDisconnect
	ActionApplicationLoop
	ActionFlightLoop
	ActionAccelCalibration
	ActionMagnetCalibration
	ActionUploadControlSettings
	ActionDownloadControlSettings
	ActionUploadRouteContainer
	ActionDownloadRouteContainer
)

var actionNames = [...]string{
	ActionIdle:                    "IDLE",
	ActionConnect:                 "CONNECT",
	ActionDisconnect:              "DISCONNECT",
	ActionApplicationLoop:         "APPLICATION_LOOP",
	ActionFlightLoop:              "FLIGHT_LOOP",
	ActionAccelCalibration:        "ACCELEROMETER_CALIBRATION",
	ActionMagnetCalibration:       "MAGNETOMETER_CALIBRATION",
	ActionUploadControlSettings:   "UPLOAD_CONTROL_SETTINGS",
	ActionDownloadControlSettings: "DOWNLOAD_CONTROL_SETTINGS",
	ActionUploadRouteContainer:    "UPLOAD_ROUTE_CONTAINER",
	ActionDownloadRouteContainer:  "DOWNLOAD_ROUTE_CONTAINER",
}

// String returns the action name
func (t ActionType) String() string {
	if t >= 0 && int(t) < len(actionNames) {
		return actionNames[t]
	}
	return fmt.Sprintf("ACTION(%d)", int(t))
}

// Action is one unit of session protocol work with its own state machine.
// Methods are called with the engine lock held.
type Action interface {
	// Start sends the opening messages and enters the initial state
	Start() error
	// HandleEvent consumes one dispatcher event. It returns an
	// *UnexpectedEventError when no transition of the current state matches.
	HandleEvent(ev skylink.Event) error
	// IsDone reports whether the action reached its terminal state
	IsDone() bool
	// NotifyUserEvent delivers an operator intent owned by this action
	NotifyUserEvent(ev UserEvent) error
	// Type identifies the variant
	Type() ActionType
}

// stater is implemented by actions exposing their state for logs
type stater interface {
	State() string
}

// signalWaiter is implemented by every action through base. The engine
// passes each event to received before HandleEvent and calls signalTimeout
// when the signal timeout task expires.
type signalWaiter interface {
	waiting() bool
	received(ev skylink.Event)
	signalTimeout()
}

// base carries the engine handle and helpers shared by every action
type base struct {
	e    *Engine
	typ  ActionType
	done bool

	// answer being waited for, see expect and awaitPayload
	wait        bool
	waitCmd     skylink.Command
	waitPayload bool
	failures    int
}

func (b *base) Type() ActionType { return b.typ }
func (b *base) IsDone() bool     { return b.done }

// NotifyUserEvent ignores intents the action has no use for
func (b *base) NotifyUserEvent(ev UserEvent) error {
	b.e.log.Debug().Str("action", b.typ.String()).Str("user_event", ev.String()).Msg("User event ignored")
	return nil
}

func (b *base) send(cmd skylink.Command, param skylink.Parameter) error {
	return b.e.sendSignal(skylink.NewSignal(cmd, param))
}

func (b *base) sendPayload(data skylink.SignalPayloadData) error {
	return b.e.sendPayload(data)
}

func (b *base) report(t EventType, msg string, data any) {
	b.e.report(Event{Type: t, Message: msg, Data: data})
}

func (b *base) fail(err error) {
	b.e.report(Event{Type: EventError, Err: err})
}

// finish marks the action done and hands control back to the engine
func (b *base) finish() {
	b.done = true
	b.e.actionDone(b.typ)
}

// expect arms the signal timeout until a signal carrying cmd arrives,
// whatever its parameter
func (b *base) expect(cmd skylink.Command, window time.Duration) {
	b.wait, b.waitCmd, b.waitPayload = true, cmd, false
	b.e.startTask(b.e.signalTask, 1/window.Seconds())
}

// sendExpect sends (cmd, param) and waits the default window for the answer
func (b *base) sendExpect(cmd skylink.Command, param skylink.Parameter) error {
	if err := b.send(cmd, param); err != nil {
		return err
	}
	b.expect(cmd, DefaultSignalTimeout)
	return nil
}

// awaitPayload arms the timeout for the record acknowledged with cmd. Each
// expiry asks the board again with TIMEOUT.
func (b *base) awaitPayload(cmd skylink.Command) {
	b.failures = 0
	b.rearmPayload(cmd)
}

// rearmPayload restarts a payload wait keeping the failure count
func (b *base) rearmPayload(cmd skylink.Command) {
	b.wait, b.waitCmd, b.waitPayload = true, cmd, true
	b.e.startTask(b.e.signalTask, 1/PayloadSignalTimeout.Seconds())
}

func (b *base) endWait() {
	b.wait = false
	b.e.stopTask(b.e.signalTask)
}

func (b *base) waiting() bool { return b.wait }

// received ends the wait once its answer arrives
func (b *base) received(ev skylink.Event) {
	if !b.wait {
		return
	}
	if b.waitPayload {
		if pe, ok := ev.(*skylink.PayloadEvent); ok && pe.Data.DataCommand() == b.waitCmd {
			b.endWait()
		}
		return
	}
	if s, ok := skylink.SignalOf(ev); ok && s.Command == b.waitCmd {
		b.endWait()
	}
}

// signalTimeout gives up on a missing signal. A missing record is asked
// for again until MaxPayloadRetries expiries.
func (b *base) signalTimeout() {
	if !b.waitPayload {
		b.abort(&SignalTimeoutError{Action: b.typ, Command: b.waitCmd})
		return
	}
	b.failures++
	if b.failures >= MaxPayloadRetries {
		b.abort(&MaxRetriesExceededError{Command: b.waitCmd, Attempts: b.failures})
		return
	}
	b.e.log.Warn().Str("action", b.typ.String()).Int("failures", b.failures).Msg("Payload timeout, asking again")
	if err := b.send(b.waitCmd, skylink.ParamTimeout); err != nil {
		b.e.log.Warn().Err(err).Msg("Timeout signal send failed")
	}
	b.rearmPayload(b.waitCmd)
}

// abort reports err and falls back to the application loop
func (b *base) abort(err error) {
	b.endWait()
	b.e.stopControl()
	b.e.controlStop = false
	b.fail(err)
	b.finish()
}

func (b *base) unexpected(state fmt.Stringer, ev skylink.Event) error {
	return &UnexpectedEventError{Action: b.typ, State: state.String(), Event: ev.String()}
}

// telemetry forwards CONTROL and AUTOPILOT frames to the application and
// reports whether ev was one of them
func (b *base) telemetry(ev skylink.Event) bool {
	if m, ok := skylink.MessageOf(ev, skylink.TypeControl); ok {
		d, err := skylink.ParseDebugData(m)
		if err == nil {
			b.report(EventDebugUpdated, "", d)
		}
		return true
	}
	if m, ok := skylink.MessageOf(ev, skylink.TypeAutopilot); ok {
		a, err := skylink.ParseAutopilotData(m)
		if err == nil {
			b.report(EventAutopilotUpdated, "", a)
		}
		return true
	}
	return false
}

// payloadOf returns the reassembled record carried by ev if it has type T
func payloadOf[T skylink.SignalPayloadData](ev skylink.Event) (T, bool) {
	var zero T
	pe, ok := ev.(*skylink.PayloadEvent)
	if !ok {
		return zero, false
	}
	data, ok := pe.Data.(T)
	return data, ok
}

// updateEvent returns the event reporting a newly stored record
func updateEvent(data skylink.SignalPayloadData) EventType {
	switch data.(type) {
	case *skylink.CalibrationSettings:
		return EventCalibrationUpdated
	case *skylink.RouteContainer:
		return EventRouteUpdated
	default:
		return EventControlUpdated
	}
}

// idleAction is the resting action before connect and after disconnect
type idleAction struct {
	base
}

func newIdle(e *Engine) *idleAction {
	return &idleAction{base{e: e, typ: ActionIdle, done: true}}
}

func (a *idleAction) Start() error  { return nil }
func (a *idleAction) State() string { return "IDLE" }

func (a *idleAction) HandleEvent(ev skylink.Event) error {
	return &UnexpectedEventError{Action: a.typ, State: a.State(), Event: ev.String()}
}
