// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session drives a Skylink link: it feeds received bytes through the
// frame dispatcher, routes events to the single active action and runs the
// periodic ping, control and timeout tasks. Every handshake step waits a
// bounded window for its answer before the action gives up.
package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/skylink"
	"github.com/Thermoquad/skylink/pkg/transport"
)

// Default task frequencies in Hz
const (
	DefaultPingFrequency    = 1.0
	DefaultControlFrequency = 5.0
	// ConnectTimeoutFrequency reports a missing start acknowledgement every 5000 ms
	ConnectTimeoutFrequency = 0.2
)

// ControlSource supplies the frame sent on each control task run during flight
type ControlSource interface {
	ControlData() *skylink.ControlData
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithPingFrequency sets the ping task frequency
func WithPingFrequency(hz float64) Option {
	return func(e *Engine) {
		e.pingFreq = hz
	}
}

// WithControlFrequency sets the control task frequency
func WithControlFrequency(hz float64) Option {
	return func(e *Engine) {
		e.controlFreq = hz
	}
}

// WithControlSource sets where control frames come from during flight
func WithControlSource(src ControlSource) Option {
	return func(e *Engine) {
		e.control = src
	}
}

// WithClock replaces time.Now for ping measurements
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine holds the active action of one link. Every entry point (received
// bytes, task runs, user calls, transport callbacks) is serialized behind a
// single mutex.
type Engine struct {
	mu sync.Mutex

	sched      scheduler.Scheduler
	listener   Listener
	transport  transport.Transport
	dispatcher *skylink.Dispatcher
	active     Action
	linkUp     bool
	log        zerolog.Logger

	pingFreq    float64
	controlFreq float64
	control     ControlSource
	controlStop bool
	now         func() time.Time
	rng         *rand.Rand

	pingTask    scheduler.Task
	controlTask scheduler.Task
	timeoutTask scheduler.Task
	signalTask  scheduler.Task
	running     map[scheduler.Task]bool
	ping        pingState
}

// NewEngine creates an engine reporting to listener and running its periodic
// tasks on sched
func NewEngine(sched scheduler.Scheduler, listener Listener, opts ...Option) *Engine {
	e := &Engine{
		sched:       sched,
		listener:    listener,
		log:         zerolog.Nop(),
		pingFreq:    DefaultPingFrequency,
		controlFreq: DefaultControlFrequency,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		running:     make(map[scheduler.Task]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dispatcher = skylink.NewDispatcher(dispatchSink{e})
	e.active = newIdle(e)
	e.initTasks()
	return e
}

// Attach makes the engine the listener of t. Bytes are sent on t from then on.
func (e *Engine) Attach(t transport.Transport) {
	e.mu.Lock()
	e.transport = t
	e.mu.Unlock()
	t.SetListener(e)
}

// Active returns the type of the active action
func (e *Engine) Active() ActionType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active.Type()
}

// ActiveState returns the type and state name of the active action
func (e *Engine) ActiveState() (ActionType, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active.Type(), stateOf(e.active)
}

// Connected reports whether the transport link is up
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linkUp
}

// Statistics returns a snapshot of the receive statistics
func (e *Engine) Statistics() skylink.Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := *e.dispatcher.Statistics()
	stats.CalculateRates()
	return stats
}

// Perform starts an action. It fails with *ActionBusyError while the active
// action is not done.
func (e *Engine) Perform(t ActionType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.perform(t, nil, false)
}

// PerformUpload starts an upload action sending data
func (e *Engine) PerformUpload(t ActionType, data skylink.SignalPayloadData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.perform(t, data, false)
}

// NotifyUserEvent routes an operator intent to the active action if it owns
// the event
func (e *Engine) NotifyUserEvent(ev UserEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if owner := ev.Owner(); owner != e.active.Type() {
		return &OwnershipMismatchError{Event: ev, Owner: owner, Active: e.active.Type()}
	}
	e.log.Debug().Str("action", e.active.Type().String()).Str("user_event", ev.String()).Msg("User event")
	return e.active.NotifyUserEvent(ev)
}

// Disconnect ends the session, politely from the application loop and by
// closing the transport otherwise
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.linkUp || e.transport == nil {
		return ErrNotConnected
	}
	if e.active.Type() == ActionApplicationLoop {
		return e.perform(ActionDisconnect, nil, false)
	}
	return e.transport.Disconnect()
}

// SetPingFrequency changes the ping task frequency, also while it runs
func (e *Engine) SetPingFrequency(hz float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pingFreq = hz
	if e.running[e.pingTask] {
		e.sched.SetFrequency(e.pingTask, hz)
	}
}

// SetControlFrequency changes the control task frequency, also while it runs
func (e *Engine) SetControlFrequency(hz float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.controlFreq = hz
	if e.running[e.controlTask] {
		e.sched.SetFrequency(e.controlTask, hz)
	}
}

// OnConnected implements transport.Listener and starts the connect action
func (e *Engine) OnConnected() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info().Msg("Transport connected")
	e.linkUp = true
	e.dispatcher.Reset()
	e.startAction(newConnect(e))
}

// OnDisconnected implements transport.Listener and forces the engine idle
func (e *Engine) OnDisconnected() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info().Msg("Transport disconnected")
	wasUp := e.linkUp
	e.linkUp = false
	e.stopAllTasks()
	e.setIdle()
	if wasUp {
		e.report(Event{Type: EventDisconnected})
	}
}

// OnError implements transport.Listener. I/O errors end the session.
func (e *Engine) OnError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Error().Err(err).Msg("Transport error")
	e.report(Event{Type: EventError, Err: err})
	if e.transport != nil {
		e.transport.Disconnect()
	}
}

// OnDataReceived implements transport.Listener
func (e *Engine) OnDataReceived(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatcher.Feed(data)
}

// dispatchSink routes dispatcher output into the engine, whose lock is held
// by OnDataReceived
type dispatchSink struct {
	e *Engine
}

func (s dispatchSink) HandleEvent(ev skylink.Event) {
	s.e.handleEvent(ev)
}

func (s dispatchSink) HandleAnomaly(v skylink.ValidationError) {
	s.e.log.Debug().Str("anomaly", v.Type.String()).Msg(v.Message)
}

func (e *Engine) handleEvent(ev skylink.Event) {
	if s, ok := skylink.SignalOf(ev); ok && s.Command == skylink.CmdPingValue {
		e.handlePong(s)
		return
	}

	before := stateOf(e.active)
	a := e.active
	if w, ok := a.(signalWaiter); ok {
		w.received(ev)
	}
	if err := a.HandleEvent(ev); err != nil {
		e.log.Warn().Err(err).Str("action", a.Type().String()).Msg("Event not handled")
		return
	}
	if after := stateOf(a); after != before {
		e.log.Debug().Str("action", a.Type().String()).Str("from", before).Str("state", after).Msg("Transition")
	}
}

func (e *Engine) perform(t ActionType, data skylink.SignalPayloadData, requireLoop bool) error {
	if !e.linkUp {
		return ErrNotConnected
	}
	if requireLoop && e.active.Type() != ActionApplicationLoop {
		return ErrNotInApplicationLoop
	}
	if !e.active.IsDone() {
		return &ActionBusyError{Active: e.active.Type(), Requested: t}
	}
	a, err := e.newAction(t, data)
	if err != nil {
		return err
	}
	return e.startAction(a)
}

func (e *Engine) newAction(t ActionType, data skylink.SignalPayloadData) (Action, error) {
	switch t {
	case ActionIdle:
		return newIdle(e), nil
	case ActionConnect:
		return newConnect(e), nil
	case ActionDisconnect:
		return newDisconnect(e), nil
	case ActionApplicationLoop:
		return newAppLoop(e), nil
	case ActionFlightLoop:
		return newFlightLoop(e), nil
	case ActionAccelCalibration:
		return newAccelCalibration(e), nil
	case ActionMagnetCalibration:
		return newMagnetCalibration(e), nil
	case ActionUploadControlSettings:
		cs, ok := data.(*skylink.ControlSettings)
		if !ok || cs == nil {
			return nil, fmt.Errorf("session: %s needs control settings, got %T", t, data)
		}
		return newUpload(e, t, skylink.CmdUploadSettings, cs), nil
	case ActionUploadRouteContainer:
		rc, ok := data.(*skylink.RouteContainer)
		if !ok || rc == nil {
			return nil, fmt.Errorf("session: %s needs a route container, got %T", t, data)
		}
		return newUpload(e, t, skylink.CmdUploadRoute, rc), nil
	case ActionDownloadControlSettings:
		return newDownload(e, t, skylink.CmdDownloadSettings), nil
	case ActionDownloadRouteContainer:
		return newDownload(e, t, skylink.CmdDownloadRoute), nil
	default:
		return nil, fmt.Errorf("session: unknown action %s", t)
	}
}

func (e *Engine) startAction(a Action) error {
	prev := e.active.Type()
	e.stopTask(e.signalTask)
	e.active = a
	e.log.Info().Str("action", a.Type().String()).Str("previous", prev.String()).Msg("Starting action")

	if err := a.Start(); err != nil {
		e.log.Error().Err(err).Str("action", a.Type().String()).Msg("Action start failed")
		e.report(Event{Type: EventError, Err: err})
		return err
	}
	return nil
}

// actionDone is called by an action reaching its terminal state
func (e *Engine) actionDone(t ActionType) {
	e.log.Debug().Str("action", t.String()).Msg("Action done")
	e.startAction(newAppLoop(e))
}

// closeLink ends the session after a completed disconnect handshake
func (e *Engine) closeLink() {
	e.report(Event{Type: EventDisconnected})
	e.linkUp = false
	e.stopAllTasks()
	e.setIdle()
	if e.transport != nil {
		e.transport.Disconnect()
	}
}

func (e *Engine) setIdle() {
	if e.active.Type() != ActionIdle {
		e.log.Info().Str("previous", e.active.Type().String()).Msg("Idle")
	}
	e.active = newIdle(e)
}

func (e *Engine) report(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	switch ev.Type {
	case EventError:
		e.log.Warn().Str("event", ev.Type.String()).Err(ev.Err).Msg(ev.Message)
	case EventDebugUpdated, EventAutopilotUpdated, EventPingUpdated:
		e.log.Trace().Str("event", ev.Type.String()).Msg(ev.Message)
	default:
		e.log.Info().Str("event", ev.Type.String()).Msg(ev.Message)
	}
	if e.listener != nil {
		e.listener.OnSessionEvent(ev)
	}
}

func (e *Engine) sendSignal(s skylink.SignalData) error {
	e.log.Debug().Str("signal", s.String()).Msg("Send")
	return e.send(s.Message())
}

func (e *Engine) sendPayload(data skylink.SignalPayloadData) error {
	msgs := skylink.BuildMessages(data)
	e.log.Debug().Str("command", data.DataType().String()).Int("chunks", len(msgs)).Msg("Send payload")
	for _, m := range msgs {
		if err := e.send(m); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) send(m *skylink.Message) error {
	if e.transport == nil {
		return ErrNotConnected
	}
	if err := e.transport.Send(m.Bytes()); err != nil {
		return fmt.Errorf("session: send %s: %w", m.Type(), err)
	}
	return nil
}

func stateOf(a Action) string {
	if s, ok := a.(stater); ok {
		return s.State()
	}
	return ""
}

// performFromLoop starts an action only from the application loop
func (e *Engine) performFromLoop(t ActionType, data skylink.SignalPayloadData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.perform(t, data, true)
}
