// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/skylink"
	"github.com/Thermoquad/skylink/pkg/transport"
)

// Manager is the application facing side of a session. It keeps the latest
// records received from the board, fans session events out to subscribers
// and supplies the control frame flown during the flight loop.
type Manager struct {
	engine *Engine

	mu              sync.RWMutex
	debug           *skylink.DebugData
	autopilot       *skylink.AutopilotData
	calibration     *skylink.CalibrationSettings
	controlSettings *skylink.ControlSettings
	route           *skylink.RouteContainer
	pingDelay       time.Duration
	control         skylink.ControlData

	subMu     sync.Mutex
	subs      []subscription
	nextSubID int
}

type subscription struct {
	id int
	l  Listener
}

// NewManager creates a manager running its tasks on sched. The manager is
// the engine's control source unless WithControlSource overrides it.
func NewManager(sched scheduler.Scheduler, opts ...Option) *Manager {
	m := &Manager{control: *skylink.NewControlData()}
	opts = append([]Option{WithControlSource(m)}, opts...)
	m.engine = NewEngine(sched, m, opts...)
	return m
}

// Engine returns the underlying engine
func (m *Manager) Engine() *Engine {
	return m.engine
}

// Subscribe registers l for session events and returns a function removing it
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subs = append(m.subs, subscription{id: id, l: l})

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Connect attaches t and opens it; the connect handshake starts as soon as
// the transport reports the link up
func (m *Manager) Connect(t transport.Transport) error {
	if m.engine.Connected() {
		return errors.New("session: already connected")
	}
	m.engine.Attach(t)
	return t.Connect()
}

// Disconnect ends the session
func (m *Manager) Disconnect() error {
	return m.engine.Disconnect()
}

// StartFlightLoop starts a flight from the application loop
func (m *Manager) StartFlightLoop() error {
	return m.engine.performFromLoop(ActionFlightLoop, nil)
}

// EndFlightLoop asks the running flight to stop
func (m *Manager) EndFlightLoop() error {
	return m.engine.NotifyUserEvent(UserEndFlightLoop)
}

// StartAccelCalibration starts an accelerometer calibration
func (m *Manager) StartAccelCalibration() error {
	return m.engine.performFromLoop(ActionAccelCalibration, nil)
}

// StartMagnetCalibration starts a magnetometer calibration
func (m *Manager) StartMagnetCalibration() error {
	return m.engine.performFromLoop(ActionMagnetCalibration, nil)
}

// DoneMagnetCalibration ends the rotation phase of a magnetometer calibration
func (m *Manager) DoneMagnetCalibration() error {
	return m.engine.NotifyUserEvent(UserDoneMagnetCalibration)
}

// CancelMagnetCalibration aborts a magnetometer calibration
func (m *Manager) CancelMagnetCalibration() error {
	return m.engine.NotifyUserEvent(UserCancelMagnetCalibration)
}

// UploadControlSettings sends cs to the board
func (m *Manager) UploadControlSettings(cs *skylink.ControlSettings) error {
	return m.engine.performFromLoop(ActionUploadControlSettings, cs)
}

// DownloadControlSettings requests the board's control settings
func (m *Manager) DownloadControlSettings() error {
	return m.engine.performFromLoop(ActionDownloadControlSettings, nil)
}

// UploadRouteContainer sends rc to the board
func (m *Manager) UploadRouteContainer(rc *skylink.RouteContainer) error {
	return m.engine.performFromLoop(ActionUploadRouteContainer, rc)
}

// DownloadRouteContainer requests the board's route
func (m *Manager) DownloadRouteContainer() error {
	return m.engine.performFromLoop(ActionDownloadRouteContainer, nil)
}

// Active returns the type of the running action
func (m *Manager) Active() ActionType {
	return m.engine.Active()
}

// Connected reports whether the link is up
func (m *Manager) Connected() bool {
	return m.engine.Connected()
}

// SetControlData replaces the control frame flown by the control task
func (m *Manager) SetControlData(c skylink.ControlData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.control = c
}

// ControlData implements ControlSource
func (m *Manager) ControlData() *skylink.ControlData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.control
	return &c
}

// DebugData returns the latest telemetry, nil before any arrived
func (m *Manager) DebugData() *skylink.DebugData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.debug
}

// AutopilotData returns the latest autopilot frame
func (m *Manager) AutopilotData() *skylink.AutopilotData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.autopilot
}

// CalibrationSettings returns the latest calibration received
func (m *Manager) CalibrationSettings() *skylink.CalibrationSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calibration
}

// ControlSettings returns the latest control settings exchanged
func (m *Manager) ControlSettings() *skylink.ControlSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlSettings
}

// RouteContainer returns the latest route exchanged
func (m *Manager) RouteContainer() *skylink.RouteContainer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.route
}

// PingDelay returns the latest one-way delay estimate
func (m *Manager) PingDelay() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingDelay
}

// OnSessionEvent implements Listener. It stores the record carried by ev and
// forwards ev to every subscriber.
func (m *Manager) OnSessionEvent(ev Event) {
	m.store(ev)

	m.subMu.Lock()
	subs := make([]subscription, len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()

	for _, s := range subs {
		s.l.OnSessionEvent(ev)
	}
}

func (m *Manager) store(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch data := ev.Data.(type) {
	case *skylink.DebugData:
		m.debug = data
	case *skylink.AutopilotData:
		m.autopilot = data
	case *skylink.CalibrationSettings:
		m.calibration = data
	case *skylink.ControlSettings:
		m.controlSettings = data
	case *skylink.RouteContainer:
		m.route = data
	case time.Duration:
		m.pingDelay = data
	}
}
