// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator answers the ground station side of the Skylink protocol
// the way a flight controller does. It is used by the simulate command and
// by end-to-end tests.
package simulator

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Thermoquad/skylink/pkg/skylink"
	"github.com/Thermoquad/skylink/pkg/transport"
	"github.com/rs/zerolog"
)

// MaxSendFailures is the number of rejections after which a record exchange
// is abandoned, in either direction
const MaxSendFailures = 3

var (
	// ErrUnexpectedEvent is logged when a frame does not fit the current state
	ErrUnexpectedEvent = errors.New("simulator: unexpected event")
	// ErrRetriesExhausted is logged when the peer rejected a record too often
	ErrRetriesExhausted = errors.New("simulator: retransmission limit exceeded")
)

type state int

const (
	stateIdle state = iota
	stateConnecting
	stateAppLoop
	stateFlightLoop
	stateCalibrateAccel
	stateCalibrateMagnet
	stateUploadSettings
	stateDownloadSettings
	stateUploadRoute
	stateDownloadRoute
)

var stateNames = [...]string{
	"IDLE",
	"CONNECTING_APP_LOOP",
	"APP_LOOP",
	"FLIGHT_LOOP",
	"CALIBRATE_ACCEL",
	"CALIBRATE_MAGNET",
	"UPLOAD_CONTROL_SETTINGS",
	"DOWNLOAD_CONTROL_SETTINGS",
	"UPLOAD_ROUTE_CONTAINER",
	"DOWNLOAD_ROUTE_CONTAINER",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// stage is the step inside a multi step state
type stage int

const (
	connectInitial stage = iota
	connectProtocolAck
	connectCalibrationAck
	connectFinal
)

const (
	flightControlsAck stage = iota
	flightRouteAck
	flightFinal
	flightRunning
)

const (
	magnetUserCommand stage = iota
	magnetCalibrationAck
)

// Option configures a Simulator
type Option func(*Simulator)

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) {
		s.log = log
	}
}

// WithTelemetryRate sets the debug telemetry rate in Hz, 0 disables it
func WithTelemetryRate(hz float64) Option {
	return func(s *Simulator) {
		s.telemetryHz = hz
	}
}

// WithRouteAllowed controls whether flights are offered a route
func WithRouteAllowed(allowed bool) Option {
	return func(s *Simulator) {
		s.routeAllowed = allowed
	}
}

// WithFlightAllowed controls whether FLIGHT_LOOP START is accepted
func WithFlightAllowed(allowed bool) Option {
	return func(s *Simulator) {
		s.flightAllowed = allowed
	}
}

// WithProtocolVersion overrides the advertised protocol version
func WithProtocolVersion(v int32) Option {
	return func(s *Simulator) {
		s.protocolVersion = v
	}
}

// WithLinger sets how long the link stays open after a reply that ends the
// session, so the reply reaches the peer
func WithLinger(d time.Duration) Option {
	return func(s *Simulator) {
		s.linger = d
	}
}

// WithBaseDelay sets the delay between flight start and the base position
// report
func WithBaseDelay(d time.Duration) Option {
	return func(s *Simulator) {
		s.baseDelay = d
	}
}

// WithSeed makes sensor noise reproducible
func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithCalibration sets the calibration reported at connect time
func WithCalibration(cs *skylink.CalibrationSettings) Option {
	return func(s *Simulator) {
		c := *cs
		s.calibration = &c
	}
}

// WithControlSettings sets the stored control settings
func WithControlSettings(cs *skylink.ControlSettings) Option {
	return func(s *Simulator) {
		c := *cs
		s.controlSettings = &c
	}
}

// WithRoute sets the stored route
func WithRoute(rc *skylink.RouteContainer) Option {
	return func(s *Simulator) {
		s.route = copyRoute(rc)
	}
}

// Simulator is a simulated flight controller attached to one transport
type Simulator struct {
	mu         sync.Mutex
	t          transport.Transport
	dispatcher *skylink.Dispatcher
	log        zerolog.Logger

	state state
	stage stage

	calibration     *skylink.CalibrationSettings
	controlSettings *skylink.ControlSettings
	route           *skylink.RouteContainer
	debug           skylink.DebugData

	sendFails   int
	uploadFails int

	telemetryHz   float64
	telemetryStop chan struct{}
	baseTimer     *time.Timer
	baseDelay     time.Duration
	baseAltitude  float32
	clock         float64
	rng           *rand.Rand

	routeAllowed    bool
	flightAllowed   bool
	protocolVersion int32
	linger          time.Duration
}

// New creates a simulator answering on t. It installs itself as the
// transport listener; the caller connects the transport.
func New(t transport.Transport, opts ...Option) *Simulator {
	s := &Simulator{
		t:               t,
		log:             zerolog.Nop(),
		telemetryHz:     25,
		baseDelay:       5 * time.Second,
		routeAllowed:    true,
		flightAllowed:   true,
		protocolVersion: skylink.ProtocolVersion,
		linger:          500 * time.Millisecond,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dispatcher = skylink.NewDispatcher(skylink.DispatcherFunc(s.handle))
	s.baseAltitude = s.noise() * -220
	if s.calibration == nil {
		s.calibration = s.startCalibration()
	}
	if s.controlSettings == nil {
		s.controlSettings = startControlSettings()
	}
	if s.route == nil {
		s.route = skylink.NewRouteContainer(skylink.Waypoint{
			Latitude:         50,
			Longitude:        20,
			AbsoluteAltitude: -10,
			RelativeAltitude: -100,
			Velocity:         3,
		})
	}
	s.debug = s.startDebugData()

	t.SetListener(s)
	return s
}

// State returns the name of the current state
func (s *Simulator) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}

// ControlSettings returns a copy of the stored control settings
func (s *Simulator) ControlSettings() *skylink.ControlSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.controlSettings
	return &c
}

// Route returns a copy of the stored route
func (s *Simulator) Route() *skylink.RouteContainer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRoute(s.route)
}

// Calibration returns a copy of the calibration
func (s *Simulator) Calibration() *skylink.CalibrationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.calibration
	return &c
}

// OnConnected implements transport.Listener
func (s *Simulator) OnConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info().Msg("Peer connected")
	s.dispatcher.Reset()
	s.state = stateConnecting
	s.stage = connectInitial
}

// OnDisconnected implements transport.Listener
func (s *Simulator) OnDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info().Msg("Peer disconnected")
	s.stopTelemetry()
	if s.baseTimer != nil {
		s.baseTimer.Stop()
		s.baseTimer = nil
	}
	s.state = stateIdle
}

// OnError implements transport.Listener
func (s *Simulator) OnError(err error) {
	s.log.Warn().Err(err).Msg("Transport error")
}

// OnDataReceived implements transport.Listener
func (s *Simulator) OnDataReceived(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher.Feed(data)
}

// handle runs with s.mu held, from inside Feed
func (s *Simulator) handle(ev skylink.Event) {
	s.log.Debug().Str("state", s.state.String()).Stringer("event", ev).Msg("Event")

	var err error
	switch s.state {
	case stateConnecting:
		err = s.handleConnecting(ev)
	case stateAppLoop:
		err = s.handleAppLoop(ev)
	case stateFlightLoop:
		err = s.handleFlightLoop(ev)
	case stateCalibrateAccel:
		err = s.handleAccel(ev)
	case stateCalibrateMagnet:
		err = s.handleMagnet(ev)
	case stateUploadSettings:
		err = s.handleUpload(ev, skylink.CmdControlSettingsData)
	case stateUploadRoute:
		err = s.handleUpload(ev, skylink.CmdRouteContainerData)
	case stateDownloadSettings:
		err = s.handleDownload(ev, s.controlSettings)
	case stateDownloadRoute:
		err = s.handleDownload(ev, s.route)
	default:
		err = s.unexpected(ev)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("state", s.state.String()).Msg("Event not handled")
	}
}

func (s *Simulator) handleConnecting(ev skylink.Event) error {
	switch s.stage {
	case connectInitial:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdStart, skylink.ParamStart):
			s.log.Info().Msg("Start command received, negotiating protocol version")
			s.stage = connectProtocolAck
			if err := s.sendSignal(skylink.CmdStart, skylink.ParamAck); err != nil {
				return err
			}
			return s.send(skylink.NewValueSignal(skylink.CmdProtocolVersionValue, s.protocolVersion).Message())

		case skylink.MatchSignal(ev, skylink.CmdWhoAmIValue, skylink.ParamStart):
			s.log.Info().Stringer("board", s.calibration.BoardType).Msg("Who am I requested")
			err := s.send(skylink.NewValueSignal(skylink.CmdWhoAmIValue, int32(s.calibration.BoardType)).Message())
			s.closeLater()
			return err
		}

	case connectProtocolAck:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdProtocolVersion, skylink.ParamAck):
			s.log.Info().Msg("Protocol version accepted, sending calibration")
			s.stage = connectCalibrationAck
			if err := s.sendSignal(skylink.CmdStart, skylink.ParamAck); err != nil {
				return err
			}
			if err := s.sendSignal(skylink.CmdCalibrationSettings, skylink.ParamReady); err != nil {
				return err
			}
			return s.offer(s.calibration)

		case skylink.MatchSignal(ev, skylink.CmdProtocolVersion, skylink.ParamNotAllowed):
			s.log.Warn().Msg("Peer rejected protocol version")
			s.closeLater()
			return nil
		}

	case connectCalibrationAck:
		acked, err := s.awaitAck(s.calibration, ev)
		if acked {
			s.stage = connectFinal
		}
		return err

	case connectFinal:
		if skylink.MatchSignal(ev, skylink.CmdAppLoop, skylink.ParamStart) {
			s.log.Info().Msg("Application loop started")
			if err := s.sendSignal(skylink.CmdAppLoop, skylink.ParamAck); err != nil {
				return err
			}
			s.enterAppLoop()
			return nil
		}
	}
	return s.unexpected(ev)
}

func (s *Simulator) handleAppLoop(ev skylink.Event) error {
	sig, ok := skylink.SignalOf(ev)
	if !ok {
		return s.unexpected(ev)
	}
	if sig.Command == skylink.CmdPingValue {
		return s.send(sig.Message())
	}
	if sig.Matches(skylink.CmdAppLoop, skylink.ParamBreak) {
		s.log.Info().Msg("Disconnect requested")
		s.stopTelemetry()
		err := s.sendSignal(skylink.CmdAppLoop, skylink.ParamBreakAck)
		s.closeLater()
		return err
	}
	if sig.Parameter != skylink.ParamStart {
		return s.unexpected(ev)
	}

	switch sig.Command {
	case skylink.CmdFlightLoop:
		if !s.flightAllowed {
			s.log.Info().Msg("Flight loop refused")
			return s.sendSignal(skylink.CmdFlightLoop, skylink.ParamNotAllowed)
		}
		s.log.Info().Msg("Flight loop initiated")
		s.leaveAppLoop(stateFlightLoop, flightControlsAck)
		if err := s.sendSignal(skylink.CmdFlightLoop, skylink.ParamAck); err != nil {
			return err
		}
		return s.offer(s.controlSettings)

	case skylink.CmdCalibrateAccel:
		s.log.Info().Msg("Accelerometer calibration started")
		s.leaveAppLoop(stateCalibrateAccel, 0)
		if err := s.sendSignal(skylink.CmdCalibrateAccel, skylink.ParamAck); err != nil {
			return err
		}
		if err := s.sendSignal(skylink.CmdCalibrateAccel, skylink.ParamDone); err != nil {
			return err
		}
		return s.offer(s.calibration)

	case skylink.CmdCalibrateMagnet:
		s.log.Info().Msg("Magnetometer calibration started")
		s.leaveAppLoop(stateCalibrateMagnet, magnetUserCommand)
		return s.sendSignal(skylink.CmdCalibrateMagnet, skylink.ParamAck)

	case skylink.CmdUploadSettings:
		s.uploadFails = 0
		s.leaveAppLoop(stateUploadSettings, 0)
		return s.sendSignal(skylink.CmdUploadSettings, skylink.ParamAck)

	case skylink.CmdUploadRoute:
		s.uploadFails = 0
		s.leaveAppLoop(stateUploadRoute, 0)
		return s.sendSignal(skylink.CmdUploadRoute, skylink.ParamAck)

	case skylink.CmdDownloadSettings:
		s.leaveAppLoop(stateDownloadSettings, 0)
		if err := s.sendSignal(skylink.CmdDownloadSettings, skylink.ParamAck); err != nil {
			return err
		}
		return s.offer(s.controlSettings)

	case skylink.CmdDownloadRoute:
		s.leaveAppLoop(stateDownloadRoute, 0)
		if err := s.sendSignal(skylink.CmdDownloadRoute, skylink.ParamAck); err != nil {
			return err
		}
		return s.offer(s.route)

	case skylink.CmdSystemReset:
		s.log.Info().Msg("System reset requested")
		s.stopTelemetry()
		err := s.sendSignal(skylink.CmdSystemReset, skylink.ParamAck)
		s.closeLater()
		return err
	}

	s.log.Info().Stringer("command", sig.Command).Msg("Procedure not available in simulator")
	return s.sendSignal(sig.Command, skylink.ParamNotAllowed)
}

func (s *Simulator) handleFlightLoop(ev skylink.Event) error {
	switch s.stage {
	case flightControlsAck:
		acked, err := s.awaitAck(s.controlSettings, ev)
		if !acked {
			return err
		}
		if !s.routeAllowed {
			s.stage = flightFinal
			return s.sendSignal(skylink.CmdFlightLoop, skylink.ParamViaRouteNotAllowed)
		}
		s.stage = flightRouteAck
		if err := s.sendSignal(skylink.CmdFlightLoop, skylink.ParamViaRouteAllowed); err != nil {
			return err
		}
		return s.offer(s.route)

	case flightRouteAck:
		acked, err := s.awaitAck(s.route, ev)
		if acked {
			s.stage = flightFinal
		}
		return err

	case flightFinal:
		if skylink.MatchSignal(ev, skylink.CmdFlightLoop, skylink.ParamReady) {
			s.log.Info().Msg("Flight loop running")
			s.stage = flightRunning
			s.startTelemetry()
			s.baseTimer = time.AfterFunc(s.baseDelay, s.sendBase)
			return nil
		}

	case flightRunning:
		return s.handleFlying(ev)
	}
	return s.unexpected(ev)
}

func (s *Simulator) handleFlying(ev skylink.Event) error {
	if sig, ok := skylink.SignalOf(ev); ok && sig.Command == skylink.CmdPingValue {
		return s.send(sig.Message())
	}

	if m, ok := skylink.MessageOf(ev, skylink.TypeAutopilot); ok {
		ap, err := skylink.ParseAutopilotData(m)
		if err != nil {
			return err
		}
		switch ap.Type {
		case skylink.AutopilotTarget:
			if s.debug.ControllerState == skylink.ControllerHoldPosition {
				ap.Type = skylink.AutopilotTargetAck
			} else {
				ap.Type = skylink.AutopilotTargetNotAllowedState
			}
			s.log.Info().Stringer("reply", ap.Type).Msg("Autopilot target received")
			return s.send(ap.Message())
		case skylink.AutopilotBaseAck:
			s.log.Info().Msg("Base position confirmed")
			return nil
		}
		return s.unexpected(ev)
	}

	if m, ok := skylink.MessageOf(ev, skylink.TypeControl); ok {
		c, err := skylink.ParseControlData(m)
		if err != nil {
			return err
		}
		s.debug.ControllerState = c.Command
		s.debug.SetSolverMode(c.Mode)
		if c.Command == skylink.ControllerStop {
			s.log.Info().Msg("Stop command received, leaving flight loop")
			s.state = stateAppLoop
			s.debug.ControllerState = skylink.ControllerApplicationLoop
			return s.sendSignal(skylink.CmdFlightLoop, skylink.ParamBreakAck)
		}
		return nil
	}
	return s.unexpected(ev)
}

func (s *Simulator) handleAccel(ev skylink.Event) error {
	acked, err := s.awaitAck(s.calibration, ev)
	if acked {
		s.log.Info().Msg("Accelerometer calibration done")
		s.enterAppLoop()
	}
	return err
}

func (s *Simulator) handleMagnet(ev skylink.Event) error {
	switch s.stage {
	case magnetUserCommand:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdCalibrateMagnet, skylink.ParamSkip):
			s.log.Info().Msg("Magnetometer calibration skipped")
			err := s.sendSignal(skylink.CmdCalibrateMagnet, skylink.ParamAck)
			s.enterAppLoop()
			return err
		case skylink.MatchSignal(ev, skylink.CmdCalibrateMagnet, skylink.ParamDone):
			s.stage = magnetCalibrationAck
			if err := s.sendSignal(skylink.CmdCalibrateMagnet, skylink.ParamDone); err != nil {
				return err
			}
			return s.offer(s.calibration)
		}

	case magnetCalibrationAck:
		acked, err := s.awaitAck(s.calibration, ev)
		if acked {
			s.log.Info().Msg("Magnetometer calibration done")
			s.enterAppLoop()
		}
		return err
	}
	return s.unexpected(ev)
}

// handleUpload receives a record from the peer. Invalid copies are answered
// with DATA_INVALID until MaxSendFailures, then with TIMEOUT.
func (s *Simulator) handleUpload(ev skylink.Event, dataType skylink.Command) error {
	pe, ok := ev.(*skylink.PayloadEvent)
	if !ok || pe.DataType != dataType {
		s.enterAppLoop()
		return s.unexpected(ev)
	}
	data := pe.Data

	if data.IsValid() {
		s.log.Info().Stringer("type", dataType).Msg("Record uploaded")
		switch rec := data.(type) {
		case *skylink.ControlSettings:
			s.controlSettings = rec
		case *skylink.RouteContainer:
			s.route = rec
		}
		err := s.sendSignal(data.DataCommand(), skylink.ParamAck)
		s.enterAppLoop()
		return err
	}

	s.uploadFails++
	if s.uploadFails >= MaxSendFailures {
		s.log.Warn().Stringer("type", dataType).Msg("Upload timed out")
		err := s.sendSignal(data.DataCommand(), skylink.ParamTimeout)
		s.enterAppLoop()
		return err
	}
	s.log.Warn().Stringer("type", dataType).Int("failures", s.uploadFails).Msg("Uploaded record invalid")
	return s.sendSignal(data.DataCommand(), skylink.ParamDataInvalid)
}

func (s *Simulator) handleDownload(ev skylink.Event, data skylink.SignalPayloadData) error {
	acked, err := s.awaitAck(data, ev)
	if acked {
		s.log.Info().Stringer("type", data.DataType()).Msg("Record downloaded")
		s.enterAppLoop()
	}
	return err
}

// offer sends a record that the peer must acknowledge
func (s *Simulator) offer(data skylink.SignalPayloadData) error {
	s.sendFails = 0
	return s.sendPayload(data)
}

// awaitAck handles the peer's answer to an offered record. Rejections are
// answered with a retransmission until MaxSendFailures, after which the
// exchange is abandoned and the application loop resumes.
func (s *Simulator) awaitAck(data skylink.SignalPayloadData, ev skylink.Event) (bool, error) {
	sig, ok := skylink.SignalOf(ev)
	if !ok || sig.Command != data.DataCommand() {
		return false, s.unexpected(ev)
	}

	switch sig.Parameter {
	case skylink.ParamAck:
		return true, nil
	case skylink.ParamDataInvalid, skylink.ParamTimeout:
		s.sendFails++
		if s.sendFails >= MaxSendFailures {
			s.enterAppLoop()
			return false, fmt.Errorf("sending %s: %w", data.DataType(), ErrRetriesExhausted)
		}
		s.log.Warn().Stringer("type", data.DataType()).Stringer("parameter", sig.Parameter).Msg("Peer rejected record, retransmitting")
		return false, s.sendPayload(data)
	}
	return false, s.unexpected(ev)
}

func (s *Simulator) enterAppLoop() {
	s.state = stateAppLoop
	s.startTelemetry()
}

func (s *Simulator) leaveAppLoop(next state, st stage) {
	s.stopTelemetry()
	s.state = next
	s.stage = st
}

func (s *Simulator) unexpected(ev skylink.Event) error {
	return fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev, s.state)
}

func (s *Simulator) sendSignal(cmd skylink.Command, param skylink.Parameter) error {
	return s.send(skylink.NewSignal(cmd, param).Message())
}

func (s *Simulator) sendPayload(data skylink.SignalPayloadData) error {
	for _, m := range skylink.BuildMessages(data) {
		if err := s.send(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) send(m *skylink.Message) error {
	return s.t.Send(m.Bytes())
}

// closeLater disconnects once the last reply had time to reach the peer
func (s *Simulator) closeLater() {
	time.AfterFunc(s.linger, func() {
		if err := s.t.Disconnect(); err != nil {
			s.log.Warn().Err(err).Msg("Disconnect failed")
		}
	})
}

func (s *Simulator) sendBase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateFlightLoop || s.stage != flightRunning {
		return
	}
	base := &skylink.AutopilotData{
		Latitude:         float64(s.debug.Latitude),
		Longitude:        float64(s.debug.Longitude),
		AbsoluteAltitude: s.debug.AbsoluteAltitude,
		RelativeAltitude: s.debug.RelativeAltitude,
		Type:             skylink.AutopilotBase,
	}
	s.log.Info().Stringer("base", base).Msg("Sending base position")
	if err := s.send(base.Message()); err != nil {
		s.log.Warn().Err(err).Msg("Base position not sent")
	}
}

func copyRoute(rc *skylink.RouteContainer) *skylink.RouteContainer {
	c := *rc
	c.Waypoints = append([]skylink.Waypoint(nil), rc.Waypoints...)
	return &c
}

// noise returns a uniform value in [-1, 1)
func (s *Simulator) noise() float32 {
	return float32(s.rng.Float64()-0.5) * 2
}

func (s *Simulator) startCalibration() *skylink.CalibrationSettings {
	c := skylink.NewCalibrationSettings()
	c.BoardType = skylink.BoardBasicV3
	c.GyroOffset = [3]float32{s.noise() * 400, s.noise() * 400, s.noise() * 200}
	c.Flags = c.Flags.
		With(skylink.CalibFlagGPSConnected, true).
		With(skylink.CalibFlagBatteryMeasurement, true)
	c.SetCRC()
	return c
}

func startControlSettings() *skylink.ControlSettings {
	c := skylink.NewControlSettings()
	c.UAVType = skylink.UAVHexacopterX
	c.InitialSolverMode = int32(skylink.SolverAngleNoYaw)
	c.ManualThrottleMode = skylink.ThrottleDynamic
	c.BatteryType = skylink.Battery4S
	c.ErrorHandlingAction = int32(skylink.ControllerBackToBase)
	c.StickMovementMode = skylink.StickGeographic
	c.MaxRollPitchControlValue = float32(35 * math.Pi / 180)
	c.MaxYawControlValue = float32(135 * math.Pi / 180)
	c.MaxAutoLandingTime = 15
	c.AutoLandingDescendRate = 1
	c.StickPositionRateProp = 5
	c.ThrottleAltRateProp = 3.5
	c.SetCRC()
	return c
}

func (s *Simulator) startDebugData() skylink.DebugData {
	d := skylink.DebugData{
		Roll:             s.noise() * 30 * math.Pi / 180,
		Pitch:            s.noise() * math.Pi / 180,
		Yaw:              s.noise() * 50 * math.Pi / 180,
		Latitude:         50.034 + s.noise()/1000,
		Longitude:        19.940 + s.noise()/1000,
		RelativeAltitude: s.noise() * 30,
		Battery:          89,
		ControllerState:  skylink.ControllerApplicationLoop,
	}
	d.AbsoluteAltitude = s.baseAltitude + d.RelativeAltitude
	d.SetFlag(skylink.DebugFlagGPSFix, true)
	d.SetFlag(skylink.DebugFlagGPSFix3D, true)
	return d
}
