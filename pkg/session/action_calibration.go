// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "github.com/Thermoquad/skylink/pkg/skylink"

type calibrationState int

const (
	calibInitialCommand calibrationState = iota
	calibWaitingForUserCommand
	calibWaitingForCalibration
	calibWaitingForCalibrationData
	calibWaitingForCancelAck
	calibDone
)

func (s calibrationState) String() string {
	switch s {
	case calibInitialCommand:
		return "INITIAL_COMMAND"
	case calibWaitingForUserCommand:
		return "WAITING_FOR_USER_COMMAND"
	case calibWaitingForCalibration:
		return "WAITING_FOR_CALIBRATION"
	case calibWaitingForCalibrationData:
		return "WAITING_FOR_CALIBRATION_DATA"
	case calibWaitingForCancelAck:
		return "WAITING_FOR_CANCEL_ACK"
	default:
		return "DONE"
	}
}

// receiveCalibration acknowledges a valid calibration record, or asks the
// board to send it again. It reports whether the record was accepted.
func (b *base) receiveCalibration(cs *skylink.CalibrationSettings) (bool, error) {
	if !cs.IsValid() {
		return false, b.send(skylink.CmdCalibrationSettings, skylink.ParamDataInvalid)
	}
	if err := b.send(skylink.CmdCalibrationSettings, skylink.ParamAck); err != nil {
		return false, err
	}
	b.report(EventCalibrationUpdated, "", cs)
	return true, nil
}

// accelCalibrationAction asks the board to calibrate its accelerometer and
// stores the resulting calibration
type accelCalibrationAction struct {
	base
	state calibrationState
}

func newAccelCalibration(e *Engine) *accelCalibrationAction {
	return &accelCalibrationAction{base: base{e: e, typ: ActionAccelCalibration}}
}

func (a *accelCalibrationAction) State() string { return a.state.String() }

func (a *accelCalibrationAction) Start() error {
	a.state = calibInitialCommand
	a.e.stopPing()
	return a.sendExpect(skylink.CmdCalibrateAccel, skylink.ParamStart)
}

func (a *accelCalibrationAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}

	switch a.state {
	case calibInitialCommand:
		if skylink.MatchSignal(ev, skylink.CmdCalibrateAccel, skylink.ParamAck) {
			a.state = calibWaitingForCalibration
			a.expect(skylink.CmdCalibrateAccel, PayloadSignalTimeout)
			return nil
		}

	case calibWaitingForCalibration:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdCalibrateAccel, skylink.ParamDone):
			a.state = calibWaitingForCalibrationData
			a.awaitPayload(skylink.CmdCalibrationSettings)
			return nil
		case skylink.MatchSignal(ev, skylink.CmdCalibrateAccel, skylink.ParamNonStatic):
			a.state = calibDone
			a.report(EventMessage, "Accelerometer calibration non static!", nil)
			a.finish()
			return nil
		}

	case calibWaitingForCalibrationData:
		if cs, ok := payloadOf[*skylink.CalibrationSettings](ev); ok {
			accepted, err := a.receiveCalibration(cs)
			if !accepted {
				a.rearmPayload(skylink.CmdCalibrationSettings)
				return err
			}
			a.state = calibDone
			a.report(EventAccelCalibDone, "Accelerometer calibration successful", nil)
			a.finish()
			return nil
		}
	}
	return a.unexpected(a.state, ev)
}

// magnetCalibrationAction runs a magnetometer calibration that the operator
// completes or cancels while rotating the airframe
type magnetCalibrationAction struct {
	base
	state calibrationState
}

func newMagnetCalibration(e *Engine) *magnetCalibrationAction {
	return &magnetCalibrationAction{base: base{e: e, typ: ActionMagnetCalibration}}
}

func (a *magnetCalibrationAction) State() string { return a.state.String() }

func (a *magnetCalibrationAction) Start() error {
	a.state = calibInitialCommand
	a.e.stopPing()
	return a.sendExpect(skylink.CmdCalibrateMagnet, skylink.ParamStart)
}

func (a *magnetCalibrationAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}

	switch a.state {
	case calibInitialCommand:
		if skylink.MatchSignal(ev, skylink.CmdCalibrateMagnet, skylink.ParamAck) {
			a.state = calibWaitingForUserCommand
			a.report(EventMagnetometerCalibrationStarted, "", nil)
			return nil
		}

	case calibWaitingForCalibration:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdCalibrateMagnet, skylink.ParamDone):
			a.state = calibWaitingForCalibrationData
			a.awaitPayload(skylink.CmdCalibrationSettings)
			return nil
		case skylink.MatchSignal(ev, skylink.CmdCalibrateMagnet, skylink.ParamFail):
			a.state = calibDone
			a.report(EventMessage, "Bad data acquired during magnetometer calibration!", nil)
			a.finish()
			return nil
		}

	case calibWaitingForCalibrationData:
		if cs, ok := payloadOf[*skylink.CalibrationSettings](ev); ok {
			accepted, err := a.receiveCalibration(cs)
			if !accepted {
				a.rearmPayload(skylink.CmdCalibrationSettings)
				return err
			}
			a.state = calibDone
			a.report(EventMessage, "Magnetometer calibration successful!", nil)
			a.finish()
			return nil
		}

	case calibWaitingForCancelAck:
		if skylink.MatchSignal(ev, skylink.CmdCalibrateMagnet, skylink.ParamAck) {
			a.state = calibDone
			a.report(EventMessage, "Magnetometer calibration canceled.", nil)
			a.finish()
			return nil
		}
	}
	return a.unexpected(a.state, ev)
}

// NotifyUserEvent finishes or cancels the rotation phase
func (a *magnetCalibrationAction) NotifyUserEvent(ev UserEvent) error {
	if a.state != calibWaitingForUserCommand {
		return a.base.NotifyUserEvent(ev)
	}
	switch ev {
	case UserDoneMagnetCalibration:
		a.state = calibWaitingForCalibration
		return a.sendExpect(skylink.CmdCalibrateMagnet, skylink.ParamDone)
	case UserCancelMagnetCalibration:
		a.state = calibWaitingForCancelAck
		return a.sendExpect(skylink.CmdCalibrateMagnet, skylink.ParamSkip)
	}
	return a.base.NotifyUserEvent(ev)
}
