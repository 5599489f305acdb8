// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

type connectState int

const (
	connectInitialCommand connectState = iota
	connectProtocolVersion
	connectWaitingForCalibration
	connectWaitingForCalibrationData
	connectFinalCommand
	connectDone
)

func (s connectState) String() string {
	switch s {
	case connectInitialCommand:
		return "INITIAL_COMMAND"
	case connectProtocolVersion:
		return "PROTOCOL_VERSION"
	case connectWaitingForCalibration:
		return "WAITING_FOR_CALIBRATION"
	case connectWaitingForCalibrationData:
		return "WAITING_FOR_CALIBRATION_DATA"
	case connectFinalCommand:
		return "FINAL_COMMAND"
	default:
		return "DONE"
	}
}

// connectAction performs the start handshake, protocol version check and
// calibration download that open a session
type connectAction struct {
	base
	state connectState
}

func newConnect(e *Engine) *connectAction {
	return &connectAction{base: base{e: e, typ: ActionConnect}}
}

func (a *connectAction) State() string { return a.state.String() }

func (a *connectAction) Start() error {
	a.state = connectInitialCommand
	a.e.startTask(a.e.timeoutTask, ConnectTimeoutFrequency)
	return a.send(skylink.CmdStart, skylink.ParamStart)
}

func (a *connectAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}

	switch a.state {
	case connectInitialCommand:
		if skylink.MatchSignal(ev, skylink.CmdStart, skylink.ParamAck) {
			a.e.stopTask(a.e.timeoutTask)
			a.state = connectProtocolVersion
			return nil
		}

	case connectProtocolVersion:
		if s, ok := skylink.SignalOf(ev); ok && s.Command == skylink.CmdProtocolVersionValue {
			if s.Value() == skylink.ProtocolVersion {
				a.state = connectWaitingForCalibration
				return a.send(skylink.CmdProtocolVersion, skylink.ParamAck)
			}
			want := skylink.ProtocolVersion
			a.fail(fmt.Errorf("unsupported protocol version 0x%08X, expected 0x%08X",
				uint32(s.Value()), uint32(want)))
			return a.send(skylink.CmdProtocolVersion, skylink.ParamNotAllowed)
		}

	case connectWaitingForCalibration:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdCalibrationSettings, skylink.ParamReady):
			a.state = connectWaitingForCalibrationData
			return nil
		case skylink.MatchSignal(ev, skylink.CmdCalibrationSettings, skylink.ParamNonStatic):
			a.report(EventCalibrationNonStatic, "", nil)
			return nil
		case skylink.MatchSignal(ev, skylink.CmdStart, skylink.ParamAck):
			// the peer may repeat its start acknowledgement
			return nil
		}

	case connectWaitingForCalibrationData:
		if cs, ok := payloadOf[*skylink.CalibrationSettings](ev); ok {
			if !cs.IsValid() {
				return a.send(skylink.CmdCalibrationSettings, skylink.ParamDataInvalid)
			}
			if err := a.send(skylink.CmdCalibrationSettings, skylink.ParamAck); err != nil {
				return err
			}
			a.report(EventCalibrationUpdated, "", cs)
			a.state = connectFinalCommand
			return a.send(skylink.CmdAppLoop, skylink.ParamStart)
		}

	case connectFinalCommand:
		if skylink.MatchSignal(ev, skylink.CmdAppLoop, skylink.ParamAck) {
			a.state = connectDone
			a.report(EventConnected, "", nil)
			a.finish()
			return nil
		}
	}
	return a.unexpected(a.state, ev)
}
