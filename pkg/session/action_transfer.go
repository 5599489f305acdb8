// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "github.com/Thermoquad/skylink/pkg/skylink"

type transferState int

const (
	transferInitialCommand transferState = iota
	transferUploadingData
	transferWaitingForData
	transferDone
)

func (s transferState) String() string {
	switch s {
	case transferInitialCommand:
		return "INITIAL_COMMAND"
	case transferUploadingData:
		return "UPLOADING_DATA"
	case transferWaitingForData:
		return "WAITING_FOR_DATA"
	default:
		return "DONE"
	}
}

// recordName returns the operator facing name of a record kind
func recordName(dataType skylink.Command) string {
	switch dataType {
	case skylink.CmdRouteContainerData:
		return "Route Container settings"
	case skylink.CmdCalibrationSettingsData:
		return "Calibration settings"
	default:
		return "Control settings"
	}
}

// uploadAction pushes a record to the board, retransmitting it when the
// board reports it invalid or timed out
type uploadAction struct {
	base
	state   transferState
	command skylink.Command
	data    skylink.SignalPayloadData
}

func newUpload(e *Engine, t ActionType, cmd skylink.Command, data skylink.SignalPayloadData) *uploadAction {
	return &uploadAction{base: base{e: e, typ: t}, command: cmd, data: data}
}

func (a *uploadAction) State() string { return a.state.String() }

func (a *uploadAction) Start() error {
	a.state = transferInitialCommand
	a.failures = 0
	a.e.stopPing()
	return a.sendExpect(a.command, skylink.ParamStart)
}

// transmit sends the record and waits for the board's verdict on it
func (a *uploadAction) transmit() error {
	if err := a.sendPayload(a.data); err != nil {
		return err
	}
	a.expect(a.data.DataCommand(), PayloadSignalTimeout)
	return nil
}

func (a *uploadAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}

	dataCmd := a.data.DataCommand()
	switch a.state {
	case transferInitialCommand:
		if skylink.MatchSignal(ev, a.command, skylink.ParamAck) {
			a.state = transferUploadingData
			return a.transmit()
		}

	case transferUploadingData:
		switch {
		case skylink.MatchSignal(ev, dataCmd, skylink.ParamAck):
			a.state = transferDone
			a.report(updateEvent(a.data), "", a.data)
			a.report(EventMessage, recordName(a.data.DataType())+" uploaded successfully!", nil)
			a.finish()
			return nil

		case skylink.MatchSignal(ev, dataCmd, skylink.ParamDataInvalid),
			skylink.MatchSignal(ev, dataCmd, skylink.ParamTimeout):
			a.failures++
			a.e.log.Warn().Str("action", a.typ.String()).Int("failures", a.failures).Msg("Upload rejected, retransmitting")
			if err := a.transmit(); err != nil {
				return err
			}
			if a.failures >= MaxPayloadRetries {
				a.state = transferDone
				a.abort(&MaxRetriesExceededError{Command: dataCmd, Attempts: a.failures})
			}
			return nil
		}
	}
	return a.unexpected(a.state, ev)
}

// downloadAction requests a record from the board and validates it before
// acknowledging. Invalid records and expired waits share one retry count.
type downloadAction struct {
	base
	state   transferState
	command skylink.Command
}

func newDownload(e *Engine, t ActionType, cmd skylink.Command) *downloadAction {
	return &downloadAction{base: base{e: e, typ: t}, command: cmd}
}

func (a *downloadAction) State() string { return a.state.String() }

func (a *downloadAction) Start() error {
	a.state = transferInitialCommand
	a.failures = 0
	a.e.stopPing()
	return a.sendExpect(a.command, skylink.ParamStart)
}

// dataCommand returns the signal command of the requested record
func (a *downloadAction) dataCommand() skylink.Command {
	if a.command == skylink.CmdDownloadRoute {
		return skylink.CmdRouteContainer
	}
	return skylink.CmdControlSettings
}

// expected reports whether data is the record kind this download asked for
func (a *downloadAction) expected(data skylink.SignalPayloadData) bool {
	switch data.(type) {
	case *skylink.ControlSettings:
		return a.command == skylink.CmdDownloadSettings
	case *skylink.RouteContainer:
		return a.command == skylink.CmdDownloadRoute
	}
	return false
}

func (a *downloadAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}

	switch a.state {
	case transferInitialCommand:
		if skylink.MatchSignal(ev, a.command, skylink.ParamAck) {
			a.state = transferWaitingForData
			a.awaitPayload(a.dataCommand())
			return nil
		}

	case transferWaitingForData:
		pe, ok := ev.(*skylink.PayloadEvent)
		if !ok || !a.expected(pe.Data) {
			break
		}
		data := pe.Data
		if !data.IsValid() {
			a.failures++
			if err := a.send(data.DataCommand(), skylink.ParamDataInvalid); err != nil {
				return err
			}
			if a.failures >= MaxPayloadRetries {
				a.state = transferDone
				a.abort(&MaxRetriesExceededError{Command: data.DataCommand(), Attempts: a.failures})
				return nil
			}
			a.rearmPayload(data.DataCommand())
			return nil
		}
		if err := a.send(data.DataCommand(), skylink.ParamAck); err != nil {
			return err
		}
		a.state = transferDone
		a.report(updateEvent(data), "", data)
		a.report(EventMessage, recordName(data.DataType())+" downloaded successfully!", nil)
		a.finish()
		return nil
	}
	return a.unexpected(a.state, ev)
}
