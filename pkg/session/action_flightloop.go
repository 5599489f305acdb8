// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "github.com/Thermoquad/skylink/pkg/skylink"

type flightState int

const (
	flightInitialCommand flightState = iota
	flightWaitingForControls
	flightWaitingForRouteCommand
	flightWaitingForRoute
	flightFlying
	flightBreaking
	flightDone
)

func (s flightState) String() string {
	switch s {
	case flightInitialCommand:
		return "INITIAL_COMMAND"
	case flightWaitingForControls:
		return "WAITING_FOR_CONTROLS"
	case flightWaitingForRouteCommand:
		return "WAITING_FOR_ROUTE_COMMAND"
	case flightWaitingForRoute:
		return "WAITING_FOR_ROUTE"
	case flightFlying:
		return "FLYING"
	case flightBreaking:
		return "BREAKING"
	default:
		return "DONE"
	}
}

// Flight end reasons reported with EventFlightEnded
const (
	FlightEndedByUser  = "by user."
	FlightEndedByBoard = "by board."
)

// flightLoopAction receives the control settings and optional route for a
// flight, then streams control frames until either side ends the flight
type flightLoopAction struct {
	base
	state flightState
}

func newFlightLoop(e *Engine) *flightLoopAction {
	return &flightLoopAction{base: base{e: e, typ: ActionFlightLoop}}
}

func (a *flightLoopAction) State() string { return a.state.String() }

func (a *flightLoopAction) Start() error {
	a.state = flightInitialCommand
	a.e.stopPing()
	return a.sendExpect(skylink.CmdFlightLoop, skylink.ParamStart)
}

func (a *flightLoopAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}

	switch a.state {
	case flightInitialCommand:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdFlightLoop, skylink.ParamAck):
			a.state = flightWaitingForControls
			a.awaitPayload(skylink.CmdControlSettings)
			return nil
		case skylink.MatchSignal(ev, skylink.CmdFlightLoop, skylink.ParamNotAllowed):
			a.state = flightDone
			a.report(EventMessage, "Flight loop not allowed!", nil)
			a.finish()
			return nil
		}

	case flightWaitingForControls:
		if cs, ok := payloadOf[*skylink.ControlSettings](ev); ok {
			if !cs.IsValid() {
				a.rearmPayload(skylink.CmdControlSettings)
				return a.send(skylink.CmdControlSettings, skylink.ParamDataInvalid)
			}
			a.state = flightWaitingForRouteCommand
			a.report(EventControlUpdated, "", cs)
			if err := a.send(skylink.CmdControlSettings, skylink.ParamAck); err != nil {
				return err
			}
			a.expect(skylink.CmdFlightLoop, DefaultSignalTimeout)
			return nil
		}

	case flightWaitingForRouteCommand:
		switch {
		case skylink.MatchSignal(ev, skylink.CmdFlightLoop, skylink.ParamViaRouteAllowed):
			a.state = flightWaitingForRoute
			a.awaitPayload(skylink.CmdRouteContainer)
			return nil
		case skylink.MatchSignal(ev, skylink.CmdFlightLoop, skylink.ParamViaRouteNotAllowed):
			return a.startFlying()
		}

	case flightWaitingForRoute:
		if rc, ok := payloadOf[*skylink.RouteContainer](ev); ok {
			if !rc.IsValid() {
				a.rearmPayload(skylink.CmdRouteContainer)
				return a.send(skylink.CmdRouteContainer, skylink.ParamDataInvalid)
			}
			a.report(EventRouteUpdated, "", rc)
			if err := a.send(skylink.CmdRouteContainer, skylink.ParamAck); err != nil {
				return err
			}
			return a.startFlying()
		}

	case flightFlying, flightBreaking:
		if s, ok := skylink.SignalOf(ev); ok && s.Command == skylink.CmdFlightLoop {
			a.endFlight(s)
			return nil
		}
	}
	return a.unexpected(a.state, ev)
}

// NotifyUserEvent moves a running flight to BREAKING; the control task sends
// stop frames until the board acknowledges
func (a *flightLoopAction) NotifyUserEvent(ev UserEvent) error {
	if ev != UserEndFlightLoop || a.state != flightFlying {
		return a.base.NotifyUserEvent(ev)
	}
	a.state = flightBreaking
	a.e.controlStop = true
	return nil
}

func (a *flightLoopAction) startFlying() error {
	a.state = flightFlying
	a.e.startPing()
	a.e.startControl()
	a.report(EventFlightStarted, "", nil)
	return a.send(skylink.CmdFlightLoop, skylink.ParamReady)
}

func (a *flightLoopAction) endFlight(s skylink.SignalData) {
	a.e.stopPing()
	a.e.stopControl()

	reason := FlightEndedByBoard
	if a.state == flightBreaking && s.Parameter == skylink.ParamBreakAck {
		reason = FlightEndedByUser
	}
	a.state = flightDone
	a.report(EventFlightEnded, reason, nil)
	a.finish()
}
