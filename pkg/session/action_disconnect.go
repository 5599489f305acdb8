// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "github.com/Thermoquad/skylink/pkg/skylink"

// disconnectAction breaks the application loop and closes the link once the
// peer acknowledges
type disconnectAction struct {
	base
}

func newDisconnect(e *Engine) *disconnectAction {
	return &disconnectAction{base{e: e, typ: ActionDisconnect}}
}

func (a *disconnectAction) State() string {
	if a.done {
		return "DONE"
	}
	return "WAITING_FOR_BREAK_ACK"
}

func (a *disconnectAction) Start() error {
	a.e.stopPing()
	return a.sendExpect(skylink.CmdAppLoop, skylink.ParamBreak)
}

// signalTimeout closes the link when the break is never acknowledged
func (a *disconnectAction) signalTimeout() {
	a.endWait()
	a.fail(&SignalTimeoutError{Action: a.typ, Command: skylink.CmdAppLoop})
	a.done = true
	a.e.closeLink()
}

func (a *disconnectAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}
	if skylink.MatchSignal(ev, skylink.CmdAppLoop, skylink.ParamBreakAck) {
		a.done = true
		a.e.closeLink()
		return nil
	}
	return &UnexpectedEventError{Action: a.typ, State: a.State(), Event: ev.String()}
}
