// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "github.com/Thermoquad/skylink/pkg/skylink"

// appLoopAction idles between operations, forwarding telemetry and keeping
// the ping running. It is always done so any other action may replace it.
type appLoopAction struct {
	base
}

func newAppLoop(e *Engine) *appLoopAction {
	return &appLoopAction{base{e: e, typ: ActionApplicationLoop, done: true}}
}

func (a *appLoopAction) State() string { return "RUNNING" }

func (a *appLoopAction) Start() error {
	a.e.startPing()
	return nil
}

func (a *appLoopAction) HandleEvent(ev skylink.Event) error {
	if a.telemetry(ev) {
		return nil
	}
	return &UnexpectedEventError{Action: a.typ, State: a.State(), Event: ev.String()}
}
