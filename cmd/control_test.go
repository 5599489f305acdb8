// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/skylink"
)

func newTestControlModel(t *testing.T) controlModel {
	t.Helper()
	mgr := session.NewManager(scheduler.NewManual())
	return initialControlModel(newConnectionManager(mgr, &link{name: "test"}), "test")
}

// ============================================================
// Session Event Tests
// ============================================================

func TestControlModel_SessionEvents(t *testing.T) {
	m := newTestControlModel(t)

	m.processSessionEvent(session.Event{Type: session.EventConnected})
	if !m.connected || !m.everConnected {
		t.Fatal("expected the model to be connected")
	}

	cs := &skylink.CalibrationSettings{}
	m.processSessionEvent(session.Event{Type: session.EventCalibrationUpdated, Data: cs})
	if m.calibration != cs {
		t.Error("expected calibration to be kept")
	}

	m.processSessionEvent(session.Event{Type: session.EventPingUpdated, Data: 12 * time.Millisecond})
	if m.pingDelay != 12*time.Millisecond {
		t.Errorf("expected 12ms ping, got %v", m.pingDelay)
	}

	m.processSessionEvent(session.Event{Type: session.EventFlightStarted})
	if !m.flying {
		t.Fatal("expected flying after FLIGHT_STARTED")
	}

	m.focusedField = focusThrottleInput
	m.processSessionEvent(session.Event{Type: session.EventDisconnected})
	if m.connected || m.flying {
		t.Error("expected disconnect to clear connected and flying")
	}
	if m.focusedField != focusActionList {
		t.Error("expected focus to return to the action list")
	}
}

func TestControlModel_ErrorIsLogged(t *testing.T) {
	m := newTestControlModel(t)
	m.processSessionEvent(session.Event{Type: session.EventError, Err: errors.New("no answer")})

	if len(m.errorLog) != 1 || !m.errorLog[0].isError {
		t.Fatalf("expected one error entry, got %v", m.errorLog)
	}
}

// ============================================================
// Throttle Tests
// ============================================================

func TestControlModel_SetThrottle(t *testing.T) {
	tests := []struct {
		name     string
		flying   bool
		input    string
		want     float32
		accepted bool
	}{
		{"not flying", false, "50", 0, false},
		{"half", true, "50", 0.5, true},
		{"empty uses placeholder", true, "", 0, true},
		{"out of range", true, "150", 0, false},
		{"not a number", true, "abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestControlModel(t)
			m.flying = tt.flying
			m.throttleInput.SetValue(tt.input)
			m.setThrottle()

			c := m.connMgr.mgr.ControlData()
			if c.Throttle != tt.want {
				t.Errorf("expected throttle %v, got %v", tt.want, c.Throttle)
			}
			if tt.accepted && c.Command != skylink.ControllerManual {
				t.Errorf("expected manual command, got %s", c.Command)
			}
			if len(m.errorLog) != 1 || m.errorLog[0].isError == tt.accepted {
				t.Errorf("unexpected log %v", m.errorLog)
			}
		})
	}
}

func TestControlModel_StopMotors(t *testing.T) {
	m := newTestControlModel(t)
	m.flying = true
	m.throttleInput.SetValue("80")
	m.setThrottle()
	m.stopMotors()

	c := m.connMgr.mgr.ControlData()
	if c.Command != skylink.ControllerStop {
		t.Errorf("expected stop command, got %s", c.Command)
	}
	if m.throttleInput.Value() != "" {
		t.Errorf("expected the throttle input to be cleared, got %q", m.throttleInput.Value())
	}
}
