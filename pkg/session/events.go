// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"time"
)

// EventType identifies a session event reported to the application
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventError
	EventMessage
	EventCalibrationNonStatic
	EventDebugUpdated
	EventAutopilotUpdated
	EventCalibrationUpdated
	EventControlUpdated
	EventRouteUpdated
	EventPingUpdated
	EventFlightStarted
	EventFlightEnded
	EventMagnetometerCalibrationStarted
	EventAccelCalibDone
)

var eventNames = [...]string{
	EventConnected:                      "CONNECTED",
	EventDisconnected:                   "DISCONNECTED",
	EventError:                          "ERROR",
	EventMessage:                        "MESSAGE",
	EventCalibrationNonStatic:           "CALIBRATION_NON_STATIC",
	EventDebugUpdated:                   "DEBUG_UPDATED",
	EventAutopilotUpdated:               "AUTOPILOT_UPDATED",
	EventCalibrationUpdated:             "CALIBRATION_UPDATED",
	EventControlUpdated:                 "CONTROL_UPDATED",
	EventRouteUpdated:                   "ROUTE_UPDATED",
	EventPingUpdated:                    "PING_UPDATED",
	EventFlightStarted:                  "FLIGHT_STARTED",
	EventFlightEnded:                    "FLIGHT_ENDED",
	EventMagnetometerCalibrationStarted: "MAGNETOMETER_CALIBRATION_STARTED",
	EventAccelCalibDone:                 "ACCEL_CALIB_DONE",
}

// String returns the event type name
func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EVENT(%d)", int(t))
}

// Event is a session notification. Data holds the record behind *_UPDATED
// events (*skylink.DebugData, *skylink.CalibrationSettings, ...) and the
// one-way delay as a time.Duration for PING_UPDATED.
type Event struct {
	Type    EventType
	Time    time.Time
	Message string
	Err     error
	Data    any
}

// String formats the event for logs
func (e Event) String() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	case e.Data != nil:
		return fmt.Sprintf("%s: %v", e.Type, e.Data)
	}
	return e.Type.String()
}

// Listener receives session events. Events are delivered synchronously from
// engine code; a listener must not call back into the engine on the same
// goroutine.
type Listener interface {
	OnSessionEvent(ev Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ev Event)

// OnSessionEvent calls f(ev)
func (f ListenerFunc) OnSessionEvent(ev Event) { f(ev) }

// UserEvent is an operator intent routed to the action that owns it
type UserEvent int

const (
	UserEndFlightLoop UserEvent = iota
	UserDoneMagnetCalibration
	UserCancelMagnetCalibration
)

// String returns the user event name
func (u UserEvent) String() string {
	switch u {
	case UserEndFlightLoop:
		return "END_FLIGHT_LOOP"
	case UserDoneMagnetCalibration:
		return "DONE_MAGNETOMETER_CALIBRATION"
	case UserCancelMagnetCalibration:
		return "CANCEL_MAGNETOMETER_CALIBRATION"
	default:
		return fmt.Sprintf("USER_EVENT(%d)", int(u))
	}
}

// Owner returns the action type allowed to receive the event
func (u UserEvent) Owner() ActionType {
	switch u {
	case UserEndFlightLoop:
		return ActionFlightLoop
	case UserDoneMagnetCalibration, UserCancelMagnetCalibration:
		return ActionMagnetCalibration
	default:
		return ActionIdle
	}
}
