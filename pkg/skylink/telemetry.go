// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"fmt"
	"math"
)

// ControllerCommand is the control mode requested by the ground station and
// reported back as the controller state
type ControllerCommand int16

const (
	ControllerIdle            ControllerCommand = 0
	ControllerManual          ControllerCommand = 1000
	ControllerAutolanding     ControllerCommand = 1100
	ControllerAutolandingAP   ControllerCommand = 1200
	ControllerHoldAltitude    ControllerCommand = 1300
	ControllerHoldPosition    ControllerCommand = 1400
	ControllerBackToBase      ControllerCommand = 1500
	ControllerViaRoute        ControllerCommand = 1600
	ControllerStop            ControllerCommand = 2000
	ControllerApplicationLoop ControllerCommand = 3000
	ControllerErrorConnection ControllerCommand = 6100
	ControllerErrorJoystick   ControllerCommand = 6200
	ControllerErrorExternal   ControllerCommand = 6300
)

// String returns a display name for the controller state
func (c ControllerCommand) String() string {
	switch c {
	case ControllerIdle:
		return "Idle"
	case ControllerManual:
		return "Manual"
	case ControllerAutolanding:
		return "Auto landing"
	case ControllerAutolandingAP:
		return "Auto landing AP"
	case ControllerHoldAltitude:
		return "Hold altitude"
	case ControllerHoldPosition:
		return "Hold position"
	case ControllerBackToBase:
		return "Back to base"
	case ControllerViaRoute:
		return "Via route"
	case ControllerStop:
		return "Stop"
	case ControllerApplicationLoop:
		return "Application loop"
	case ControllerErrorConnection:
		return "Error connection"
	case ControllerErrorJoystick:
		return "Error joystick"
	case ControllerErrorExternal:
		return "Error external"
	default:
		return fmt.Sprintf("Unknown(%d)", int16(c))
	}
}

// SolverMode defines how manual attitude commands are interpreted
type SolverMode uint8

const (
	SolverStabilization SolverMode = 0
	SolverAngleNoYaw    SolverMode = 1
	SolverAngle         SolverMode = 2
	SolverHeadless      SolverMode = 3
)

// String returns the solver mode name
func (m SolverMode) String() string {
	switch m {
	case SolverStabilization:
		return "STABILIZATION"
	case SolverAngleNoYaw:
		return "ANGLE_NO_YAW"
	case SolverAngle:
		return "ANGLE"
	case SolverHeadless:
		return "HEADLESS"
	default:
		return fmt.Sprintf("SOLVER(%d)", uint8(m))
	}
}

// DebugData flag bits
const (
	DebugFlagSolver1            = 0
	DebugFlagSolver2            = 1
	DebugFlagAutolandingEnabled = 2
	DebugFlagAutopilotEnabled   = 3
	DebugFlagErrorHandling      = 4
	DebugFlagLowBatteryVoltage  = 5
	DebugFlagGPSFix3D           = 6
	DebugFlagGPSFix             = 7
)

// DebugData is the telemetry frame streamed by the flight controller
type DebugData struct {
	Roll, Pitch, Yaw    float32
	Latitude, Longitude float32
	RelativeAltitude    float32
	AbsoluteAltitude    float32
	VerticalVelocity    float32
	Velocity            float32
	UsedThrottle        float32
	DistanceToBase      float32
	ControllerState     ControllerCommand
	Flags               uint8
	Battery             uint8
}

// ParseDebugData decodes a CONTROL frame sent by the flight controller
func ParseDebugData(m *Message) (*DebugData, error) {
	if m.Type() != TypeControl {
		return nil, fmt.Errorf("debug data needs a CONTROL message, got %s", m.Type())
	}
	d := &DebugData{}
	if err := decodeRecord(m.Payload(), d); err != nil {
		return nil, err
	}
	return d, nil
}

// Message encodes the telemetry into a zero padded CONTROL frame
func (d *DebugData) Message() *Message {
	return NewMessage(TypeControl, padTo(encodeRecord(d), ControlPayloadSize))
}

// Flag reports a DebugFlag* bit
func (d *DebugData) Flag(id int) bool {
	return id >= 0 && id < 8 && d.Flags&(1<<uint(id)) != 0
}

// SetFlag sets or clears a DebugFlag* bit
func (d *DebugData) SetFlag(id int, state bool) {
	if id < 0 || id >= 8 {
		return
	}
	if state {
		d.Flags |= 1 << uint(id)
	} else {
		d.Flags &^= 1 << uint(id)
	}
}

// SolverMode returns the solver mode from the two low flag bits
func (d *DebugData) SolverMode() SolverMode {
	return SolverMode(d.Flags & 0x03)
}

// SetSolverMode stores the solver mode in the two low flag bits
func (d *DebugData) SetSolverMode(m SolverMode) {
	d.Flags = d.Flags&0xFC | uint8(m)&0x03
}

// NormalYaw returns yaw wrapped into [0, 2π]
func (d *DebugData) NormalYaw() float32 {
	yaw := d.Yaw
	if yaw > 2*math.Pi {
		yaw -= 2 * math.Pi
	} else if yaw < 0 {
		yaw += 2 * math.Pi
	}
	return yaw
}

// String formats the telemetry for logs
func (d *DebugData) String() string {
	return fmt.Sprintf("DebugData{roll=%.3f pitch=%.3f yaw=%.3f lat=%.6f lon=%.6f alt=%.1f state=%s battery=%d}",
		d.Roll, d.Pitch, d.Yaw, d.Latitude, d.Longitude, d.RelativeAltitude, d.ControllerState, d.Battery)
}

// ControlData is the control frame sent by the ground station during flight
type ControlData struct {
	Roll, Pitch, Yaw float32
	Throttle         float32
	Command          ControllerCommand
	Mode             SolverMode
}

// NewControlData returns a neutral manual control frame
func NewControlData() *ControlData {
	return &ControlData{Command: ControllerManual, Mode: SolverAngleNoYaw}
}

// ParseControlData decodes a CONTROL frame sent by the ground station
func ParseControlData(m *Message) (*ControlData, error) {
	if m.Type() != TypeControl {
		return nil, fmt.Errorf("control data needs a CONTROL message, got %s", m.Type())
	}
	c := &ControlData{}
	if err := decodeRecord(m.Payload(), c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetStop zeroes the attitude and throttle and requests an immediate stop
func (c *ControlData) SetStop() {
	c.Roll, c.Pitch, c.Yaw, c.Throttle = 0, 0, 0, 0
	c.Command = ControllerStop
}

// Message encodes the control into a zero padded CONTROL frame
func (c *ControlData) Message() *Message {
	return NewMessage(TypeControl, padTo(encodeRecord(c), ControlPayloadSize))
}

// String formats the control frame for logs
func (c *ControlData) String() string {
	return fmt.Sprintf("ControlData{roll=%.3f pitch=%.3f yaw=%.3f throttle=%.3f command=%s mode=%s}",
		c.Roll, c.Pitch, c.Yaw, c.Throttle, c.Command, c.Mode)
}

// AutopilotType tags the purpose of an autopilot frame
type AutopilotType int32

const (
	AutopilotInvalid                AutopilotType = 1000
	AutopilotBase                   AutopilotType = 2000
	AutopilotBaseAck                AutopilotType = 2100
	AutopilotTarget                 AutopilotType = 3000
	AutopilotTargetAck              AutopilotType = 3100
	AutopilotTargetNotAllowedState  AutopilotType = 3200
	AutopilotTargetNotAllowedConfig AutopilotType = 3300
)

// String returns the autopilot type name
func (t AutopilotType) String() string {
	switch t {
	case AutopilotBase:
		return "BASE"
	case AutopilotBaseAck:
		return "BASE_ACK"
	case AutopilotTarget:
		return "TARGET"
	case AutopilotTargetAck:
		return "TARGET_ACK"
	case AutopilotTargetNotAllowedState:
		return "TARGET_NOT_ALLOWED_STATE"
	case AutopilotTargetNotAllowedConfig:
		return "TARGET_NOT_ALLOWED_SETTINGS"
	default:
		return "INVALID_TYPE"
	}
}

// Autopilot flag bits
const (
	AutopilotFlagAltitudeDefined  = 0
	AutopilotFlagAutolandAtTarget = 1
)

// AutopilotData carries base and target positions in both directions
type AutopilotData struct {
	Latitude         float64
	Longitude        float64
	AbsoluteAltitude float32
	RelativeAltitude float32
	Type             AutopilotType
	Flags            Flags
}

// ParseAutopilotData decodes an AUTOPILOT frame
func ParseAutopilotData(m *Message) (*AutopilotData, error) {
	if m.Type() != TypeAutopilot {
		return nil, fmt.Errorf("autopilot data needs an AUTOPILOT message, got %s", m.Type())
	}
	a := &AutopilotData{}
	if err := decodeRecord(m.Payload(), a); err != nil {
		return nil, err
	}
	return a, nil
}

// Message encodes the autopilot frame
func (a *AutopilotData) Message() *Message {
	return NewMessage(TypeAutopilot, encodeRecord(a))
}

// String formats the autopilot frame for logs
func (a *AutopilotData) String() string {
	return fmt.Sprintf("AutopilotData{%s lat=%.7f lon=%.7f abs=%.1f rel=%.1f}",
		a.Type, a.Latitude, a.Longitude, a.AbsoluteAltitude, a.RelativeAltitude)
}

// padTo zero pads b to size
func padTo(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}
