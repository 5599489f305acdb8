// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package skylink implements the Skylink binary link protocol spoken between a
// ground station and a flight controller.
//
// A frame is a 4 byte preamble (three marker bytes followed by 0x00), a fixed
// size payload selected by the marker and a little-endian CRC-16 over the
// payload. Records too large for one frame travel as a sequence of signal
// frames carrying a chunk header, and are reassembled by the Dispatcher.
package skylink

// Frame layout
const (
	PreambleSize      = 4
	SignalCommandSize = 4
	CRCSize           = 2

	// SignalConstraintSize is the signal payload: command id + parameter,
	// or command id + chunk count + chunk index for data chunks
	SignalConstraintSize = 8
	// SignalDataPayloadSize is the data carried by one chunk
	SignalDataPayloadSize = 50

	MaxMessageSize = PreambleSize + SignalConstraintSize + SignalDataPayloadSize + CRCSize
)

// Payload sizes per message type
const (
	SignalPayloadSize    = 8
	ControlPayloadSize   = 58
	AutopilotPayloadSize = 32
)

// Preamble marker bytes
const (
	ControlMarker   = '$'
	SignalMarker    = '%'
	AutopilotMarker = '^'
)

// ProtocolVersion is exchanged during connect and must match the peer exactly
const ProtocolVersion int32 = -0x2931A5CA // bit pattern 0xD6CE5A36

// MessageType selects the marker and payload size of a frame
type MessageType int

const (
	TypeEmpty MessageType = iota
	TypeSignal
	TypeControl
	TypeAutopilot
)

// String returns the message type name
func (t MessageType) String() string {
	switch t {
	case TypeSignal:
		return "SIGNAL"
	case TypeControl:
		return "CONTROL"
	case TypeAutopilot:
		return "AUTOPILOT"
	default:
		return "EMPTY"
	}
}

// PayloadSize returns the fixed payload size for the type, or -1 for TypeEmpty
func (t MessageType) PayloadSize() int {
	switch t {
	case TypeSignal:
		return SignalPayloadSize
	case TypeControl:
		return ControlPayloadSize
	case TypeAutopilot:
		return AutopilotPayloadSize
	default:
		return -1
	}
}

// Marker returns the preamble marker byte for the type
func (t MessageType) Marker() byte {
	switch t {
	case TypeSignal:
		return SignalMarker
	case TypeControl:
		return ControlMarker
	case TypeAutopilot:
		return AutopilotMarker
	default:
		return 0
	}
}

// TypeForMarker maps a marker byte to its message type, TypeEmpty if unknown
func TypeForMarker(b byte) MessageType {
	switch b {
	case ControlMarker:
		return TypeControl
	case SignalMarker:
		return TypeSignal
	case AutopilotMarker:
		return TypeAutopilot
	default:
		return TypeEmpty
	}
}

// Preamble returns the 4 byte preamble for the type
func Preamble(t MessageType) []byte {
	m := t.Marker()
	return []byte{m, m, m, 0x00}
}
