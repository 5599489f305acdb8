// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AnomalyType represents different types of stream and frame anomalies
type AnomalyType int

const (
	AnomalyCRCError AnomalyType = iota
	AnomalyPreambleCollision
	AnomalyReassemblySwitch
	AnomalyChunkIndex
	AnomalyRecordDecode
	AnomalyRecordCRC
	AnomalyLengthMismatch
	AnomalyUnknownCommand
	AnomalyUnknownParameter
	AnomalyInvalidValue
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyCRCError:
		return "CRC_ERROR"
	case AnomalyPreambleCollision:
		return "PREAMBLE_COLLISION"
	case AnomalyReassemblySwitch:
		return "REASSEMBLY_SWITCH"
	case AnomalyChunkIndex:
		return "CHUNK_INDEX"
	case AnomalyRecordDecode:
		return "RECORD_DECODE"
	case AnomalyRecordCRC:
		return "RECORD_CRC"
	case AnomalyLengthMismatch:
		return "LENGTH_MISMATCH"
	case AnomalyUnknownCommand:
		return "UNKNOWN_COMMAND"
	case AnomalyUnknownParameter:
		return "UNKNOWN_PARAMETER"
	case AnomalyInvalidValue:
		return "INVALID_VALUE"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a frame or stream validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks a decoded frame for structural anomalies
// Returns a slice of validation errors (empty if the frame is valid)
func ValidateMessage(m *Message) []ValidationError {
	errors := []ValidationError{}

	if !m.IsValid() {
		errors = append(errors, ValidationError{
			Type:    AnomalyCRCError,
			Message: fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", CRC16(m.Payload()), m.CRC()),
			Details: map[string]interface{}{"expected": CRC16(m.Payload()), "got": m.CRC()},
		})
	}

	switch m.Type() {
	case TypeSignal:
		errors = append(errors, validateSignal(m)...)
	case TypeControl:
		errors = append(errors, validateControl(m)...)
	case TypeAutopilot:
		errors = append(errors, validateAutopilot(m)...)
	}

	return errors
}

// ValidatePayload checks the CRC-32 of a reassembled record
func ValidatePayload(p SignalPayloadData) []ValidationError {
	if p.IsValid() {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyRecordCRC,
		Message: fmt.Sprintf("%s record CRC-32 mismatch", p.DataType()),
		Details: map[string]interface{}{"command": p.DataType().String()},
	}}
}

// validateSignal validates a SIGNAL frame or data chunk
func validateSignal(m *Message) []ValidationError {
	p := m.Payload()
	if len(p) < SignalConstraintSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("SIGNAL payload too short (expected %d bytes)", SignalConstraintSize),
			Details: map[string]interface{}{"length": len(p), "expected": SignalConstraintSize},
		}}
	}

	cmd := commandOf(p)
	if !cmd.Known() {
		return []ValidationError{{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command %d", int32(cmd)),
			Details: map[string]interface{}{"command": int32(cmd)},
		}}
	}

	if cmd.HasPayload() {
		expected := SignalConstraintSize + SignalDataPayloadSize
		if len(p) != expected {
			return []ValidationError{{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("%s chunk length mismatch (expected %d bytes)", cmd, expected),
				Details: map[string]interface{}{"length": len(p), "expected": expected},
			}}
		}
		total := binary.LittleEndian.Uint16(p[4:6])
		index := binary.LittleEndian.Uint16(p[6:8])
		if total == 0 || index >= total {
			return []ValidationError{{
				Type:    AnomalyChunkIndex,
				Message: fmt.Sprintf("%s chunk index %d outside total %d", cmd, index, total),
				Details: map[string]interface{}{"index": index, "total": total},
			}}
		}
		return nil
	}

	if len(p) != SignalPayloadSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("SIGNAL payload length mismatch (expected %d bytes)", SignalPayloadSize),
			Details: map[string]interface{}{"length": len(p), "expected": SignalPayloadSize},
		}}
	}

	switch cmd {
	case CmdPingValue, CmdProtocolVersionValue, CmdWhoAmIValue:
		// raw integer value
		return nil
	}
	param := Parameter(int32(binary.LittleEndian.Uint32(p[4:8])))
	if !param.Known() {
		return []ValidationError{{
			Type:    AnomalyUnknownParameter,
			Message: fmt.Sprintf("Unknown parameter %d for %s", int32(param), cmd),
			Details: map[string]interface{}{"command": cmd.String(), "parameter": int32(param)},
		}}
	}
	return nil
}

// validateControl checks that the leading attitude fields are finite. The
// first four floats are attitude in both telemetry and control frames.
func validateControl(m *Message) []ValidationError {
	p := m.Payload()
	if len(p) != ControlPayloadSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("CONTROL payload length mismatch (expected %d bytes)", ControlPayloadSize),
			Details: map[string]interface{}{"length": len(p), "expected": ControlPayloadSize},
		}}
	}

	errors := []ValidationError{}
	for i, name := range []string{"roll", "pitch", "yaw"} {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Non-finite %s value", name),
				Details: map[string]interface{}{"field": name},
			})
		}
	}
	return errors
}

// validateAutopilot checks coordinate ranges and the frame type
func validateAutopilot(m *Message) []ValidationError {
	a, err := ParseAutopilotData(m)
	if err != nil {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: err.Error(),
			Details: map[string]interface{}{"length": len(m.Payload()), "expected": AutopilotPayloadSize},
		}}
	}

	errors := []ValidationError{}
	if math.IsNaN(a.Latitude) || a.Latitude < -90 || a.Latitude > 90 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Latitude out of range (%.7f, valid: -90 to 90)", a.Latitude),
			Details: map[string]interface{}{"value": a.Latitude, "min": -90.0, "max": 90.0},
		})
	}
	if math.IsNaN(a.Longitude) || a.Longitude < -180 || a.Longitude > 180 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Longitude out of range (%.7f, valid: -180 to 180)", a.Longitude),
			Details: map[string]interface{}{"value": a.Longitude, "min": -180.0, "max": 180.0},
		})
	}
	if a.Type.String() == "INVALID_TYPE" {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid autopilot type %d", int32(a.Type)),
			Details: map[string]interface{}{"type": int32(a.Type)},
		})
	}
	return errors
}
