// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCRC16_Empty(t *testing.T) {
	if crc := CRC16(nil); crc != 0 {
		t.Errorf("CRC of empty data should be 0, got 0x%04X", crc)
	}
}

func TestCRC16_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "ASCII '123456789'",
			data:     []byte("123456789"),
			expected: 0x31C3, // CRC-16/XMODEM check value
		},
		{
			name:     "PING_VALUE 42",
			data:     []byte{0xB7, 0x86, 0x01, 0x00, 0x2A, 0x00, 0x00, 0x00},
			expected: 0x6CDC,
		},
		{
			name:     "START_CMD START",
			data:     []byte{0xA7, 0x86, 0x01, 0x00, 0x4B, 0x42, 0x0F, 0x00},
			expected: 0x1DFD,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := CRC16(tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", tt.expected, crc)
			}
		})
	}
}

func TestCRC32_KnownValue(t *testing.T) {
	// CRC-32C check value
	if crc := CRC32([]byte("123456789")); crc != 0xE3069283 {
		t.Errorf("CRC32 mismatch: expected 0xE3069283, got 0x%08X", crc)
	}
}

// ============================================================
// Message Tests
// ============================================================

func TestMessage_BytesLayout(t *testing.T) {
	m := NewValueSignal(CmdPingValue, 42).Message()

	expected, _ := hex.DecodeString("25252500" + "b78601002a000000" + "dc6c")
	if got := m.Bytes(); !bytes.Equal(got, expected) {
		t.Errorf("frame mismatch:\nexpected % X\ngot      % X", expected, got)
	}
	if m.Size() != len(expected) {
		t.Errorf("Size() = %d, want %d", m.Size(), len(expected))
	}
	if !m.IsValid() {
		t.Error("freshly built message should be valid")
	}
}

func TestMessage_PayloadIsCopied(t *testing.T) {
	payload := make([]byte, SignalPayloadSize)
	m := NewMessage(TypeSignal, payload)
	payload[0] = 0xFF
	if m.Payload()[0] != 0 {
		t.Error("NewMessage should copy its payload")
	}
}

func TestMessage_RoundTrip(t *testing.T) {
	debug := &DebugData{Roll: 0.5, Pitch: -0.25, Latitude: 50.1, ControllerState: ControllerManual, Battery: 87}
	autopilot := &AutopilotData{Latitude: 50.0614, Longitude: 19.9366, Type: AutopilotBase}

	tests := []struct {
		name string
		msg  *Message
	}{
		{"signal", NewSignal(CmdFlightLoop, ParamReady).Message()},
		{"debug data", debug.Message()},
		{"control data", NewControlData().Message()},
		{"autopilot", autopilot.Message()},
		{"chunk", BuildChunks(CmdControlSettingsData, NewControlSettings().Serialize())[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeMessage(tt.msg.Bytes())
			if err != nil {
				t.Fatalf("DecodeMessage failed: %v", err)
			}
			if decoded.Type() != tt.msg.Type() {
				t.Errorf("type: expected %s, got %s", tt.msg.Type(), decoded.Type())
			}
			if !bytes.Equal(decoded.Payload(), tt.msg.Payload()) {
				t.Error("payload mismatch after round trip")
			}
			if !decoded.IsValid() {
				t.Error("decoded message should be valid")
			}
		})
	}
}

func TestMessage_BitFlipInvalidates(t *testing.T) {
	m := (&DebugData{Roll: 1, Yaw: 2, Battery: 50}).Message()
	frame := m.Bytes()

	for bit := 0; bit < len(m.Payload())*8; bit++ {
		corrupted := append([]byte(nil), frame...)
		corrupted[PreambleSize+bit/8] ^= 1 << uint(bit%8)

		decoded, err := DecodeMessage(corrupted)
		if err != nil {
			t.Fatalf("bit %d: DecodeMessage failed: %v", bit, err)
		}
		if decoded.IsValid() {
			t.Errorf("bit %d: single bit flip not detected", bit)
		}
	}
}

func TestDecodeMessage_Errors(t *testing.T) {
	good := NewSignal(CmdStart, ParamStart).Message().Bytes()

	tests := []struct {
		name  string
		frame []byte
		want  string
	}{
		{"too short", []byte{0x25, 0x25}, "too short"},
		{"bad preamble", append([]byte{0x25, 0x24}, good[2:]...), "invalid preamble"},
		{"unknown marker", append([]byte{'#', '#', '#', 0}, good[4:]...), "unknown marker"},
		{"truncated", good[:len(good)-1], "length mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage(tt.frame)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

// ============================================================
// Signal Tests
// ============================================================

func TestParseSignal(t *testing.T) {
	s, err := ParseSignal(NewSignal(CmdCalibrateMagnet, ParamSkip).Message())
	if err != nil {
		t.Fatalf("ParseSignal failed: %v", err)
	}
	if !s.Matches(CmdCalibrateMagnet, ParamSkip) {
		t.Errorf("unexpected signal %s", s)
	}

	if _, err := ParseSignal(NewControlData().Message()); err == nil {
		t.Error("ParseSignal should reject CONTROL messages")
	}
}

func TestProtocolVersionSignal(t *testing.T) {
	m := NewValueSignal(CmdProtocolVersionValue, ProtocolVersion).Message()
	expected, _ := hex.DecodeString("c1860100365aced6")
	if !bytes.Equal(m.Payload(), expected) {
		t.Errorf("payload mismatch: expected % X, got % X", expected, m.Payload())
	}
	s, _ := ParseSignal(m)
	if s.Value() != ProtocolVersion {
		t.Errorf("value: expected %d, got %d", ProtocolVersion, s.Value())
	}
}

func TestSignal_String(t *testing.T) {
	tests := []struct {
		signal   SignalData
		expected string
	}{
		{NewSignal(CmdStart, ParamAck), "START_CMD:ACK"},
		{NewValueSignal(CmdPingValue, 42), "PING_VALUE(42)"},
		{NewSignal(Command(7), Parameter(9)), "UNKNOWN(7):VALUE(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.signal.String(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCommand_HasPayload(t *testing.T) {
	for cmd := range commandNames {
		want := cmd == CmdCalibrationSettingsData || cmd == CmdControlSettingsData ||
			cmd == CmdRouteContainerData || cmd == CmdWiFiConfigurationData
		if cmd.HasPayload() != want {
			t.Errorf("%s: HasPayload() = %v, want %v", cmd, cmd.HasPayload(), want)
		}
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateMessage(t *testing.T) {
	badCRC := NewSignal(CmdStart, ParamAck).Message().Bytes()
	badCRC[len(badCRC)-1] ^= 0xFF
	corrupted, _ := DecodeMessage(badCRC)

	tests := []struct {
		name     string
		msg      *Message
		expected []AnomalyType
	}{
		{"valid signal", NewSignal(CmdStart, ParamAck).Message(), nil},
		{"valid ping", NewValueSignal(CmdPingValue, -17).Message(), nil},
		{"crc error", corrupted, []AnomalyType{AnomalyCRCError}},
		{"unknown command", NewSignal(Command(1), ParamAck).Message(), []AnomalyType{AnomalyUnknownCommand}},
		{"unknown parameter", NewSignal(CmdStart, Parameter(5)).Message(), []AnomalyType{AnomalyUnknownParameter}},
		{"bad autopilot", (&AutopilotData{Latitude: 123, Type: AutopilotTarget}).Message(), []AnomalyType{AnomalyInvalidValue}},
		{"valid autopilot", (&AutopilotData{Latitude: 50, Longitude: 20, Type: AutopilotBase}).Message(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMessage(tt.msg)
			if len(errs) != len(tt.expected) {
				t.Fatalf("expected %d errors, got %d: %v", len(tt.expected), len(errs), errs)
			}
			for i, e := range errs {
				if e.Type != tt.expected[i] {
					t.Errorf("error %d: expected %s, got %s", i, tt.expected[i], e.Type)
				}
			}
		})
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatMessage(t *testing.T) {
	out := FormatMessage(NewValueSignal(CmdPingValue, 42).Message())
	if !strings.Contains(out, "SIGNAL") || !strings.Contains(out, "PING_VALUE(42)") {
		t.Errorf("unexpected format output: %q", out)
	}

	chunk := BuildChunks(CmdRouteContainerData, make([]byte, 120))[2]
	if out := FormatMessage(chunk); !strings.Contains(out, "ROUTE_CONTAINER_DATA 3/3") {
		t.Errorf("unexpected chunk output: %q", out)
	}

	debug := &DebugData{ControllerState: ControllerHoldAltitude, Battery: 77}
	if out := FormatMessage(debug.Message()); !strings.Contains(out, "Hold altitude, battery 77") {
		t.Errorf("unexpected debug output: %q", out)
	}
}
