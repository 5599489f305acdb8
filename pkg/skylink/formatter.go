// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import "fmt"

// FormatMessage formats a frame into a human-readable string
func FormatMessage(m *Message) string {
	timestamp := m.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s len=%d crc=0x%04X\n", timestamp, m.Type(), len(m.Payload()), m.CRC())
	result += FormatPayload(m)
	return result
}

// FormatPayload formats the decoded payload of a frame. CONTROL frames are
// shown as telemetry since both directions share the marker.
func FormatPayload(m *Message) string {
	switch m.Type() {
	case TypeSignal:
		s, err := ParseSignal(m)
		if err != nil {
			return fmt.Sprintf("  (invalid: %v)\n", err)
		}
		if s.Command.HasPayload() {
			c, err := ParseChunk(m)
			if err != nil {
				return fmt.Sprintf("  (invalid: %v)\n", err)
			}
			return fmt.Sprintf("  Chunk: %s %d/%d\n", c.Command, c.Index+1, c.Total)
		}
		return fmt.Sprintf("  Signal: %s\n", s)

	case TypeControl:
		d, err := ParseDebugData(m)
		if err != nil {
			return fmt.Sprintf("  (invalid: %v)\n", err)
		}
		return fmt.Sprintf("  Attitude: roll=%.3f pitch=%.3f yaw=%.3f\n"+
			"  Position: lat=%.6f lon=%.6f alt=%.1f m (abs %.1f m)\n"+
			"  Motion: vz=%.2f m/s v=%.2f m/s throttle=%.2f\n"+
			"  State: %s, battery %d, flags 0x%02X\n",
			d.Roll, d.Pitch, d.Yaw,
			d.Latitude, d.Longitude, d.RelativeAltitude, d.AbsoluteAltitude,
			d.VerticalVelocity, d.Velocity, d.UsedThrottle,
			d.ControllerState, d.Battery, d.Flags)

	case TypeAutopilot:
		a, err := ParseAutopilotData(m)
		if err != nil {
			return fmt.Sprintf("  (invalid: %v)\n", err)
		}
		return fmt.Sprintf("  %s: lat=%.7f lon=%.7f abs=%.1f m rel=%.1f m\n",
			a.Type, a.Latitude, a.Longitude, a.AbsoluteAltitude, a.RelativeAltitude)

	default:
		return "  (no payload)\n"
	}
}

// FormatEvent formats a dispatcher event for logs
func FormatEvent(ev Event) string {
	switch e := ev.(type) {
	case *MessageEvent:
		return FormatMessage(e.Message)
	case *PayloadEvent:
		return fmt.Sprintf("[payload] %s\n  %v\n", e.DataType, e.Data)
	default:
		return fmt.Sprintf("%v\n", ev)
	}
}
