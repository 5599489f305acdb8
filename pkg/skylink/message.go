// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Message is one frame: a type tag, a fixed size payload and its CRC-16
type Message struct {
	msgType   MessageType
	payload   []byte
	crc       uint16
	timestamp time.Time
}

// NewMessage builds a message from a payload, computing the checksum. The
// payload is copied.
func NewMessage(t MessageType, payload []byte) *Message {
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Message{
		msgType:   t,
		payload:   p,
		crc:       CRC16(p),
		timestamp: time.Now(),
	}
}

// newReceivedMessage keeps the CRC read from the wire instead of computing it
func newReceivedMessage(t MessageType, payload []byte, crc uint16) *Message {
	p := make([]byte, len(payload))
	copy(p, payload)
	return &Message{
		msgType:   t,
		payload:   p,
		crc:       crc,
		timestamp: time.Now(),
	}
}

// Type returns the message type
func (m *Message) Type() MessageType {
	return m.msgType
}

// Payload returns the payload bytes
func (m *Message) Payload() []byte {
	return m.payload
}

// CRC returns the stored checksum
func (m *Message) CRC() uint16 {
	return m.crc
}

// Timestamp returns when the message was built or received
func (m *Message) Timestamp() time.Time {
	return m.timestamp
}

// Size returns the encoded frame size
func (m *Message) Size() int {
	return PreambleSize + len(m.payload) + CRCSize
}

// IsValid reports whether the stored checksum matches the payload
func (m *Message) IsValid() bool {
	return m.crc == CRC16(m.payload)
}

// Bytes encodes the frame: preamble, payload, CRC low byte then high byte
func (m *Message) Bytes() []byte {
	out := make([]byte, 0, m.Size())
	out = append(out, Preamble(m.msgType)...)
	out = append(out, m.payload...)
	out = append(out, byte(m.crc), byte(m.crc>>8))
	return out
}

// String formats the frame as hex groups: preamble | payload | crc
func (m *Message) String() string {
	return fmt.Sprintf("%s | %s | %04X",
		hex.EncodeToString(Preamble(m.msgType)), hex.EncodeToString(m.payload), m.crc)
}

// DecodeMessage parses one complete frame. Signal frames may carry a data
// chunk, in which case the frame is SignalConstraintSize+SignalDataPayloadSize
// bytes of payload. The checksum is not verified; use IsValid.
func DecodeMessage(frame []byte) (*Message, error) {
	if len(frame) < PreambleSize+CRCSize {
		return nil, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	m := frame[0]
	if frame[1] != m || frame[2] != m || frame[3] != 0x00 {
		return nil, fmt.Errorf("invalid preamble: % X", frame[:PreambleSize])
	}
	t := TypeForMarker(m)
	if t == TypeEmpty {
		return nil, fmt.Errorf("unknown marker: 0x%02X", m)
	}

	size := t.PayloadSize()
	if t == TypeSignal && len(frame) >= PreambleSize+SignalCommandSize {
		if commandOf(frame[PreambleSize:]).HasPayload() {
			size += SignalDataPayloadSize
		}
	}
	if len(frame) != PreambleSize+size+CRCSize {
		return nil, fmt.Errorf("length mismatch for %s: expected %d, got %d",
			t, PreambleSize+size+CRCSize, len(frame))
	}

	payload := frame[PreambleSize : PreambleSize+size]
	crc := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	return newReceivedMessage(t, payload, crc), nil
}
