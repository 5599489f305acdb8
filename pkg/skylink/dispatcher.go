// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"encoding/binary"
	"fmt"
)

// Event is produced by the Dispatcher: a *MessageEvent or a *PayloadEvent
type Event interface {
	fmt.Stringer
	event()
}

// MessageEvent carries one CRC-verified frame
type MessageEvent struct {
	Message *Message
}

func (*MessageEvent) event() {}

// String formats the event for logs
func (e *MessageEvent) String() string {
	if s, err := ParseSignal(e.Message); err == nil {
		return "signal " + s.String()
	}
	return e.Message.Type().String()
}

// PayloadEvent carries a reassembled segmented record
type PayloadEvent struct {
	DataType Command
	Data     SignalPayloadData
}

func (*PayloadEvent) event() {}

// String formats the event for logs
func (e *PayloadEvent) String() string {
	return "payload " + e.DataType.String()
}

// SignalOf returns the signal carried by ev, if it is a signal frame
func SignalOf(ev Event) (SignalData, bool) {
	me, ok := ev.(*MessageEvent)
	if !ok || me.Message.Type() != TypeSignal {
		return SignalData{}, false
	}
	s, err := ParseSignal(me.Message)
	if err != nil {
		return SignalData{}, false
	}
	return s, true
}

// MatchSignal reports whether ev is the signal (cmd, param)
func MatchSignal(ev Event, cmd Command, param Parameter) bool {
	s, ok := SignalOf(ev)
	return ok && s.Matches(cmd, param)
}

// MessageOf returns the frame carried by ev if it has type t
func MessageOf(ev Event, t MessageType) (*Message, bool) {
	me, ok := ev.(*MessageEvent)
	if !ok || me.Message.Type() != t {
		return nil, false
	}
	return me.Message, true
}

// DispatcherListener receives events recovered from the byte stream
type DispatcherListener interface {
	HandleEvent(ev Event)
}

// AnomalyListener is optionally implemented by a DispatcherListener to be told
// about framing failures and reassembly anomalies as they happen
type AnomalyListener interface {
	HandleAnomaly(v ValidationError)
}

// DispatcherFunc adapts a function to DispatcherListener
type DispatcherFunc func(ev Event)

// HandleEvent calls f(ev)
func (f DispatcherFunc) HandleEvent(ev Event) { f(ev) }

// Dispatcher recovers frames from an unstructured byte stream. It is not safe
// for concurrent use.
type Dispatcher struct {
	listener DispatcherListener

	// preamble detection window, free running across frames
	window    [PreambleSize - 1]byte
	windowPos int

	active     bool
	activeType MessageType
	buffer     [SignalConstraintSize + SignalDataPayloadSize + CRCSize]byte
	count      int
	target     int

	// segmented payload reassembly
	asmCommand  Command
	asmData     []byte
	asmReceived []bool
	asmCount    int

	stats *Statistics
}

// NewDispatcher creates a dispatcher delivering events to listener
func NewDispatcher(listener DispatcherListener) *Dispatcher {
	d := &Dispatcher{listener: listener}
	d.Reset()
	return d
}

// Reset clears framing state, reassembly state and counters
func (d *Dispatcher) Reset() {
	d.window = [PreambleSize - 1]byte{}
	d.windowPos = 0
	d.deactivate()
	d.clearReassembly()
	d.stats = NewStatistics()
}

// Successes returns the number of frames that passed their CRC check
func (d *Dispatcher) Successes() uint64 {
	return d.stats.ValidFrames
}

// Failures returns the number of framing failures and reassembly anomalies
func (d *Dispatcher) Failures() uint64 {
	return d.stats.Failures()
}

// Statistics returns the live statistics of the dispatcher
func (d *Dispatcher) Statistics() *Statistics {
	return d.stats
}

// Feed processes a chunk of bytes from the transport
func (d *Dispatcher) Feed(data []byte) {
	for _, b := range data {
		d.FeedByte(b)
	}
}

// FeedByte processes a single byte through the framing state machine
func (d *Dispatcher) FeedByte(b byte) {
	if t := d.updatePreamble(b); t != TypeEmpty {
		if d.active {
			d.anomaly(ValidationError{
				Type:    AnomalyPreambleCollision,
				Message: fmt.Sprintf("%s preamble while %s frame incomplete (%d/%d bytes)", t, d.activeType, d.count, d.target),
				Details: map[string]interface{}{"type": t.String(), "received": d.count, "target": d.target},
			})
		}
		d.activate(t)
		return
	}

	if !d.active {
		return
	}

	d.buffer[d.count] = b
	d.count++
	if d.count < d.target {
		return
	}

	if d.activeType == TypeSignal && d.count == SignalConstraintSize {
		// command id known, extend the target
		if commandOf(d.buffer[:]).HasPayload() {
			d.target += SignalDataPayloadSize + CRCSize
		} else {
			d.target += CRCSize
		}
		return
	}

	d.complete()
	d.deactivate()
}

// updatePreamble slides b into the window and reports a detected preamble
func (d *Dispatcher) updatePreamble(b byte) MessageType {
	result := TypeEmpty
	if b == 0 {
		first := d.window[0]
		same := true
		for _, w := range d.window {
			if w != first {
				same = false
				break
			}
		}
		if same {
			result = TypeForMarker(first)
		}
	}
	if result != TypeEmpty {
		d.window = [PreambleSize - 1]byte{}
		d.windowPos = 0
		return result
	}

	d.window[d.windowPos] = b
	d.windowPos = (d.windowPos + 1) % len(d.window)
	return TypeEmpty
}

func (d *Dispatcher) activate(t MessageType) {
	d.active = true
	d.activeType = t
	d.count = 0
	d.target = t.PayloadSize()
	if t != TypeSignal {
		d.target += CRCSize
	}
}

func (d *Dispatcher) deactivate() {
	d.active = false
	d.activeType = TypeEmpty
	d.count = 0
	d.target = 0
}

// complete verifies the CRC of a full frame and routes it
func (d *Dispatcher) complete() {
	size := d.target - CRCSize
	payload := d.buffer[:size]
	crc := binary.LittleEndian.Uint16(d.buffer[size:d.target])
	if expected := CRC16(payload); crc != expected {
		d.anomaly(ValidationError{
			Type:    AnomalyCRCError,
			Message: fmt.Sprintf("CRC mismatch on %s frame: expected 0x%04X, got 0x%04X", d.activeType, expected, crc),
			Details: map[string]interface{}{"type": d.activeType.String(), "expected": expected, "got": crc},
		})
		return
	}

	msg := newReceivedMessage(d.activeType, payload, crc)
	chunk := d.activeType == TypeSignal && commandOf(payload).HasPayload()
	d.stats.recordFrame(d.activeType, chunk)
	if chunk {
		d.handleChunk(msg)
		return
	}
	d.listener.HandleEvent(&MessageEvent{Message: msg})
}

// handleChunk places a data chunk into the reassembly buffer
func (d *Dispatcher) handleChunk(msg *Message) {
	c, err := ParseChunk(msg)
	if err != nil {
		return
	}

	if c.Total == 0 || c.Index >= c.Total {
		d.anomaly(ValidationError{
			Type:    AnomalyChunkIndex,
			Message: fmt.Sprintf("%s chunk index %d outside total %d", c.Command, c.Index, c.Total),
			Details: map[string]interface{}{"command": c.Command.String(), "index": c.Index, "total": c.Total},
		})
		return
	}

	if d.asmData == nil || d.asmCommand != c.Command || len(d.asmReceived) != int(c.Total) {
		if d.asmCount > 0 {
			d.anomaly(ValidationError{
				Type: AnomalyReassemblySwitch,
				Message: fmt.Sprintf("%s chunk while %s incomplete (%d/%d chunks)",
					c.Command, d.asmCommand, d.asmCount, len(d.asmReceived)),
				Details: map[string]interface{}{
					"command":  c.Command.String(),
					"pending":  d.asmCommand.String(),
					"received": d.asmCount,
					"total":    len(d.asmReceived),
				},
			})
		}
		d.asmCommand = c.Command
		d.asmData = make([]byte, int(c.Total)*SignalDataPayloadSize)
		d.asmReceived = make([]bool, c.Total)
		d.asmCount = 0
	}

	copy(d.asmData[int(c.Index)*SignalDataPayloadSize:], c.Data)
	if !d.asmReceived[c.Index] {
		d.asmReceived[c.Index] = true
		d.asmCount++
	}

	if d.asmCount < len(d.asmReceived) {
		return
	}

	cmd, data := d.asmCommand, d.asmData
	d.clearReassembly()

	record, err := DecodePayload(cmd, data)
	if err != nil {
		d.anomaly(ValidationError{
			Type:    AnomalyRecordDecode,
			Message: fmt.Sprintf("%s reassembled but not decodable: %v", cmd, err),
			Details: map[string]interface{}{"command": cmd.String(), "length": len(data)},
		})
		return
	}
	d.stats.CompletedPayloads++
	d.listener.HandleEvent(&PayloadEvent{DataType: cmd, Data: record})
}

func (d *Dispatcher) clearReassembly() {
	d.asmCommand = CmdDummy
	d.asmData = nil
	d.asmReceived = nil
	d.asmCount = 0
}

func (d *Dispatcher) anomaly(v ValidationError) {
	d.stats.RecordAnomaly(v)
	if al, ok := d.listener.(AnomalyListener); ok {
		al.HandleAnomaly(v)
	}
}
