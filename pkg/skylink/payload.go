// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"encoding/binary"
	"fmt"
)

// SignalPayloadData is a record too large for one frame. It is sent as a
// sequence of chunks on its DataType command and acknowledged on its
// DataCommand.
type SignalPayloadData interface {
	// DataCommand is the command used to acknowledge the record
	DataCommand() Command
	// DataType is the command carried by each chunk
	DataType() Command
	// Serialize returns the record bytes, ending in the CRC-32 field
	Serialize() []byte
	// IsValid reports whether the stored CRC-32 matches the record
	IsValid() bool
}

// Chunk is the decoded header and data of one segmented payload frame
type Chunk struct {
	Command Command
	Total   uint16
	Index   uint16
	Data    []byte
}

// ChunkCount returns the number of chunks needed for size bytes
func ChunkCount(size int) int {
	return (size + SignalDataPayloadSize - 1) / SignalDataPayloadSize
}

// BuildMessages splits a record into chunk frames
func BuildMessages(data SignalPayloadData) []*Message {
	return BuildChunks(data.DataType(), data.Serialize())
}

// BuildChunks splits raw bytes into SIGNAL frames of
// command(4) | total(2) | index(2) | data(50). The last chunk is zero padded.
func BuildChunks(cmd Command, data []byte) []*Message {
	count := ChunkCount(len(data))
	messages := make([]*Message, 0, count)
	for i := 0; i < count; i++ {
		payload := make([]byte, SignalConstraintSize+SignalDataPayloadSize)
		binary.LittleEndian.PutUint32(payload[0:4], uint32(cmd))
		binary.LittleEndian.PutUint16(payload[4:6], uint16(count))
		binary.LittleEndian.PutUint16(payload[6:8], uint16(i))

		start := i * SignalDataPayloadSize
		end := start + SignalDataPayloadSize
		if end > len(data) {
			end = len(data)
		}
		copy(payload[SignalConstraintSize:], data[start:end])
		messages = append(messages, NewMessage(TypeSignal, payload))
	}
	return messages
}

// ParseChunk decodes the chunk header of a data-carrying signal frame
func ParseChunk(m *Message) (Chunk, error) {
	p := m.Payload()
	if m.Type() != TypeSignal || len(p) != SignalConstraintSize+SignalDataPayloadSize {
		return Chunk{}, fmt.Errorf("not a data chunk: %s with %d byte payload", m.Type(), len(p))
	}
	return Chunk{
		Command: commandOf(p),
		Total:   binary.LittleEndian.Uint16(p[4:6]),
		Index:   binary.LittleEndian.Uint16(p[6:8]),
		Data:    p[SignalConstraintSize:],
	}, nil
}

// DecodePayload materializes the record type registered for a data command
func DecodePayload(dataType Command, data []byte) (SignalPayloadData, error) {
	switch dataType {
	case CmdCalibrationSettingsData:
		return DecodeCalibrationSettings(data)
	case CmdControlSettingsData:
		return DecodeControlSettings(data)
	case CmdRouteContainerData:
		return DecodeRouteContainer(data)
	default:
		return nil, fmt.Errorf("no record type for %s", dataType)
	}
}
