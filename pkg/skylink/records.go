// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// crcFieldSize is the trailing CRC-32 of every segmented record
const crcFieldSize = 4

// encodeRecord writes a fixed layout struct little-endian
func encodeRecord(v any) []byte {
	var buf bytes.Buffer
	buf.Grow(binary.Size(v))
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		// only reachable with a non fixed-size type
		panic(fmt.Sprintf("skylink: encode %T: %v", v, err))
	}
	return buf.Bytes()
}

// decodeRecord reads a fixed layout struct from the head of data. Trailing
// bytes (chunk padding) are ignored.
func decodeRecord(data []byte, v any) error {
	size := binary.Size(v)
	if len(data) < size {
		return fmt.Errorf("record %T too short: expected %d bytes, got %d", v, size, len(data))
	}
	return binary.Read(bytes.NewReader(data[:size]), binary.LittleEndian, v)
}

// recordCRC computes the CRC-32 of a serialized record minus its CRC field
func recordCRC(serialized []byte) uint32 {
	return CRC32(serialized[:len(serialized)-crcFieldSize])
}

// Flags is a 32 bit field of boolean flags addressed by bit index
type Flags uint32

// Has reports whether bit id is set
func (f Flags) Has(id int) bool {
	return id >= 0 && id < 32 && f&(1<<uint(id)) != 0
}

// With returns f with bit id set or cleared
func (f Flags) With(id int, state bool) Flags {
	if id < 0 || id >= 32 {
		return f
	}
	if state {
		return f | 1<<uint(id)
	}
	return f &^ (1 << uint(id))
}
