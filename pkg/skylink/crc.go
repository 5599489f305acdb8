// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC16 computes the frame checksum over a payload (CRC-16/XMODEM, nibble
// folded, initial value 0)
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc>>8 | crc<<8
		crc ^= uint16(b)
		crc ^= (crc & 0xff) >> 4
		crc ^= crc << 12
		crc ^= (crc & 0xff) << 5
	}
	return crc
}

// CRC32 computes the record checksum (CRC-32C, reflected, all-ones initial
// and final value) used by segmented payload records
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
