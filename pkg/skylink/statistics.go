// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates of a dispatcher
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames         uint64
	ValidFrames         uint64
	SignalFrames        uint64
	ControlFrames       uint64
	AutopilotFrames     uint64
	Chunks              uint64
	CompletedPayloads   uint64
	CRCErrors           uint64
	PreambleCollisions  uint64
	ReassemblyAnomalies uint64
	RecordErrors        uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// recordFrame counts a frame that passed its CRC check
func (s *Statistics) recordFrame(t MessageType, chunk bool) {
	s.TotalFrames++
	s.ValidFrames++
	switch t {
	case TypeSignal:
		s.SignalFrames++
		if chunk {
			s.Chunks++
		}
	case TypeControl:
		s.ControlFrames++
	case TypeAutopilot:
		s.AutopilotFrames++
	}
	s.LastUpdateTime = time.Now()
}

// RecordAnomaly counts a dispatcher or validator anomaly
func (s *Statistics) RecordAnomaly(v ValidationError) {
	switch v.Type {
	case AnomalyCRCError:
		s.TotalFrames++
		s.CRCErrors++
	case AnomalyPreambleCollision:
		s.TotalFrames++
		s.PreambleCollisions++
	case AnomalyReassemblySwitch, AnomalyChunkIndex:
		s.ReassemblyAnomalies++
	case AnomalyRecordDecode, AnomalyRecordCRC:
		s.RecordErrors++
	}
	s.LastUpdateTime = time.Now()
}

// Failures returns the number of framing failures and reassembly anomalies
func (s *Statistics) Failures() uint64 {
	return s.CRCErrors + s.PreambleCollisions + s.ReassemblyAnomalies
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Failures()+s.RecordErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, crcPercent, collisionPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		crcPercent = float64(s.CRCErrors) * 100.0 / float64(s.TotalFrames)
		collisionPercent = float64(s.PreambleCollisions) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	result += fmt.Sprintf("  Signal:           %5d\n", s.SignalFrames)
	result += fmt.Sprintf("  Control:          %5d\n", s.ControlFrames)
	result += fmt.Sprintf("  Autopilot:        %5d\n", s.AutopilotFrames)

	if s.Chunks > 0 {
		result += fmt.Sprintf("Payload Chunks:  %8d (%d payloads)\n", s.Chunks, s.CompletedPayloads)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, crcPercent)
	}
	if s.PreambleCollisions > 0 {
		result += fmt.Sprintf("Preamble Resync: %8d (%.1f%%)\n", s.PreambleCollisions, collisionPercent)
	}
	if s.ReassemblyAnomalies > 0 {
		result += fmt.Sprintf("Reassembly:      %8d\n", s.ReassemblyAnomalies)
	}
	if s.RecordErrors > 0 {
		result += fmt.Sprintf("Record Errors:   %8d\n", s.RecordErrors)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
