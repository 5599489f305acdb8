// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"strings"
	"testing"
)

// ============================================================
// Dispatcher Scenario Tests
// ============================================================

func TestDispatcher_PingByteAtATime(t *testing.T) {
	stream := []byte{
		'%', '%', '%', 0x00,
		0xB7, 0x86, 0x01, 0x00, 0x2A, 0x00, 0x00, 0x00,
		0xDC, 0x6C,
	}

	c := &collector{}
	d := NewDispatcher(c)
	for _, b := range stream {
		d.FeedByte(b)
	}

	if len(c.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(c.events))
	}
	s, ok := SignalOf(c.events[0])
	if !ok {
		t.Fatalf("expected a signal event, got %v", c.events[0])
	}
	if s.Command != CmdPingValue || s.Value() != 42 {
		t.Errorf("expected PING_VALUE(42), got %s", s)
	}
	if d.Successes() != 1 || d.Failures() != 0 {
		t.Errorf("expected 1 success 0 failures, got %d/%d", d.Successes(), d.Failures())
	}
}

func TestDispatcher_CorruptedThenValid(t *testing.T) {
	corrupted := NewSignal(CmdStart, ParamAck).Message().Bytes()
	corrupted[PreambleSize+5] ^= 0x04 // parameter byte
	valid := NewSignal(CmdAppLoop, ParamAck).Message().Bytes()

	c := &collector{}
	d := NewDispatcher(c)
	d.Feed(append(corrupted, valid...))

	if len(c.anomalies) != 1 || c.anomalies[0].Type != AnomalyCRCError {
		t.Fatalf("expected one CRC anomaly, got %v", c.anomalies)
	}
	if len(c.events) != 1 || !MatchSignal(c.events[0], CmdAppLoop, ParamAck) {
		t.Fatalf("expected APP_LOOP:ACK, got %v", c.events)
	}
	if d.Failures() != 1 || d.Successes() != 1 {
		t.Errorf("expected 1 failure 1 success, got %d/%d", d.Failures(), d.Successes())
	}
}

func TestDispatcher_PreambleCollision(t *testing.T) {
	partial := (&DebugData{Roll: 1}).Message().Bytes()[:20]
	valid := NewSignal(CmdFlightLoop, ParamBreakAck).Message().Bytes()

	c := &collector{}
	d := NewDispatcher(c)
	d.Feed(partial)
	d.Feed(valid)

	if d.Failures() != 1 {
		t.Errorf("expected failure counter 1, got %d", d.Failures())
	}
	if d.Statistics().PreambleCollisions != 1 {
		t.Errorf("expected 1 preamble collision, got %d", d.Statistics().PreambleCollisions)
	}
	if len(c.events) != 1 || !MatchSignal(c.events[0], CmdFlightLoop, ParamBreakAck) {
		t.Fatalf("expected FLIGHT_LOOP:BREAK_ACK, got %v", c.events)
	}
}

func TestDispatcher_GarbageBetweenFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x11, 0x22, '%', '%', 0x00, 0x99)
	stream = append(stream, NewControlData().Message().Bytes()...)
	stream = append(stream, 0xFF, 0x00, 0x00, '^', '^')
	stream = append(stream, (&AutopilotData{Type: AutopilotBase, Latitude: 50}).Message().Bytes()...)

	c := &collector{}
	d := NewDispatcher(c)
	d.Feed(stream)

	if len(c.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(c.events))
	}
	if _, ok := MessageOf(c.events[0], TypeControl); !ok {
		t.Errorf("first event should be CONTROL, got %v", c.events[0])
	}
	if m, ok := MessageOf(c.events[1], TypeAutopilot); !ok {
		t.Errorf("second event should be AUTOPILOT, got %v", c.events[1])
	} else if a, err := ParseAutopilotData(m); err != nil || a.Type != AutopilotBase {
		t.Errorf("unexpected autopilot %v (%v)", a, err)
	}
	if d.Failures() != 0 {
		t.Errorf("garbage outside frames is not a failure, got %d", d.Failures())
	}
}

func TestDispatcher_WindowFreeRunsAcrossFrames(t *testing.T) {
	// stray marker bytes ahead of a preamble must not break sync
	c := &collector{}
	d := NewDispatcher(c)

	d.Feed([]byte{'$', '$'})
	d.Feed(NewSignal(CmdStart, ParamAck).Message().Bytes())
	d.Feed(NewSignal(CmdStart, ParamAck).Message().Bytes())

	if len(c.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(c.events))
	}
}

func TestDispatcher_Reset(t *testing.T) {
	c := &collector{}
	d := NewDispatcher(c)
	frame := NewSignal(CmdStart, ParamAck).Message().Bytes()

	d.Feed(frame)
	d.Feed(frame[:6])
	d.Reset()
	if d.Successes() != 0 || d.Failures() != 0 {
		t.Errorf("counters should be cleared, got %d/%d", d.Successes(), d.Failures())
	}

	d.Feed(frame)
	if len(c.events) != 2 || d.Failures() != 0 {
		t.Errorf("expected clean reception after reset, events=%d failures=%d", len(c.events), d.Failures())
	}
}

func TestDispatcher_StatisticsString(t *testing.T) {
	d := NewDispatcher(DispatcherFunc(func(Event) {}))
	d.Feed(NewSignal(CmdStart, ParamAck).Message().Bytes())
	feedMessages(d, BuildMessages(sampleControlSettings()))

	stats := d.Statistics()
	if stats.Chunks != 4 || stats.CompletedPayloads != 1 || stats.SignalFrames != 5 {
		t.Errorf("unexpected statistics %+v", stats)
	}
	out := stats.String()
	if !strings.Contains(out, "Payload Chunks:") || !strings.Contains(out, "Valid Frames:") {
		t.Errorf("unexpected statistics output:\n%s", out)
	}
}
