// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/skylink"
	"github.com/Thermoquad/skylink/pkg/transport"
)

// eventLog collects session events and lets a test wait for them in order
type eventLog struct {
	mu     sync.Mutex
	events []session.Event
	cursor int
}

func (l *eventLog) OnSessionEvent(ev session.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// next waits for the first event of type typ after the previous match
func (l *eventLog) next(t *testing.T, typ session.EventType) session.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		for i := l.cursor; i < len(l.events); i++ {
			if l.events[i].Type == typ {
				l.cursor = i + 1
				ev := l.events[i]
				l.mu.Unlock()
				return ev
			}
		}
		l.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", typ)
	return session.Event{}
}

func (l *eventLog) errors() []session.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []session.Event
	for _, ev := range l.events {
		if ev.Type == session.EventError {
			errs = append(errs, ev)
		}
	}
	return errs
}

func waitIdle(t *testing.T, sim *Simulator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for sim.State() != "IDLE" {
		if time.Now().After(deadline) {
			t.Fatalf("simulator still in %s", sim.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ============================================================
// End-to-end Session Tests
// ============================================================

func TestSession_AgainstSimulator(t *testing.T) {
	ground, board := transport.Pipe()
	sim := New(board, WithTelemetryRate(25), WithBaseDelay(50*time.Millisecond), WithLinger(time.Second))
	if err := board.Connect(); err != nil {
		t.Fatal(err)
	}

	m := session.NewManager(scheduler.NewTicker())
	log := &eventLog{}
	defer m.Subscribe(log)()

	if err := m.Connect(ground); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventCalibrationUpdated)
	log.next(t, session.EventConnected)
	if cs := m.CalibrationSettings(); cs == nil || cs.BoardType != skylink.BoardBasicV3 {
		t.Fatalf("expected simulator calibration, got %v", cs)
	}
	log.next(t, session.EventDebugUpdated)

	// download settings
	if err := m.DownloadControlSettings(); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventControlUpdated)
	if cs := m.ControlSettings(); cs.UAVType != skylink.UAVHexacopterX {
		t.Errorf("expected hexacopter settings, got %s", cs)
	}
	log.next(t, session.EventMessage)

	// upload route
	route := skylink.NewRouteContainer(
		skylink.Waypoint{Latitude: 50.06, Longitude: 19.94, AbsoluteAltitude: 250, RelativeAltitude: 30, Velocity: 5},
		skylink.Waypoint{Latitude: 50.07, Longitude: 19.95, AbsoluteAltitude: 260, RelativeAltitude: 40, Velocity: 5},
	)
	if err := m.UploadRouteContainer(route); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventRouteUpdated)
	if ev := log.next(t, session.EventMessage); ev.Message != "Route Container settings uploaded successfully!" {
		t.Errorf("unexpected message %q", ev.Message)
	}
	if got := sim.Route(); len(got.Waypoints) != 2 || got.Waypoints[1] != route.Waypoints[1] {
		t.Errorf("simulator did not store the route: %s", got)
	}

	// calibrations
	if err := m.StartAccelCalibration(); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventAccelCalibDone)

	if err := m.StartMagnetCalibration(); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventMagnetometerCalibrationStarted)
	if err := m.DoneMagnetCalibration(); err != nil {
		t.Fatal(err)
	}
	if ev := log.next(t, session.EventMessage); ev.Message != "Magnetometer calibration successful!" {
		t.Errorf("unexpected message %q", ev.Message)
	}

	// flight
	if err := m.StartFlightLoop(); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventRouteUpdated)
	log.next(t, session.EventFlightStarted)
	ap := log.next(t, session.EventAutopilotUpdated)
	if data, ok := ap.Data.(*skylink.AutopilotData); !ok || data.Type != skylink.AutopilotBase {
		t.Errorf("expected base position, got %v", ap.Data)
	}
	if err := m.EndFlightLoop(); err != nil {
		t.Fatal(err)
	}
	if ev := log.next(t, session.EventFlightEnded); ev.Message != session.FlightEndedByUser {
		t.Errorf("expected flight ended %q, got %q", session.FlightEndedByUser, ev.Message)
	}

	// disconnect
	if err := m.Disconnect(); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventDisconnected)
	waitIdle(t, sim)

	if m.Connected() {
		t.Error("manager should report disconnected")
	}
	for _, ev := range log.errors() {
		t.Errorf("unexpected error event: %s", ev)
	}
}

func TestSession_VersionMismatch(t *testing.T) {
	ground, board := transport.Pipe()
	New(board, WithTelemetryRate(0), WithProtocolVersion(1), WithLinger(0))
	if err := board.Connect(); err != nil {
		t.Fatal(err)
	}

	m := session.NewManager(scheduler.NewTicker())
	log := &eventLog{}
	defer m.Subscribe(log)()

	if err := m.Connect(ground); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventError)
	log.next(t, session.EventDisconnected)
}

func TestServe_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, ln, WithTelemetryRate(0)) }()

	m := session.NewManager(scheduler.NewTicker())
	log := &eventLog{}
	defer m.Subscribe(log)()

	if err := m.Connect(transport.NewTCP(ln.Addr().String())); err != nil {
		t.Fatal(err)
	}
	log.next(t, session.EventConnected)

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	log.next(t, session.EventDisconnected)
}
