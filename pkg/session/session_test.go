// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/skylink"
	"github.com/Thermoquad/skylink/pkg/transport"
)

// fakeTransport records everything sent and never delivers callbacks on its
// own; tests drive the engine's Listener methods directly
type fakeTransport struct {
	mu          sync.Mutex
	listener    transport.Listener
	sent        []byte
	connected   bool
	disconnects int
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	f.connected = true
	l := f.listener
	f.mu.Unlock()
	l.OnConnected()
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	f.sent = append(f.sent, data...)
	return nil
}

func (f *fakeTransport) SetListener(l transport.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
}

// harness connects a Manager to a fakeTransport on a manual scheduler
type harness struct {
	t      *testing.T
	sched  *scheduler.Manual
	tr     *fakeTransport
	m      *Manager
	now    time.Time
	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		sched: scheduler.NewManual(),
		tr:    &fakeTransport{},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.m = NewManager(h.sched, WithClock(func() time.Time { return h.now }))
	h.m.Subscribe(ListenerFunc(func(ev Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, ev)
	}))
	if err := h.m.Connect(h.tr); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return h
}

// connected returns a harness whose session reached the application loop
func connected(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.signal(skylink.CmdStart, skylink.ParamAck)
	h.feed(skylink.NewValueSignal(skylink.CmdProtocolVersionValue, skylink.ProtocolVersion).Message())
	h.signal(skylink.CmdCalibrationSettings, skylink.ParamReady)
	h.payload(skylink.NewCalibrationSettings())
	h.signal(skylink.CmdAppLoop, skylink.ParamAck)
	if h.m.Active() != ActionApplicationLoop {
		t.Fatalf("expected application loop after connect, got %s", h.m.Active())
	}
	h.takeSent()
	h.clearEvents()
	return h
}

func (h *harness) feed(msgs ...*skylink.Message) {
	for _, m := range msgs {
		h.m.Engine().OnDataReceived(m.Bytes())
	}
}

func (h *harness) signal(cmd skylink.Command, param skylink.Parameter) {
	h.feed(skylink.NewSignal(cmd, param).Message())
}

func (h *harness) payload(p skylink.SignalPayloadData) {
	h.feed(skylink.BuildMessages(p)...)
}

// takeSent decodes and clears everything the engine sent
func (h *harness) takeSent() []skylink.Event {
	h.tr.mu.Lock()
	data := h.tr.sent
	h.tr.sent = nil
	h.tr.mu.Unlock()

	var out []skylink.Event
	d := skylink.NewDispatcher(skylink.DispatcherFunc(func(ev skylink.Event) {
		out = append(out, ev)
	}))
	d.Feed(data)
	if d.Failures() != 0 {
		h.t.Fatalf("engine sent %d malformed frames", d.Failures())
	}
	return out
}

// sentSignals returns the signals sent since the last takeSent
func (h *harness) sentSignals() []skylink.SignalData {
	var out []skylink.SignalData
	for _, ev := range h.takeSent() {
		if s, ok := skylink.SignalOf(ev); ok {
			out = append(out, s)
		}
	}
	return out
}

func (h *harness) expectSent(want ...skylink.SignalData) {
	h.t.Helper()
	got := h.sentSignals()
	if len(got) != len(want) {
		h.t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			h.t.Fatalf("sent %v, want %v", got, want)
		}
	}
}

func (h *harness) clearEvents() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}

func (h *harness) eventsOf(t EventType) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, ev := range h.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (h *harness) expectEvents(t EventType, n int) []Event {
	h.t.Helper()
	got := h.eventsOf(t)
	if len(got) != n {
		h.t.Fatalf("expected %d %s events, got %d", n, t, len(got))
	}
	return got
}

func (h *harness) expectState(t ActionType, state string) {
	h.t.Helper()
	gotType, gotState := h.m.Engine().ActiveState()
	if gotType != t || gotState != state {
		h.t.Fatalf("expected %s/%s, got %s/%s", t, state, gotType, gotState)
	}
}

func sig(cmd skylink.Command, param skylink.Parameter) skylink.SignalData {
	return skylink.NewSignal(cmd, param)
}

func invalidCalibration() *skylink.CalibrationSettings {
	cs := skylink.NewCalibrationSettings()
	cs.BoardType = skylink.BoardProV1
	return cs
}

func sampleRoute() *skylink.RouteContainer {
	return skylink.NewRouteContainer(
		skylink.Waypoint{Latitude: 50.06, Longitude: 19.94, AbsoluteAltitude: 230, RelativeAltitude: 20, Velocity: 3},
		skylink.Waypoint{Latitude: 50.07, Longitude: 19.95, AbsoluteAltitude: 240, RelativeAltitude: 30, Velocity: 4},
	)
}

// expectSignalTimeout checks the error event of an expired handshake step
func (h *harness) expectSignalTimeout(action ActionType, cmd skylink.Command) {
	h.t.Helper()
	errs := h.expectEvents(EventError, 1)
	var toErr *SignalTimeoutError
	if !errors.As(errs[0].Err, &toErr) || !errors.Is(errs[0].Err, ErrSignalTimeout) {
		h.t.Fatalf("expected SignalTimeoutError, got %v", errs[0].Err)
	}
	if toErr.Action != action || toErr.Command != cmd {
		h.t.Errorf("timed out %s/%s, want %s/%s", toErr.Action, toErr.Command, action, cmd)
	}
}

// expectWindow checks that the signal timeout task runs with window
func (h *harness) expectWindow(window time.Duration) {
	h.t.Helper()
	if !h.sched.Running(SignalTimeoutTaskName) {
		h.t.Fatal("signal timeout task should be running")
	}
	if got, want := h.sched.Frequency(SignalTimeoutTaskName), 1/window.Seconds(); got != want {
		h.t.Errorf("signal timeout frequency = %v, want %v", got, want)
	}
}
