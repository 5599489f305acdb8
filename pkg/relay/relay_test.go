// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/skylink"
)

// fakeBus records publications and hands subscriptions back to the test
type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string]nats.MsgHandler
	fail      error
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		handlers:  make(map[string]nats.MsgHandler),
	}
}

func (b *fakeBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.published[subject] = append(b.published[subject], data)
	return nil
}

func (b *fakeBus) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = cb
	return nil, nil
}

func (b *fakeBus) last(t *testing.T, subject string) EventMessage {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.published[subject]
	if len(msgs) == 0 {
		t.Fatalf("nothing published on %s", subject)
	}
	var m EventMessage
	if err := json.Unmarshal(msgs[len(msgs)-1], &m); err != nil {
		t.Fatal(err)
	}
	return m
}

// ============================================================
// Event Publishing Tests
// ============================================================

func TestRelay_Publish(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		ev      session.Event
		subject string
		check   func(t *testing.T, m EventMessage)
	}{
		{
			name:    "message",
			ev:      session.Event{Type: session.EventMessage, Time: at, Message: "Accelerometer calibration successful"},
			subject: "skylink.events.message",
			check: func(t *testing.T, m EventMessage) {
				if m.Message != "Accelerometer calibration successful" || !m.Time.Equal(at) {
					t.Errorf("got %+v", m)
				}
			},
		},
		{
			name:    "error",
			ev:      session.Event{Type: session.EventError, Err: session.ErrMaxRetriesExceeded},
			subject: "skylink.events.error",
			check: func(t *testing.T, m EventMessage) {
				if m.Error != session.ErrMaxRetriesExceeded.Error() || m.Time.IsZero() {
					t.Errorf("got %+v", m)
				}
			},
		},
		{
			name:    "ping delay",
			ev:      session.Event{Type: session.EventPingUpdated, Data: 1500 * time.Microsecond},
			subject: "skylink.events.ping_updated",
			check: func(t *testing.T, m EventMessage) {
				if m.DelayMS != 1.5 || m.Data != nil {
					t.Errorf("got %+v", m)
				}
			},
		},
		{
			name:    "record",
			ev:      session.Event{Type: session.EventControlUpdated, Data: skylink.NewControlSettings()},
			subject: "skylink.events.control_updated",
			check: func(t *testing.T, m EventMessage) {
				data, ok := m.Data.(map[string]any)
				if !ok || data["UAVType"] != float64(skylink.UAVQuadrocopterX) {
					t.Errorf("got %+v", m.Data)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			r := New(bus, "skylink.events", WithLink("sim"))
			r.OnSessionEvent(tt.ev)

			m := bus.last(t, tt.subject)
			if m.Link != "sim" || m.Type != tt.ev.Type.String() {
				t.Errorf("link=%q type=%q", m.Link, m.Type)
			}
			tt.check(t, m)
		})
	}
}

func TestRelay_WithoutTelemetry(t *testing.T) {
	bus := newFakeBus()
	r := New(bus, "skylink.events", WithoutTelemetry())
	r.OnSessionEvent(session.Event{Type: session.EventDebugUpdated, Data: &skylink.DebugData{}})
	r.OnSessionEvent(session.Event{Type: session.EventConnected})

	if published, _ := r.Counts(); published != 1 {
		t.Errorf("published = %d, want 1", published)
	}
	bus.last(t, "skylink.events.connected")
}

func TestRelay_PublishFailureCounted(t *testing.T) {
	bus := newFakeBus()
	bus.fail = errors.New("nats: connection closed")
	r := New(bus, "skylink.events")
	r.OnSessionEvent(session.Event{Type: session.EventConnected})

	if published, failed := r.Counts(); published != 0 || failed != 1 {
		t.Errorf("counts = %d/%d, want 0/1", published, failed)
	}
}

// ============================================================
// Command Tests
// ============================================================

type fakeController struct {
	calls []string
	err   error
}

func (c *fakeController) call(name string) error {
	c.calls = append(c.calls, name)
	return c.err
}

func (c *fakeController) Disconnect() error              { return c.call("Disconnect") }
func (c *fakeController) StartFlightLoop() error         { return c.call("StartFlightLoop") }
func (c *fakeController) EndFlightLoop() error           { return c.call("EndFlightLoop") }
func (c *fakeController) StartAccelCalibration() error   { return c.call("StartAccelCalibration") }
func (c *fakeController) StartMagnetCalibration() error  { return c.call("StartMagnetCalibration") }
func (c *fakeController) DoneMagnetCalibration() error   { return c.call("DoneMagnetCalibration") }
func (c *fakeController) CancelMagnetCalibration() error { return c.call("CancelMagnetCalibration") }
func (c *fakeController) DownloadControlSettings() error { return c.call("DownloadControlSettings") }
func (c *fakeController) DownloadRouteContainer() error  { return c.call("DownloadRouteContainer") }

func TestExecute(t *testing.T) {
	tests := []struct {
		command string
		call    string
	}{
		{"disconnect", "Disconnect"},
		{"start_flight", "StartFlightLoop"},
		{"end_flight", "EndFlightLoop"},
		{"calibrate_accel", "StartAccelCalibration"},
		{"calibrate_magnet", "StartMagnetCalibration"},
		{"magnet_done", "DoneMagnetCalibration"},
		{"magnet_cancel", "CancelMagnetCalibration"},
		{"download_control_settings", "DownloadControlSettings"},
		{"download_route", "DownloadRouteContainer"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			c := &fakeController{}
			if err := Execute(c, tt.command); err != nil {
				t.Fatal(err)
			}
			if len(c.calls) != 1 || c.calls[0] != tt.call {
				t.Errorf("calls = %v, want [%s]", c.calls, tt.call)
			}
		})
	}

	if err := Execute(&fakeController{}, "self_destruct"); err == nil {
		t.Error("expected an error for an unknown command")
	}
}

func TestServeCommands_Reply(t *testing.T) {
	bus := newFakeBus()
	r := New(bus, "skylink.events")
	c := &fakeController{err: session.ErrNotInApplicationLoop}
	if err := r.ServeCommands("skylink.commands", c); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	handler := bus.handlers["skylink.commands"]
	if handler == nil {
		t.Fatal("no subscription")
	}
	handler(&nats.Msg{Subject: "skylink.commands", Reply: "_INBOX.1", Data: []byte(`{"command":"start_flight"}`)})
	handler(&nats.Msg{Subject: "skylink.commands", Data: []byte(`not json`)})

	if len(c.calls) != 1 || c.calls[0] != "StartFlightLoop" {
		t.Errorf("calls = %v", c.calls)
	}

	bus.mu.Lock()
	replies := bus.published["_INBOX.1"]
	bus.mu.Unlock()
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	var reply CommandReply
	if err := json.Unmarshal(replies[0], &reply); err != nil {
		t.Fatal(err)
	}
	if reply.OK || reply.Error != session.ErrNotInApplicationLoop.Error() {
		t.Errorf("reply = %+v", reply)
	}
}
