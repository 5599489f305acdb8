// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package relay publishes session events to NATS and accepts operator
// commands from it
package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/skylink/pkg/session"
)

// Bus is the part of *nats.Conn the relay uses
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Controller is the part of *session.Manager commands are routed to
type Controller interface {
	Disconnect() error
	StartFlightLoop() error
	EndFlightLoop() error
	StartAccelCalibration() error
	StartMagnetCalibration() error
	DoneMagnetCalibration() error
	CancelMagnetCalibration() error
	DownloadControlSettings() error
	DownloadRouteContainer() error
}

// EventMessage is the JSON body published for every session event
type EventMessage struct {
	Link    string    `json:"link"`
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	DelayMS float64   `json:"delay_ms,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// CommandRequest is the JSON body of an operator command
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandReply answers a command sent with a reply subject
type CommandReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Option configures a Relay
type Option func(*Relay)

// WithLogger sets the relay logger
func WithLogger(log zerolog.Logger) Option {
	return func(r *Relay) {
		r.log = log
	}
}

// WithLink names the link in published events
func WithLink(name string) Option {
	return func(r *Relay) {
		r.link = name
	}
}

// WithoutTelemetry skips DEBUG_UPDATED, AUTOPILOT_UPDATED and PING_UPDATED
func WithoutTelemetry() Option {
	return func(r *Relay) {
		r.skipTelemetry = true
	}
}

// Dial connects to a NATS server, reconnecting forever on loss
func Dial(url, name string, log zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("relay: connect %s: %w", url, err)
	}
	return nc, nil
}

// Relay is a session.Listener publishing each event on <subject>.<type>
type Relay struct {
	bus           Bus
	subject       string
	link          string
	skipTelemetry bool
	log           zerolog.Logger

	mu        sync.Mutex
	sub       *nats.Subscription
	published uint64
	failed    uint64
}

// New returns a relay publishing under subject
func New(bus Bus, subject string, opts ...Option) *Relay {
	r := &Relay{
		bus:     bus,
		subject: subject,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subject returns the subject ev is published on
func (r *Relay) Subject(t session.EventType) string {
	return r.subject + "." + strings.ToLower(t.String())
}

// OnSessionEvent implements session.Listener
func (r *Relay) OnSessionEvent(ev session.Event) {
	if r.skipTelemetry {
		switch ev.Type {
		case session.EventDebugUpdated, session.EventAutopilotUpdated, session.EventPingUpdated:
			return
		}
	}

	body, err := json.Marshal(r.message(ev))
	if err != nil {
		r.log.Warn().Err(err).Str("type", ev.Type.String()).Msg("Event encode failed")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.bus.Publish(r.Subject(ev.Type), body); err != nil {
		r.failed++
		r.log.Warn().Err(err).Str("type", ev.Type.String()).Msg("Event publish failed")
		return
	}
	r.published++
}

func (r *Relay) message(ev session.Event) EventMessage {
	m := EventMessage{
		Link:    r.link,
		Type:    ev.Type.String(),
		Time:    ev.Time,
		Message: ev.Message,
	}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	switch data := ev.Data.(type) {
	case nil:
	case time.Duration:
		m.DelayMS = float64(data) / float64(time.Millisecond)
	default:
		m.Data = data
	}
	return m
}

// Counts returns the number of published and failed events
func (r *Relay) Counts() (published, failed uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.failed
}

// ServeCommands routes commands received on subject to c until Close
func (r *Relay) ServeCommands(subject string, c Controller) error {
	sub, err := r.bus.Subscribe(subject, func(msg *nats.Msg) {
		r.handleCommand(msg, c)
	})
	if err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", subject, err)
	}
	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
	r.log.Info().Str("subject", subject).Msg("Accepting commands")
	return nil
}

func (r *Relay) handleCommand(msg *nats.Msg, c Controller) {
	var req CommandRequest
	err := json.Unmarshal(msg.Data, &req)
	if err == nil {
		err = Execute(c, req.Command)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("command", req.Command).Msg("Command failed")
	} else {
		r.log.Info().Str("command", req.Command).Msg("Command accepted")
	}

	if msg.Reply == "" {
		return
	}
	reply := CommandReply{OK: err == nil}
	if err != nil {
		reply.Error = err.Error()
	}
	body, _ := json.Marshal(reply)
	if perr := r.bus.Publish(msg.Reply, body); perr != nil {
		r.log.Warn().Err(perr).Msg("Command reply failed")
	}
}

// Execute runs the named command on c
func Execute(c Controller, command string) error {
	switch command {
	case "disconnect":
		return c.Disconnect()
	case "start_flight":
		return c.StartFlightLoop()
	case "end_flight":
		return c.EndFlightLoop()
	case "calibrate_accel":
		return c.StartAccelCalibration()
	case "calibrate_magnet":
		return c.StartMagnetCalibration()
	case "magnet_done":
		return c.DoneMagnetCalibration()
	case "magnet_cancel":
		return c.CancelMagnetCalibration()
	case "download_control_settings":
		return c.DownloadControlSettings()
	case "download_route":
		return c.DownloadRouteContainer()
	}
	return fmt.Errorf("relay: unknown command %q", command)
}

// Close stops accepting commands
func (r *Relay) Close() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			r.log.Debug().Err(err).Msg("Unsubscribe failed")
		}
	}
}
