// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store keeps the last settings records of a link in Redis, along
// with a session key refreshed while the link is up
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/skylink"
)

// ErrNotFound is returned when no snapshot is stored for a record
var ErrNotFound = errors.New("store: not found")

// KV is the part of a go-redis client the store uses
type KV interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Record names
const (
	RecordCalibration = "calibration"
	RecordControl     = "control"
	RecordRoute       = "route"
)

const queueSize = 64

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithTTL sets the expiry of snapshots and of the session key
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// Store is a session.Listener that persists records off the engine goroutine.
// Events are queued and written by Run; a full queue drops the event.
type Store struct {
	kv     KV
	prefix string
	link   string
	ttl    time.Duration
	log    zerolog.Logger

	queue chan session.Event

	mu      sync.Mutex
	dropped uint64
	written uint64
}

// New returns a store writing keys under <prefix>:<link>
func New(kv KV, prefix, link string, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		prefix: prefix,
		link:   link,
		ttl:    24 * time.Hour,
		log:    zerolog.Nop(),
		queue:  make(chan session.Event, queueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial returns a go-redis client after checking the server answers
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("store: connect %s: %w", addr, err)
	}
	return rdb, nil
}

// Key returns the Redis key of a record name
func (s *Store) Key(name string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.link, name)
}

// SessionKey returns the key of the session hash
func (s *Store) SessionKey() string {
	return s.Key("session")
}

// OnSessionEvent implements session.Listener. It never blocks.
func (s *Store) OnSessionEvent(ev session.Event) {
	switch ev.Type {
	case session.EventConnected, session.EventDisconnected, session.EventPingUpdated,
		session.EventCalibrationUpdated, session.EventControlUpdated, session.EventRouteUpdated:
	default:
		return
	}

	select {
	case s.queue <- ev:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.log.Warn().Str("type", ev.Type.String()).Msg("Store queue full, event dropped")
	}
}

// Run writes queued events until ctx is done
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			if err := s.apply(ctx, ev); err != nil {
				s.log.Warn().Err(err).Str("type", ev.Type.String()).Msg("Store write failed")
				continue
			}
			s.mu.Lock()
			s.written++
			s.mu.Unlock()
		}
	}
}

// Counts returns the number of written and dropped events
func (s *Store) Counts() (written, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, s.dropped
}

func (s *Store) apply(ctx context.Context, ev session.Event) error {
	switch ev.Type {
	case session.EventConnected:
		key := s.SessionKey()
		if err := s.kv.HSet(ctx, key, "connected_at", ev.Time.Unix(), "state", "connected").Err(); err != nil {
			return err
		}
		return s.kv.Expire(ctx, key, s.ttl).Err()

	case session.EventDisconnected:
		return s.kv.Del(ctx, s.SessionKey()).Err()

	case session.EventPingUpdated:
		delay, _ := ev.Data.(time.Duration)
		key := s.SessionKey()
		if err := s.kv.HSet(ctx, key, "ping_us", delay.Microseconds(), "seen_at", ev.Time.Unix()).Err(); err != nil {
			return err
		}
		return s.kv.Expire(ctx, key, s.ttl).Err()
	}

	data, ok := ev.Data.(skylink.SignalPayloadData)
	if !ok {
		return fmt.Errorf("store: %s without a record", ev.Type)
	}
	return s.Save(ctx, data)
}

// Save writes the serialized record
func (s *Store) Save(ctx context.Context, data skylink.SignalPayloadData) error {
	name, err := recordName(data.DataType())
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.Key(name), data.Serialize(), s.ttl).Err()
}

// Load reads and decodes the record stored under name
func (s *Store) Load(ctx context.Context, name string) (skylink.SignalPayloadData, error) {
	var dataType skylink.Command
	switch name {
	case RecordCalibration:
		dataType = skylink.CmdCalibrationSettingsData
	case RecordControl:
		dataType = skylink.CmdControlSettingsData
	case RecordRoute:
		dataType = skylink.CmdRouteContainerData
	default:
		return nil, fmt.Errorf("store: unknown record %q", name)
	}

	b, err := s.kv.Get(ctx, s.Key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return skylink.DecodePayload(dataType, b)
}

// LoadControlSettings returns the stored control settings
func (s *Store) LoadControlSettings(ctx context.Context) (*skylink.ControlSettings, error) {
	data, err := s.Load(ctx, RecordControl)
	if err != nil {
		return nil, err
	}
	return data.(*skylink.ControlSettings), nil
}

// LoadRoute returns the stored route
func (s *Store) LoadRoute(ctx context.Context) (*skylink.RouteContainer, error) {
	data, err := s.Load(ctx, RecordRoute)
	if err != nil {
		return nil, err
	}
	return data.(*skylink.RouteContainer), nil
}

func recordName(dataType skylink.Command) (string, error) {
	switch dataType {
	case skylink.CmdCalibrationSettingsData:
		return RecordCalibration, nil
	case skylink.CmdControlSettingsData:
		return RecordControl, nil
	case skylink.CmdRouteContainerData:
		return RecordRoute, nil
	}
	return "", fmt.Errorf("store: no record for %s", dataType)
}
