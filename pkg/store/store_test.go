// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/skylink"
)

// memKV is an in-memory KV recording expirations
type memKV struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	ttl     map[string]time.Duration
	fail    error
}

func newMemKV() *memKV {
	return &memKV{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		ttl:     make(map[string]time.Duration),
	}
}

func (m *memKV) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return redis.NewStatusResult("", m.fail)
	}
	switch v := value.(type) {
	case []byte:
		m.strings[key] = string(v)
	default:
		m.strings[key] = fmt.Sprint(v)
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memKV) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (m *memKV) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *memKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.strings, k)
		delete(m.hashes, k)
		delete(m.ttl, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *memKV) hash(key string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out
}

// ============================================================
// Snapshot Tests
// ============================================================

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := New(kv, "skylink", "sim", WithTTL(time.Hour))

	cs := skylink.NewControlSettings()
	cs.UAVType = skylink.UAVHexacopterX
	cs.SetCRC()
	route := skylink.NewRouteContainer(skylink.Waypoint{Latitude: 50.06, Longitude: 19.94, RelativeAltitude: 30})

	for _, rec := range []skylink.SignalPayloadData{cs, route, skylink.NewCalibrationSettings()} {
		if err := s.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if kv.ttl["skylink:sim:control"] != time.Hour {
		t.Errorf("ttl = %v, want 1h", kv.ttl["skylink:sim:control"])
	}

	gotCS, err := s.LoadControlSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *gotCS != *cs {
		t.Errorf("control settings = %s, want %s", gotCS, cs)
	}

	gotRoute, err := s.LoadRoute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotRoute.Waypoints) != 1 || gotRoute.Waypoints[0] != route.Waypoints[0] {
		t.Errorf("route = %s", gotRoute)
	}

	cal, err := s.Load(ctx, RecordCalibration)
	if err != nil {
		t.Fatal(err)
	}
	if !cal.IsValid() {
		t.Error("calibration CRC mismatch")
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := New(newMemKV(), "skylink", "sim")
	if _, err := s.Load(context.Background(), RecordRoute); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.Load(context.Background(), "firmware"); err == nil {
		t.Error("expected error for unknown record")
	}
}

// ============================================================
// Event Worker Tests
// ============================================================

func waitWritten(t *testing.T, s *Store, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		written, _ := s.Counts()
		if written >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("written = %d, want %d", written, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStore_Events(t *testing.T) {
	kv := newMemKV()
	s := New(kv, "skylink", "sim", WithTTL(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	now := time.Unix(1750000000, 0)
	s.OnSessionEvent(session.Event{Type: session.EventConnected, Time: now})
	s.OnSessionEvent(session.Event{Type: session.EventDebugUpdated, Data: &skylink.DebugData{}})
	s.OnSessionEvent(session.Event{Type: session.EventPingUpdated, Time: now, Data: 2 * time.Millisecond})
	s.OnSessionEvent(session.Event{Type: session.EventRouteUpdated, Data: skylink.NewRouteContainer()})
	waitWritten(t, s, 3)

	h := kv.hash(s.SessionKey())
	if h["state"] != "connected" || h["connected_at"] != "1750000000" || h["ping_us"] != "2000" {
		t.Errorf("session hash = %v", h)
	}
	if kv.ttl[s.SessionKey()] != time.Minute {
		t.Errorf("session ttl = %v", kv.ttl[s.SessionKey()])
	}
	if _, err := s.LoadRoute(context.Background()); err != nil {
		t.Errorf("route not stored: %v", err)
	}

	s.OnSessionEvent(session.Event{Type: session.EventDisconnected})
	waitWritten(t, s, 4)
	if len(kv.hash(s.SessionKey())) != 0 {
		t.Error("session key should be deleted on disconnect")
	}
}

func TestStore_QueueFullDrops(t *testing.T) {
	s := New(newMemKV(), "skylink", "sim")
	for i := 0; i < queueSize+3; i++ {
		s.OnSessionEvent(session.Event{Type: session.EventPingUpdated, Data: time.Millisecond})
	}
	if _, dropped := s.Counts(); dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
}

func TestStore_WriteFailureLogged(t *testing.T) {
	kv := newMemKV()
	kv.fail = errors.New("READONLY")
	s := New(kv, "skylink", "sim")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.OnSessionEvent(session.Event{Type: session.EventControlUpdated, Data: skylink.NewControlSettings()})
	s.OnSessionEvent(session.Event{Type: session.EventConnected, Time: time.Now()})
	waitWritten(t, s, 1)
	if written, _ := s.Counts(); written != 1 {
		t.Errorf("written = %d, want only the session write", written)
	}
}
