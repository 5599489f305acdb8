// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder is a Listener that records every callback
type recorder struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	errs         []error
	data         []byte
	changed      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{changed: make(chan struct{}, 64)}
}

func (r *recorder) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

func (r *recorder) OnConnected() {
	r.mu.Lock()
	r.connected++
	r.mu.Unlock()
	r.notify()
}

func (r *recorder) OnDisconnected() {
	r.mu.Lock()
	r.disconnected++
	r.mu.Unlock()
	r.notify()
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.notify()
}

func (r *recorder) OnDataReceived(data []byte) {
	r.mu.Lock()
	r.data = append(r.data, data...)
	r.mu.Unlock()
	r.notify()
}

// waitFor polls cond until it holds or the timeout expires
func (r *recorder) waitFor(t *testing.T, what string, cond func(r *recorder) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		ok := cond(r)
		r.mu.Unlock()
		if ok {
			return
		}
		select {
		case <-r.changed:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func connectPair(t *testing.T, a, b *Stream) (*recorder, *recorder) {
	t.Helper()
	ra, rb := newRecorder(), newRecorder()
	a.SetListener(ra)
	b.SetListener(rb)
	if err := a.Connect(); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	if err := b.Connect(); err != nil {
		t.Fatalf("connect b: %v", err)
	}
	ra.waitFor(t, "a connected", func(r *recorder) bool { return r.connected == 1 })
	rb.waitFor(t, "b connected", func(r *recorder) bool { return r.connected == 1 })
	return ra, rb
}

// ============================================================
// Pipe Tests
// ============================================================

func TestPipe_SendReceive(t *testing.T) {
	a, b := Pipe()
	ra, rb := connectPair(t, a, b)

	if err := a.Send([]byte("$$$\x00hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := b.Send([]byte("pong")); err != nil {
		t.Fatalf("send: %v", err)
	}

	rb.waitFor(t, "data at b", func(r *recorder) bool { return bytes.Equal(r.data, []byte("$$$\x00hello")) })
	ra.waitFor(t, "data at a", func(r *recorder) bool { return bytes.Equal(r.data, []byte("pong")) })
}

func TestPipe_DisconnectPropagates(t *testing.T) {
	a, b := Pipe()
	ra, rb := connectPair(t, a, b)

	if err := a.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	ra.waitFor(t, "a disconnected", func(r *recorder) bool { return r.disconnected == 1 })
	rb.waitFor(t, "b disconnected", func(r *recorder) bool { return r.disconnected == 1 })

	ra.mu.Lock()
	if len(ra.errs) != 0 {
		t.Errorf("local disconnect should not report errors, got %v", ra.errs)
	}
	ra.mu.Unlock()

	if err := a.Send([]byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	<-a.Done()
	<-b.Done()
}

func TestPipe_LargeBurst(t *testing.T) {
	a, b := Pipe(WithReadBufferSize(7))
	_, rb := connectPair(t, a, b)

	var want []byte
	for i := 0; i < 500; i++ {
		frame := []byte{byte(i), byte(i >> 8), 0xAA}
		want = append(want, frame...)
		if err := a.Send(frame); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	rb.waitFor(t, "burst", func(r *recorder) bool { return len(r.data) == len(want) })

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if !bytes.Equal(rb.data, want) {
		t.Error("burst data reordered or corrupted")
	}
}

// ============================================================
// Stream Tests
// ============================================================

func TestStream_SendBeforeConnect(t *testing.T) {
	a, _ := Pipe()
	if err := a.Send([]byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Errorf("disconnect before connect should be a no-op, got %v", err)
	}
}

func TestStream_DialFailure(t *testing.T) {
	s := NewTCP("127.0.0.1:1", WithDialTimeout(500*time.Millisecond))
	err := s.Connect()
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !strings.Contains(err.Error(), "TCP: 127.0.0.1:1") {
		t.Errorf("error should name the transport: %v", err)
	}
}

func TestStream_ConnReusedOnce(t *testing.T) {
	a, b := Pipe()
	connectPair(t, a, b)
	a.Disconnect()
	<-a.Done()
	if err := a.Connect(); err == nil {
		t.Error("a wrapped connection cannot be dialed twice")
	}
}

func TestTCP_RemoteCloseReportsError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	s := NewTCP(ln.Addr().String())
	r := newRecorder()
	s.SetListener(r)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	server := <-accepted
	server.Write([]byte{0x24, 0x24, 0x24, 0x00})
	r.waitFor(t, "data", func(r *recorder) bool { return len(r.data) == 4 })

	server.Close()
	r.waitFor(t, "disconnect", func(r *recorder) bool { return r.disconnected == 1 })

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) != 1 {
		t.Errorf("expected one error for a remote close, got %v", r.errs)
	}
}

// ============================================================
// WebSocket Tests
// ============================================================

func TestWebSocket_RoundTrip(t *testing.T) {
	serverSide := make(chan *Stream, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s, err := AcceptWebSocket(w, r)
		if err != nil {
			return
		}
		serverSide <- s
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWebSocket(WebSocketConfig{URL: wsURL, Username: "admin", Password: "secret"})
	server := func() *Stream {
		rc := newRecorder()
		client.SetListener(rc)
		if err := client.Connect(); err != nil {
			t.Fatalf("connect: %v", err)
		}
		return <-serverSide
	}()

	rs := newRecorder()
	server.SetListener(rs)
	if err := server.Connect(); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	if err := client.Send([]byte("%%%\x00abcdefgh")); err != nil {
		t.Fatalf("send: %v", err)
	}
	rs.waitFor(t, "server data", func(r *recorder) bool { return string(r.data) == "%%%\x00abcdefgh" })

	client.Disconnect()
	rs.waitFor(t, "server disconnect", func(r *recorder) bool { return r.disconnected == 1 })
}

func TestWebSocket_BadScheme(t *testing.T) {
	s := NewWebSocket(WebSocketConfig{URL: "http://example.invalid"})
	if err := s.Connect(); err == nil || !strings.Contains(err.Error(), "unsupported URL scheme") {
		t.Errorf("expected scheme error, got %v", err)
	}
}

func TestWebSocket_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewWebSocket(WebSocketConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	if err := s.Connect(); err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("expected HTTP 401 error, got %v", err)
	}
}
