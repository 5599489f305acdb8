// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport moves raw link bytes over serial ports, WebSockets, TCP
// and in-memory pipes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by Send before Connect or after Disconnect
var ErrNotConnected = errors.New("transport: not connected")

// Transport is a byte stream to a peer. Callbacks are delivered to the
// Listener from the transport's reader goroutine, one at a time.
type Transport interface {
	Connect() error
	Disconnect() error
	Send(data []byte) error
	SetListener(l Listener)
}

// Listener receives transport notifications
type Listener interface {
	OnConnected()
	OnDisconnected()
	OnError(err error)
	OnDataReceived(data []byte)
}

// Dialer opens the underlying connection of a Stream
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Option configures a Stream
type Option func(*Stream)

// WithLogger sets the logger used for connection lifecycle messages
func WithLogger(log zerolog.Logger) Option {
	return func(s *Stream) {
		s.log = log
	}
}

// WithDialTimeout bounds how long Connect waits for the dialer
func WithDialTimeout(d time.Duration) Option {
	return func(s *Stream) {
		s.dialTimeout = d
	}
}

// WithReadBufferSize sets the size of the read buffer
func WithReadBufferSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.readSize = n
		}
	}
}

// Stream is a Transport over any io.ReadWriteCloser produced by a Dialer
type Stream struct {
	name        string
	dial        Dialer
	dialTimeout time.Duration
	readSize    int
	log         zerolog.Logger

	mu       sync.Mutex
	conn     io.ReadWriteCloser
	listener Listener
	closing  bool
	done     chan struct{}

	writeMu sync.Mutex
}

// NewStream creates a transport that dials with dial on Connect
func NewStream(name string, dial Dialer, opts ...Option) *Stream {
	s := &Stream{
		name:        name,
		dial:        dial,
		dialTimeout: 15 * time.Second,
		readSize:    256,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConn wraps an already open connection, e.g. one accepted by a listener
func FromConn(name string, conn io.ReadWriteCloser, opts ...Option) *Stream {
	used := false
	return NewStream(name, func(context.Context) (io.ReadWriteCloser, error) {
		if used {
			return nil, fmt.Errorf("%s: connection already used", name)
		}
		used = true
		return conn, nil
	}, opts...)
}

// String returns the transport description
func (s *Stream) String() string {
	return s.name
}

// SetListener implements Transport
func (s *Stream) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Connect implements Transport. OnConnected is delivered from the reader
// goroutine before any data.
func (s *Stream) Connect() error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: already connected", s.name)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout)
	defer cancel()
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.closing = false
	s.done = make(chan struct{})
	listener := s.listener
	done := s.done
	s.mu.Unlock()

	s.log.Info().Str("transport", s.name).Msg("Connected")
	go s.readLoop(conn, listener, done)
	return nil
}

// Disconnect implements Transport. It closes the connection and returns
// without waiting; OnDisconnected follows from the reader goroutine.
func (s *Stream) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	s.log.Info().Str("transport", s.name).Msg("Disconnecting")
	return conn.Close()
}

// Send implements Transport
func (s *Stream) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	closing := s.closing
	s.mu.Unlock()
	if conn == nil || closing {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%s: write: %w", s.name, err)
	}
	return nil
}

// Done returns a channel closed once the reader goroutine has exited, or nil
// if never connected
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Stream) readLoop(conn io.ReadWriteCloser, l Listener, done chan struct{}) {
	defer close(done)
	if l != nil {
		l.OnConnected()
	}

	buf := make([]byte, s.readSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 && l != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			l.OnDataReceived(data)
		}
		if err == nil {
			continue
		}

		s.mu.Lock()
		closing := s.closing
		s.closing = true
		s.mu.Unlock()

		if !closing {
			if !errors.Is(err, io.EOF) {
				s.log.Warn().Err(err).Str("transport", s.name).Msg("Read failed")
			}
			conn.Close()
			if l != nil {
				l.OnError(fmt.Errorf("%s: read: %w", s.name, err))
			}
		}
		break
	}

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()

	s.log.Info().Str("transport", s.name).Msg("Disconnected")
	if l != nil {
		l.OnDisconnected()
	}
}
