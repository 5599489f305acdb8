// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// wsConn adapts a WebSocket to a byte stream. Each binary message is one
// write; reads drain a message before fetching the next.
type wsConn struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *wsConn) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}

		// link frames travel as binary messages only
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// WebSocketConfig describes a WebSocket endpoint
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// WebSocketDialer dials cfg.URL with HTTP Basic auth when credentials are set
func WebSocketDialer(cfg WebSocketConfig) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}

		switch u.Scheme {
		case "ws", "wss":
		default:
			return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
		}

		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		}
		if u.Scheme == "wss" {
			dialer.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: cfg.SkipSSLVerify,
			}
		}

		headers := http.Header{}
		if cfg.Username != "" && cfg.Password != "" {
			credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
			headers.Set("Authorization", "Basic "+credentials)
		}

		conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("WebSocket connection failed: %w", err)
		}
		return &wsConn{conn: conn}, nil
	}
}

// NewWebSocket creates a WebSocket transport
func NewWebSocket(cfg WebSocketConfig, opts ...Option) *Stream {
	return NewStream("WebSocket: "+cfg.URL, WebSocketDialer(cfg), opts...)
}

// AcceptWebSocket upgrades an incoming HTTP request and wraps it as a
// transport, for serving the link to WebSocket clients
func AcceptWebSocket(w http.ResponseWriter, r *http.Request, opts ...Option) (*Stream, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return FromConn("WebSocket: "+r.RemoteAddr, &wsConn{conn: conn}, opts...), nil
}
