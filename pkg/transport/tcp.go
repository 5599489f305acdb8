// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"io"
	"net"
)

// TCPDialer connects to addr (host:port)
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("tcp connection failed: %w", err)
		}
		return conn, nil
	}
}

// NewTCP creates a TCP transport
func NewTCP(addr string, opts ...Option) *Stream {
	return NewStream("TCP: "+addr, TCPDialer(addr), opts...)
}
