// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"io"
	"sync"
)

// pipeDepth is the number of writes buffered in each direction
const pipeDepth = 4096

// pipeEnd is one side of an in-memory byte pipe. Writes never block on the
// peer reading unless pipeDepth writes are pending.
type pipeEnd struct {
	in     <-chan []byte
	out    chan<- []byte
	buf    []byte
	closed chan struct{}
	peer   *pipeEnd
	once   sync.Once
}

func (p *pipeEnd) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		select {
		case data := <-p.in:
			p.buf = data
		case <-p.closed:
			return 0, io.EOF
		case <-p.peer.closed:
			// drain what the peer wrote before closing
			select {
			case data := <-p.in:
				p.buf = data
			default:
				return 0, io.EOF
			}
		}
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *pipeEnd) Write(b []byte) (int, error) {
	data := make([]byte, len(b))
	copy(data, b)
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	case <-p.peer.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- data:
		return len(b), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	case <-p.peer.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// Pipe returns two connected in-memory transports. Bytes sent on one are
// received by the other; disconnecting either side disconnects both.
func Pipe(opts ...Option) (*Stream, *Stream) {
	ab := make(chan []byte, pipeDepth)
	ba := make(chan []byte, pipeDepth)
	a := &pipeEnd{in: ba, out: ab, closed: make(chan struct{})}
	b := &pipeEnd{in: ab, out: ba, closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return FromConn("Pipe: a", a, opts...), FromConn("Pipe: b", b, opts...)
}
