// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records the raw bytes of a link to a CBOR capture file and
// plays captures back through a frame dispatcher
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/skylink/pkg/transport"
)

// Direction of a captured block relative to this end of the link
type Direction uint8

const (
	DirRX Direction = iota
	DirTX
)

// String returns "rx" or "tx"
func (d Direction) String() string {
	if d == DirTX {
		return "tx"
	}
	return "rx"
}

// Record is one block of bytes as it crossed the transport
type Record struct {
	Time time.Time `cbor:"1,keyasint"`
	Dir  Direction `cbor:"2,keyasint"`
	Data []byte    `cbor:"3,keyasint"`
}

// timestamps keep nanosecond precision; the default mode truncates to seconds
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Recorder appends records to a writer as a CBOR sequence. Safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	now   func() time.Time
	count int
	err   error
}

// NewRecorder returns a recorder writing to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: encMode.NewEncoder(w), now: time.Now}
}

// Write records data in direction dir. After the first write error every
// later write is dropped and Err reports the failure.
func (r *Recorder) Write(dir Direction, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}

	rec := Record{Time: r.now(), Dir: dir, Data: append([]byte(nil), data...)}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("capture: write record: %w", err)
		return r.err
	}
	r.count++
	return nil
}

// Count returns the number of records written
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Reader decodes a capture file record by record
type Reader struct {
	dec *cbor.Decoder
}

// NewReader returns a reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("capture: read record: %w", err)
	}
	return rec, nil
}

// Tap wraps a transport and records every block sent and received on it
type Tap struct {
	inner transport.Transport
	rec   *Recorder
}

// NewTap records the traffic of inner into rec
func NewTap(inner transport.Transport, rec *Recorder) *Tap {
	return &Tap{inner: inner, rec: rec}
}

// Connect connects the wrapped transport
func (t *Tap) Connect() error { return t.inner.Connect() }

// Disconnect disconnects the wrapped transport
func (t *Tap) Disconnect() error { return t.inner.Disconnect() }

// Send records data and sends it. A capture failure does not stop the link.
func (t *Tap) Send(data []byte) error {
	t.rec.Write(DirTX, data)
	return t.inner.Send(data)
}

// SetListener installs l behind a listener recording received bytes
func (t *Tap) SetListener(l transport.Listener) {
	t.inner.SetListener(&tapListener{Listener: l, rec: t.rec})
}

// String names the wrapped transport
func (t *Tap) String() string {
	if s, ok := t.inner.(fmt.Stringer); ok {
		return s.String()
	}
	return "capture"
}

type tapListener struct {
	transport.Listener
	rec *Recorder
}

func (l *tapListener) OnDataReceived(data []byte) {
	l.rec.Write(DirRX, data)
	l.Listener.OnDataReceived(data)
}
