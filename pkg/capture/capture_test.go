// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/skylink/pkg/skylink"
	"github.com/Thermoquad/skylink/pkg/transport"
)

// ============================================================
// Recorder and Reader Tests
// ============================================================

func TestRecorder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	rec.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Millisecond)
	}

	blocks := []struct {
		dir  Direction
		data []byte
	}{
		{DirTX, []byte{'%', '%', '%', 0, 1, 2}},
		{DirRX, []byte{3, 4}},
		{DirRX, nil},
	}
	for _, b := range blocks {
		if err := rec.Write(b.dir, b.data); err != nil {
			t.Fatal(err)
		}
	}
	if rec.Count() != len(blocks) {
		t.Errorf("Count() = %d, want %d", rec.Count(), len(blocks))
	}

	r := NewReader(&buf)
	for i, b := range blocks {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got.Dir != b.dir || !bytes.Equal(got.Data, b.data) {
			t.Errorf("record %d = %s %v, want %s %v", i, got.Dir, got.Data, b.dir, b.data)
		}
		if want := base.Add(time.Duration(i+1) * time.Millisecond); !got.Time.Equal(want) {
			t.Errorf("record %d time = %v, want %v", i, got.Time, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRecorder_StickyError(t *testing.T) {
	rec := NewRecorder(failWriter{})
	if err := rec.Write(DirRX, []byte{1}); err == nil {
		t.Fatal("expected write error")
	}
	if err := rec.Write(DirRX, []byte{2}); err == nil || rec.Err() == nil {
		t.Error("error should persist")
	}
	if rec.Count() != 0 {
		t.Errorf("Count() = %d", rec.Count())
	}
}

func TestReader_Corrupt(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xff, 0x00, 0x13}))
	if _, err := r.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("expected a decode error, got %v", err)
	}
}

// ============================================================
// Tap Tests
// ============================================================

type recordingListener struct {
	mu   sync.Mutex
	data [][]byte
	got  chan struct{}
}

func (l *recordingListener) OnConnected()      {}
func (l *recordingListener) OnDisconnected()   {}
func (l *recordingListener) OnError(err error) {}
func (l *recordingListener) OnDataReceived(data []byte) {
	l.mu.Lock()
	l.data = append(l.data, append([]byte(nil), data...))
	l.mu.Unlock()
	l.got <- struct{}{}
}

func TestTap_RecordsBothDirections(t *testing.T) {
	local, remote := transport.Pipe()
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	tap := NewTap(local, rec)

	l := &recordingListener{got: make(chan struct{}, 4)}
	tap.SetListener(l)
	remote.SetListener(&recordingListener{got: make(chan struct{}, 4)})
	if err := tap.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := remote.Connect(); err != nil {
		t.Fatal(err)
	}
	defer tap.Disconnect()
	defer remote.Disconnect()

	ping := skylink.NewValueSignal(skylink.CmdPingValue, 42).Message().Bytes()
	if err := tap.Send(ping); err != nil {
		t.Fatal(err)
	}
	if err := remote.Send([]byte{9, 8, 7}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-l.got:
	case <-time.After(5 * time.Second):
		t.Fatal("no data received")
	}

	if rec.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", rec.Count())
	}
	r := NewReader(&buf)
	first, _ := r.Next()
	second, _ := r.Next()
	if first.Dir != DirTX || !bytes.Equal(first.Data, ping) {
		t.Errorf("first record = %s %x", first.Dir, first.Data)
	}
	if second.Dir != DirRX || !bytes.Equal(second.Data, []byte{9, 8, 7}) {
		t.Errorf("second record = %s %x", second.Dir, second.Data)
	}
}

// ============================================================
// Replay Tests
// ============================================================

func TestReplay_ThroughDispatcher(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)

	frame := skylink.NewValueSignal(skylink.CmdPingValue, 42).Message().Bytes()
	// split across reads to exercise reassembly in the dispatcher
	rec.Write(DirRX, frame[:3])
	rec.Write(DirTX, []byte{0xde, 0xad})
	rec.Write(DirRX, frame[3:])

	var events []string
	d := skylink.NewDispatcher(skylink.DispatcherFunc(func(ev skylink.Event) {
		events = append(events, ev.String())
	}))

	n, err := Replay(context.Background(), &buf, ReplayOptions{Dir: DirRX}, d.Feed)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("replayed %d records, want 2", n)
	}
	if len(events) != 1 || events[0] != "signal PING_VALUE(42)" {
		t.Errorf("events = %v", events)
	}
}

func TestReplay_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	base := time.Now()
	times := []time.Time{base, base.Add(time.Hour)}
	rec.now = func() time.Time {
		t := times[0]
		times = times[1:]
		return t
	}
	rec.Write(DirRX, []byte{1})
	rec.Write(DirRX, []byte{2})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	n, err := Replay(ctx, &buf, ReplayOptions{Dir: DirRX, Speed: 1}, func([]byte) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if n != 1 {
		t.Errorf("replayed %d records before cancel, want 1", n)
	}
}
