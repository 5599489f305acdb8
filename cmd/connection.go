// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Thermoquad/skylink/pkg/capture"
	"github.com/Thermoquad/skylink/pkg/config"
	"github.com/Thermoquad/skylink/pkg/logging"
	"github.com/Thermoquad/skylink/pkg/scheduler"
	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/skylink"
	"github.com/Thermoquad/skylink/pkg/transport"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("SKYLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// linkPassword is asked once per process so reconnects never prompt
var linkPassword string

// link is an unconnected transport built from the configuration, optionally
// recording its traffic to the capture file
type link struct {
	transport.Transport
	name    string
	stream  *transport.Stream
	capture *os.File
	rec     *capture.Recorder
}

// OpenLink builds the transport selected by --port, --url or --tcp
func OpenLink() (*link, error) {
	if err := cfg.RequireLink(); err != nil {
		return nil, err
	}

	stream, err := newStream()
	if err != nil {
		return nil, err
	}

	l := &link{Transport: stream, name: stream.String(), stream: stream}
	if cfg.CapturePath != "" {
		f, err := os.Create(cfg.CapturePath)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		l.capture = f
		l.rec = capture.NewRecorder(f)
		l.Transport = capture.NewTap(stream, l.rec)
	}
	return l, nil
}

func newStream() (*transport.Stream, error) {
	opts := []transport.Option{
		transport.WithLogger(logging.Component(log, "transport")),
		transport.WithDialTimeout(cfg.ConnectTimeout),
	}

	switch {
	case cfg.URL != "":
		if cfg.Username != "" && linkPassword == "" {
			pw, err := GetPassword()
			if err != nil {
				return nil, err
			}
			linkPassword = pw
		}
		return transport.NewWebSocket(transport.WebSocketConfig{
			URL:           cfg.URL,
			Username:      cfg.Username,
			Password:      linkPassword,
			SkipSSLVerify: cfg.NoSSLVerify,
		}, opts...), nil
	case cfg.TCPAddr != "":
		return transport.NewTCP(cfg.TCPAddr, opts...), nil
	default:
		return transport.NewSerial(cfg.Port, cfg.Baud, opts...), nil
	}
}

// Reopen replaces a dropped transport with a fresh one to the same endpoint
// once the old reader has delivered its last callback. Capture recording
// continues into the same file.
func (l *link) Reopen() error {
	if done := l.stream.Done(); done != nil {
		select {
		case <-done:
		case <-time.After(cfg.ConnectTimeout):
			return fmt.Errorf("%s: previous connection still closing", l.name)
		}
	}

	stream, err := newStream()
	if err != nil {
		return err
	}
	l.stream = stream
	l.Transport = stream
	if l.rec != nil {
		l.Transport = capture.NewTap(stream, l.rec)
	}
	return nil
}

// Close disconnects the transport and closes the capture file
func (l *link) Close() error {
	err := l.Disconnect()
	if l.capture != nil {
		if cerr := l.capture.Close(); cerr != nil && err == nil {
			err = cerr
		}
		log.Info().Int("records", l.rec.Count()).Str("path", l.capture.Name()).Msg("Capture closed")
	}
	return err
}

// frameListener feeds received bytes to a dispatcher and reports the link
// going down on done
type frameListener struct {
	dispatcher *skylink.Dispatcher
	errs       chan error
	done       chan struct{}
}

func newFrameListener(sink skylink.DispatcherListener) *frameListener {
	return &frameListener{
		dispatcher: skylink.NewDispatcher(sink),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
	}
}

func (f *frameListener) OnConnected()    {}
func (f *frameListener) OnDisconnected() { close(f.done) }
func (f *frameListener) OnError(err error) {
	select {
	case f.errs <- err:
	default:
	}
}
func (f *frameListener) OnDataReceived(data []byte) { f.dispatcher.Feed(data) }

// newManager builds a session manager over a ticker scheduler using the
// configured task frequencies
func newManager(opts ...session.Option) (*session.Manager, *scheduler.Ticker) {
	sched := scheduler.NewTicker(scheduler.WithLogger(logging.Component(log, "scheduler")))
	base := []session.Option{
		session.WithLogger(logging.Component(log, "session")),
		session.WithPingFrequency(cfg.PingFreq),
		session.WithControlFrequency(cfg.ControlFreq),
	}
	return session.NewManager(sched, append(base, opts...)...), sched
}

// watchConfig applies task frequency changes from the config file to a
// running session until ctx is done
func watchConfig(ctx context.Context, m *session.Manager) {
	if configPath == "" || !config.FileExists(configPath) {
		return
	}
	w := config.NewWatcher(configPath, cfg, changed, func(c config.Config) {
		m.Engine().SetPingFrequency(c.PingFreq)
		m.Engine().SetControlFrequency(c.ControlFreq)
	}, logging.Component(log, "config"))

	go func() {
		if err := w.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("Config watcher stopped")
		}
	}()
}
