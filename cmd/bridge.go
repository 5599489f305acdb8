// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/logging"
	"github.com/Thermoquad/skylink/pkg/relay"
	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/store"
)

var (
	bridgeTelemetry bool
	bridgeRestore   bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run a headless session and bridge it to NATS and Redis",
	Long: `Keep a session open to a board and share it with other services.

With --nats-url every session event is published as JSON on
<nats-subject>.<event type>, and commands sent to <nats-subject>.command
(e.g. {"command":"start_flight"}) are run on the session.

With --redis-addr the last known session state, calibration, control
settings and route are stored under <redis-prefix>:<link>:*. --restore
uploads the stored control settings after each connect.

The link is reopened when it drops.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	flags := bridgeCmd.Flags()
	flags.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server URL")
	flags.StringVar(&cfg.NATSSubject, "nats-subject", cfg.NATSSubject, "Subject prefix for events and commands")
	flags.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address (host:port)")
	flags.StringVar(&cfg.RedisKeyPrefix, "redis-prefix", cfg.RedisKeyPrefix, "Redis key prefix")
	flags.DurationVar(&cfg.RedisTTL, "redis-ttl", cfg.RedisTTL, "Expiry of stored keys (0 keeps them)")
	flags.BoolVar(&bridgeTelemetry, "telemetry", true, "Also publish debug, autopilot and ping events")
	flags.BoolVar(&bridgeRestore, "restore", false, "Upload the stored control settings after connecting")
}

func runBridge(cmd *cobra.Command, args []string) error {
	if cfg.NATSURL == "" && cfg.RedisAddr == "" {
		return errors.New("at least one of --nats-url or --redis-addr is required")
	}
	if bridgeRestore && cfg.RedisAddr == "" {
		return errors.New("--restore needs --redis-addr")
	}

	l, err := OpenLink()
	if err != nil {
		return err
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, sched := newManager()
	defer sched.StopAll()

	lost := make(chan struct{}, 1)
	connected := make(chan struct{}, 1)
	unsubscribe := mgr.Subscribe(session.ListenerFunc(func(ev session.Event) {
		var ch chan struct{}
		switch ev.Type {
		case session.EventDisconnected:
			ch = lost
		case session.EventConnected:
			ch = connected
		default:
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}))
	defer unsubscribe()

	if cfg.NATSURL != "" {
		nc, err := relay.Dial(cfg.NATSURL, "skylink-bridge", logging.Component(log, "nats"))
		if err != nil {
			return err
		}
		defer nc.Drain()

		opts := []relay.Option{
			relay.WithLogger(logging.Component(log, "relay")),
			relay.WithLink(l.name),
		}
		if !bridgeTelemetry {
			opts = append(opts, relay.WithoutTelemetry())
		}
		r := relay.New(nc, cfg.NATSSubject, opts...)
		defer r.Close()
		defer mgr.Subscribe(r)()
		if err := r.ServeCommands(cfg.NATSSubject+".command", mgr); err != nil {
			return err
		}
		log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("Relaying session events")
	}

	var st *store.Store
	if cfg.RedisAddr != "" {
		rdb, err := store.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()

		st = store.New(rdb, cfg.RedisKeyPrefix, l.name,
			store.WithLogger(logging.Component(log, "store")),
			store.WithTTL(cfg.RedisTTL))
		go st.Run(ctx)
		defer mgr.Subscribe(st)()
		log.Info().Str("addr", cfg.RedisAddr).Str("key", st.SessionKey()).Msg("Storing session state")
	}

	if err := mgr.Connect(l); err != nil {
		return err
	}
	watchConfig(ctx, mgr)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			if mgr.Connected() {
				if err := mgr.Disconnect(); err != nil {
					log.Debug().Err(err).Msg("Disconnect failed")
				}
			}
			return nil

		case <-connected:
			backoff = time.Second
			log.Info().Str("link", l.name).Msg("Session connected")
			if bridgeRestore {
				restoreControlSettings(ctx, st, mgr)
			}

		case <-lost:
			log.Warn().Str("link", l.name).Dur("retry", backoff).Msg("Session lost")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}

			if err := reopenBridge(l, mgr); err != nil {
				log.Debug().Err(err).Msg("Reconnect failed")
				backoff = min(backoff*2, 30*time.Second)
				select {
				case lost <- struct{}{}:
				default:
				}
			}
		}
	}
}

func reopenBridge(l *link, mgr *session.Manager) error {
	l.Disconnect()
	if err := l.Reopen(); err != nil {
		return err
	}
	return mgr.Connect(l)
}

// restoreControlSettings uploads the control settings kept in Redis, if any
func restoreControlSettings(ctx context.Context, st *store.Store, mgr *session.Manager) {
	cs, err := st.LoadControlSettings(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("Loading stored control settings failed")
		}
		return
	}
	if err := mgr.UploadControlSettings(cs); err != nil {
		log.Warn().Err(fmt.Errorf("restore control settings: %w", err)).Msg("Upload not started")
		return
	}
	log.Info().Msg("Restoring stored control settings")
}
