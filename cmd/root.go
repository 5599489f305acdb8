// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/skylink/pkg/config"
	"github.com/Thermoquad/skylink/pkg/logging"
)

// Exit codes shared by the test style commands
const (
	exitOK              = 0
	exitTestFailed      = 1
	exitConnectionError = 2
)

var (
	// cfg is resolved from flags, SKYLINK_* env and the config file before
	// every command runs
	cfg        = config.Default()
	configPath string
	changed    map[string]bool

	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "skylink",
	Short: "Skylink ground station link tool",
	Long: `Skylink - A CLI tool for talking to flight controllers over the Skylink
protocol.

Provides commands for raw frame logging, link statistics and integrity tests,
an interactive ground station, a board simulator and capture/replay of link
traffic.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp host:port

Settings may also come from SKYLINK_* environment variables or a TOML file
(--config, default ~/.skylink/config.toml). Flags given on the command line
win over the environment, which wins over the file.

For WebSocket authentication, the password is read from the SKYLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultPath(), "Config file (TOML)")

	// Serial connection flags
	flags.StringVarP(&cfg.Port, "port", "p", cfg.Port, "Serial port device")
	flags.IntVarP(&cfg.Baud, "baud", "b", cfg.Baud, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringVarP(&cfg.URL, "url", "u", cfg.URL, "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&cfg.Username, "username", cfg.Username, "Username for HTTP Basic auth")
	flags.BoolVar(&cfg.NoSSLVerify, "no-ssl-verify", cfg.NoSSLVerify, "Skip TLS certificate verification (wss:// only)")

	flags.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "TCP address of a board or simulator (host:port)")

	// Session tasks
	flags.Float64Var(&cfg.PingFreq, "ping-freq", cfg.PingFreq, "Ping task frequency in Hz")
	flags.Float64Var(&cfg.ControlFreq, "control-freq", cfg.ControlFreq, "Control task frequency in Hz")
	flags.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Transport dial timeout")

	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Write logs as JSON")
}

// loadConfig applies the config file and environment under the flags the
// user set, then builds the logger
func loadConfig(cmd *cobra.Command, _ []string) error {
	changed = make(map[string]bool)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
	})

	resolved, err := config.Load(cfg, configPath, changed)
	if err != nil {
		return err
	}
	cfg = resolved

	log, err = logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	return err
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
