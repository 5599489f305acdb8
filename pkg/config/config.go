// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config resolves skylink settings from flags, SKYLINK_* environment
// variables, a TOML file and built-in defaults, in that order of precedence.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/skylink/pkg/session"
)

// Defaults
const (
	DefaultBaud           = 115200
	DefaultConnectTimeout = 5 * time.Second
	DefaultNATSSubject    = "skylink.events"
	DefaultRedisPrefix    = "skylink"
	DefaultRedisTTL       = 24 * time.Hour
	DefaultLogLevel       = "info"
)

// Config holds the link, logging and sink settings of the skylink CLI
type Config struct {
	// Link
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool
	TCPAddr     string

	// Session tasks
	PingFreq       float64
	ControlFreq    float64
	ConnectTimeout time.Duration

	LogLevel string
	LogJSON  bool

	// Event sinks
	NATSURL        string
	NATSSubject    string
	RedisAddr      string
	RedisKeyPrefix string
	RedisTTL       time.Duration
	CapturePath    string
}

// Default returns a Config with default values
func Default() Config {
	return Config{
		Baud:           DefaultBaud,
		PingFreq:       session.DefaultPingFrequency,
		ControlFreq:    session.DefaultControlFrequency,
		ConnectTimeout: DefaultConnectTimeout,
		LogLevel:       DefaultLogLevel,
		NATSSubject:    DefaultNATSSubject,
		RedisKeyPrefix: DefaultRedisPrefix,
		RedisTTL:       DefaultRedisTTL,
	}
}

// Validate checks the configuration for errors. It does not require a link
// to be set, commands that need one call RequireLink.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud rate must be positive")
	}
	if c.PingFreq <= 0 {
		return fmt.Errorf("ping frequency must be positive")
	}
	if c.ControlFreq <= 0 {
		return fmt.Errorf("control frequency must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.RedisTTL < 0 {
		return fmt.Errorf("redis ttl must not be negative")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("nats-subject is required with nats-url")
	}

	links := 0
	for _, v := range []string{c.Port, c.URL, c.TCPAddr} {
		if v != "" {
			links++
		}
	}
	if links > 1 {
		return fmt.Errorf("only one of --port, --url or --tcp may be specified")
	}
	return nil
}

// RequireLink fails when no link is configured
func (c *Config) RequireLink() error {
	if c.Port == "" && c.URL == "" && c.TCPAddr == "" {
		return fmt.Errorf("one of --port, --url or --tcp is required")
	}
	return nil
}

// configSetter applies values only for flags not set on the command line
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString is setInt for environment variables
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	s.setInt(flag, i, dst)
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	s.setFloat(flag, f, dst)
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	v := strings.ToLower(value)
	*dst = v == "true" || v == "1"
}
