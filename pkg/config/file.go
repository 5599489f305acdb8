// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with string durations for TOML
type FileConfig struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify *bool  `toml:"no_ssl_verify"`
	TCPAddr     string `toml:"tcp"`

	PingFreq       float64 `toml:"ping_freq"`
	ControlFreq    float64 `toml:"control_freq"`
	ConnectTimeout string  `toml:"connect_timeout"`

	LogLevel string `toml:"log_level"`
	LogJSON  *bool  `toml:"log_json"`

	NATSURL        string `toml:"nats_url"`
	NATSSubject    string `toml:"nats_subject"`
	RedisAddr      string `toml:"redis_addr"`
	RedisKeyPrefix string `toml:"redis_prefix"`
	RedisTTL       string `toml:"redis_ttl"`
	CapturePath    string `toml:"capture"`
}

// LoadFile reads and parses a TOML config file
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultPath returns ~/.skylink/config.toml, or "" without a home directory
func DefaultPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".skylink", "config.toml")
	}
	return ""
}

// ApplyFile copies file values into cfg for every flag not in changed
func ApplyFile(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", fc.Port, &cfg.Port)
	s.setInt("baud", fc.Baud, &cfg.Baud)
	s.setString("url", fc.URL, &cfg.URL)
	s.setString("username", fc.Username, &cfg.Username)
	s.setBool("no-ssl-verify", fc.NoSSLVerify, &cfg.NoSSLVerify)
	s.setString("tcp", fc.TCPAddr, &cfg.TCPAddr)

	s.setFloat("ping-freq", fc.PingFreq, &cfg.PingFreq)
	s.setFloat("control-freq", fc.ControlFreq, &cfg.ControlFreq)
	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("log-json", fc.LogJSON, &cfg.LogJSON)

	s.setString("nats-url", fc.NATSURL, &cfg.NATSURL)
	s.setString("nats-subject", fc.NATSSubject, &cfg.NATSSubject)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-prefix", fc.RedisKeyPrefix, &cfg.RedisKeyPrefix)
	if err := s.setDuration("redis-ttl", fc.RedisTTL, &cfg.RedisTTL); err != nil {
		return err
	}
	s.setString("capture", fc.CapturePath, &cfg.CapturePath)

	return nil
}

// FileExists reports whether p exists
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Load resolves the full configuration for a command: defaults, then the
// file at path if it exists, then the environment. Values of flags in changed
// are left as the caller set them in base.
func Load(base Config, path string, changed map[string]bool) (Config, error) {
	cfg := base
	if path != "" && FileExists(path) {
		fc, err := LoadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := ApplyFile(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, changed); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
