// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import "os"

// ApplyEnv applies SKYLINK_* environment variables for every flag not in
// changed. It fails on malformed numbers or durations.
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", os.Getenv("SKYLINK_PORT"), &cfg.Port)
	if err := s.setIntFromString("baud", os.Getenv("SKYLINK_BAUD"), &cfg.Baud); err != nil {
		return err
	}
	s.setString("url", os.Getenv("SKYLINK_URL"), &cfg.URL)
	s.setString("username", os.Getenv("SKYLINK_USERNAME"), &cfg.Username)
	s.setBoolFromString("no-ssl-verify", os.Getenv("SKYLINK_NO_SSL_VERIFY"), &cfg.NoSSLVerify)
	s.setString("tcp", os.Getenv("SKYLINK_TCP"), &cfg.TCPAddr)

	if err := s.setFloatFromString("ping-freq", os.Getenv("SKYLINK_PING_FREQ"), &cfg.PingFreq); err != nil {
		return err
	}
	if err := s.setFloatFromString("control-freq", os.Getenv("SKYLINK_CONTROL_FREQ"), &cfg.ControlFreq); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", os.Getenv("SKYLINK_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}

	s.setString("log-level", os.Getenv("SKYLINK_LOG_LEVEL"), &cfg.LogLevel)
	s.setBoolFromString("log-json", os.Getenv("SKYLINK_LOG_JSON"), &cfg.LogJSON)

	s.setString("nats-url", os.Getenv("SKYLINK_NATS_URL"), &cfg.NATSURL)
	s.setString("nats-subject", os.Getenv("SKYLINK_NATS_SUBJECT"), &cfg.NATSSubject)
	s.setString("redis-addr", os.Getenv("SKYLINK_REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-prefix", os.Getenv("SKYLINK_REDIS_PREFIX"), &cfg.RedisKeyPrefix)
	if err := s.setDuration("redis-ttl", os.Getenv("SKYLINK_REDIS_TTL"), &cfg.RedisTTL); err != nil {
		return err
	}
	s.setString("capture", os.Getenv("SKYLINK_CAPTURE"), &cfg.CapturePath)

	return nil
}
