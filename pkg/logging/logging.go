// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the zerolog loggers handed to every component
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the log level and output format
type Options struct {
	// Level is a zerolog level name, "info" when empty
	Level string
	// JSON writes one JSON object per line instead of console output
	JSON bool
	// Out defaults to stderr
	Out io.Writer
}

// New returns a timestamped logger writing to o.Out
func New(o Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if o.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(o.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
		level = l
	}

	out := o.Out
	if out == nil {
		out = os.Stderr
	}
	if !o.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Component returns log tagged with a component field
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
