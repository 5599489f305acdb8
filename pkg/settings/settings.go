// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package settings reads and writes the board records as an editable TOML
// document
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

// Bundle holds the records of one board. Missing sections stay nil.
type Bundle struct {
	Calibration *skylink.CalibrationSettings `toml:"calibration,omitempty"`
	Control     *skylink.ControlSettings     `toml:"control,omitempty"`
	Route       *skylink.RouteContainer      `toml:"route,omitempty"`
}

// Empty reports whether no section is set
func (b *Bundle) Empty() bool {
	return b.Calibration == nil && b.Control == nil && b.Route == nil
}

// Encode writes b as TOML
func (b *Bundle) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(b)
}

// Decode parses a TOML bundle. Record CRCs are recomputed, so a hand edited
// file stays uploadable.
func Decode(r io.Reader) (*Bundle, error) {
	b := &Bundle{}
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(b); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("settings: line %d column %d: %w", row, col, err)
		}
		return nil, fmt.Errorf("settings: %w", err)
	}

	if b.Calibration != nil {
		b.Calibration.SetCRC()
	}
	if b.Control != nil {
		b.Control.SetCRC()
	}
	if b.Route != nil {
		b.Route.SetCRC()
	}
	return b, nil
}

// Load reads a bundle file
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data))
}

// Save writes b to path
func Save(path string, b *Bundle) error {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
