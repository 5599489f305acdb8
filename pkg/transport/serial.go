// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// SerialDialer opens portName at baudRate, 8N1
func SerialDialer(portName string, baudRate int) Dialer {
	return func(context.Context) (io.ReadWriteCloser, error) {
		mode := &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}

		port, err := serial.Open(portName, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
		}
		return port, nil
	}
}

// NewSerial creates a serial port transport
func NewSerial(portName string, baudRate int, opts ...Option) *Stream {
	name := fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate)
	return NewStream(name, SerialDialer(portName, baudRate), opts...)
}

// SerialPorts lists the serial ports present on the system
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
