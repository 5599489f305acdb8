// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

// Sentinel errors, matched with errors.Is
var (
	ErrUnexpectedEvent      = errors.New("session: unexpected event")
	ErrOwnershipMismatch    = errors.New("session: user event owner is not the active action")
	ErrActionBusy           = errors.New("session: action in progress")
	ErrMaxRetriesExceeded   = errors.New("session: max retries exceeded")
	ErrNotConnected         = errors.New("session: not connected")
	ErrNotInApplicationLoop = errors.New("session: not in application loop")
	ErrConnectionTimeout    = errors.New("session: no answer to start command")
	ErrSignalTimeout        = errors.New("session: signal timeout")
)

// UnexpectedEventError is returned by an action when an event matches no
// transition of its current state
type UnexpectedEventError struct {
	Action ActionType
	State  string
	Event  string
}

func (e *UnexpectedEventError) Error() string {
	return fmt.Sprintf("session: unexpected event %s in %s/%s", e.Event, e.Action, e.State)
}

// Unwrap returns ErrUnexpectedEvent
func (e *UnexpectedEventError) Unwrap() error { return ErrUnexpectedEvent }

// ActionBusyError reports an attempt to start an action while another is
// still running
type ActionBusyError struct {
	Active    ActionType
	Requested ActionType
}

func (e *ActionBusyError) Error() string {
	return fmt.Sprintf("session: cannot start %s, %s in progress", e.Requested, e.Active)
}

// Unwrap returns ErrActionBusy
func (e *ActionBusyError) Unwrap() error { return ErrActionBusy }

// OwnershipMismatchError reports a user event addressed to an action that is
// not active
type OwnershipMismatchError struct {
	Event  UserEvent
	Owner  ActionType
	Active ActionType
}

func (e *OwnershipMismatchError) Error() string {
	return fmt.Sprintf("session: %s belongs to %s, active action is %s", e.Event, e.Owner, e.Active)
}

// Unwrap returns ErrOwnershipMismatch
func (e *OwnershipMismatchError) Unwrap() error { return ErrOwnershipMismatch }

// MaxRetriesExceededError ends a payload exchange after repeated failures
type MaxRetriesExceededError struct {
	Command  skylink.Command
	Attempts int
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("session: %s exchange failed after %d attempts", e.Command, e.Attempts)
}

// Unwrap returns ErrMaxRetriesExceeded
func (e *MaxRetriesExceededError) Unwrap() error { return ErrMaxRetriesExceeded }

// SignalTimeoutError ends an action whose peer did not answer a handshake
// step in time
type SignalTimeoutError struct {
	Action  ActionType
	Command skylink.Command
}

func (e *SignalTimeoutError) Error() string {
	return fmt.Sprintf("session: %s timed out waiting for %s", e.Action, e.Command)
}

// Unwrap returns ErrSignalTimeout
func (e *SignalTimeoutError) Unwrap() error { return ErrSignalTimeout }
