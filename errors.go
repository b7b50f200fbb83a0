// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package sluice

import (
	"errors"
	"fmt"

	"github.com/creachadair/sluice/kind"
)

// Error is the concrete type of errors reported by channel operations.
type Error struct {
	kind kind.Kind
	err  error
}

// Error renders e to a human-readable string for the error interface.
func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.kind, e.err) }

// Kind reports the failure kind of e, satisfying the kind.Kinder interface.
func (e *Error) Kind() kind.Kind { return e.kind }

// Unwrap returns the underlying cause of e.
func (e *Error) Unwrap() error { return e.err }

// Errorf returns an error value of concrete type *Error having the specified
// kind and formatted message string. The format supports the %w verb of
// fmt.Errorf, so an underlying cause can be carried through for errors.Is
// and errors.As.
func Errorf(k kind.Kind, msg string, args ...any) error {
	return &Error{kind: k, err: fmt.Errorf(msg, args...)}
}

// ErrChannelClosed is reported by operations on a channel whose own endpoint
// has already been closed. It is distinct from the PeerClosed and
// EndOfStream kinds, which report the state of the other endpoint.
var ErrChannelClosed = errors.New("channel is closed")
