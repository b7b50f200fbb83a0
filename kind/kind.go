// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package kind defines the failure categories reported by the sluice package.
package kind

import (
	"context"
	"errors"
	"fmt"
)

// A Kind classifies the failure of a channel operation. The zero value
// denotes success.
//
// Kinds are deliberately coarse: they tell the caller what to do about a
// failure (retry, resize, give up) rather than what went wrong inside the
// transport. The underlying cause, when there is one, travels along wrapped
// in the error and can be recovered with errors.Unwrap.
type Kind int32

func (k Kind) String() string {
	if s, ok := stdKind[k]; ok {
		return s
	}
	return fmt.Sprintf("error kind %d", k)
}

// A Kinder is a value that can report a failure kind.
type Kinder interface {
	Kind() Kind
}

// Err converts k to an error value, which is nil for kind.NoError and
// otherwise an error value constructed by fmt.Errorf.
func (k Kind) Err() error {
	if k == NoError {
		return nil
	} else if s, ok := stdKind[k]; ok {
		return fmt.Errorf("[%d] %s", k, s)
	}
	return errors.New(k.String())
}

// The kinds reported by the operations of this module. The remainder of the
// space is available for application-defined kinds (see Register).
const (
	NoError          Kind = 0  // Denotes a nil error (used by FromError)
	WouldBlock       Kind = 1  // Non-blocking operation would have blocked
	TimedOut         Kind = 2  // Deadline expired before the operation completed
	Cancelled        Kind = 3  // Operation cancelled (context.Canceled)
	NotFound         Kind = 4  // Named transport object does not exist
	AlreadyExists    Kind = 5  // Named transport object already exists
	PermissionDenied Kind = 6  // Operation not permitted for this endpoint
	Truncated        Kind = 7  // Message exceeded the channel's maximum size
	InvalidCapacity  Kind = 8  // Capacity or size parameter out of range
	PeerClosed       Kind = 9  // Other side of the conduit is gone
	EndOfStream      Kind = 10 // Producer closed and no data remains
	IOError          Kind = 11 // Error from the underlying transport
	SystemError      Kind = 12 // Errors from the operating environment
)

var stdKind = map[Kind]string{
	NoError:          "no error (success)",
	WouldBlock:       "operation would block",
	TimedOut:         "operation timed out",
	Cancelled:        "operation cancelled",
	NotFound:         "object not found",
	AlreadyExists:    "object already exists",
	PermissionDenied: "permission denied",
	Truncated:        "message truncated",
	InvalidCapacity:  "invalid capacity",
	PeerClosed:       "peer closed",
	EndOfStream:      "end of stream",
	IOError:          "I/O error",
	SystemError:      "system error",
}

// Register adds a new Kind value with the specified message string.  This
// function will panic if the proposed value is already registered.
func Register(value int32, message string) Kind {
	kind := Kind(value)
	if s, ok := stdKind[kind]; ok {
		panic(fmt.Sprintf("kind %d is already registered for %q", kind, s))
	}
	stdKind[kind] = message
	return kind
}

// FromError returns a Kind to categorize the specified error.
// If err == nil, it returns kind.NoError.
// If err is (or wraps) a Kinder, it returns the reported kind value.
// If err is context.Canceled, it returns kind.Cancelled.
// If err is context.DeadlineExceeded, it returns kind.TimedOut.
// Otherwise it returns kind.SystemError.
func FromError(err error) Kind {
	if err == nil {
		return NoError
	}
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	} else if errors.Is(err, context.DeadlineExceeded) {
		return TimedOut
	}
	return SystemError
}

// Is reports whether err has kind k. An err of nil has kind NoError.
func Is(err error, k Kind) bool { return FromError(err) == k }
