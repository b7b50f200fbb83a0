// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package ready provides waiters that multiplex the readiness of several
// channel endpoints, so a single goroutine can serve whichever endpoint
// becomes ready without polling or dedicating a goroutine to each.
//
// A Waiter tracks a set of registered sources, each with an interest in
// reading, writing, or both. Wait blocks until at least one registered
// source is ready for a registered interest and reports all that are; Poll
// reports the currently ready sources without blocking.
//
// Three implementations share this contract, differing in how much work
// each wait performs. NewScan keeps a bounded table and re-examines every
// occupied entry on each wait, so a wait costs time proportional to the
// highest occupied index. NewList keeps one record per registration and a
// persistent interest set maintained at registration time, so a wait costs
// time proportional to the number of registered sources. NewIndex keeps a
// watcher on each registration feeding a shared ready set, so a wait costs
// time proportional only to the number of ready sources. The cheaper the
// wait, the more the registration path carries.
package ready

import (
	"context"
	"errors"
	"fmt"
)

// An Interest is a bit set naming the directions of readiness a
// registration cares about.
type Interest uint8

const (
	Read  Interest = 1 << iota // ready to receive a message
	Write                      // ready to accept a message for sending
)

func (in Interest) String() string {
	switch in {
	case 0:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	case Read | Write:
		return "read+write"
	}
	return fmt.Sprintf("interest(%d)", uint8(in))
}

// A Source is an endpoint whose readiness can be observed and waited for.
// A *sluice.Channel backed by an in-process synchronizer satisfies Source.
//
// The Readable and Writable channels deliver coalesced wakeup signals; a
// waiter that receives one must confirm readiness with ReadReady or
// WriteReady, since signals are merged rather than counted. A source that
// cannot signal a direction returns nil for that channel, and cannot be
// registered with the corresponding interest.
type Source interface {
	ReadReady() bool
	WriteReady() bool
	Readable() <-chan struct{}
	Writable() <-chan struct{}
}

// An Event reports that a source was observed ready. Ready holds the subset
// of the registered interest that was ready when the waiter looked; it is
// advisory, like all readiness, and another consumer may win the race.
type Event struct {
	Source Source
	Ready  Interest
}

// A Waiter multiplexes readiness across a set of registered sources. All
// methods are safe for concurrent use; when several goroutines Wait at
// once, a readiness signal wakes at least one of them.
type Waiter interface {
	// Register adds s to the watched set with the given interest, replacing
	// the interest of an existing registration. It reports an error if s
	// cannot signal a requested direction, or if the waiter cannot accept
	// another source.
	Register(s Source, in Interest) error

	// Unregister removes s from the watched set. Removing an unregistered
	// source has no effect.
	Unregister(s Source)

	// Wait blocks until at least one registered source is ready, and
	// returns an event for every ready source. It returns ctx.Err() if ctx
	// ends first, or ErrClosed if the waiter is closed while waiting. With
	// no sources registered, Wait blocks until ctx ends.
	Wait(ctx context.Context) ([]Event, error)

	// Poll returns an event for every registered source that is ready now,
	// without blocking. An empty result means nothing is ready.
	Poll() []Event

	// Close releases the waiter's resources and wakes blocked waits. Close
	// is idempotent and always returns nil.
	Close() error
}

// ErrClosed is reported by operations on a closed Waiter.
var ErrClosed = errors.New("waiter is closed")

// ErrNoSignal is reported by Register when a source cannot deliver wakeup
// signals for a requested interest, such as a channel whose synchronizer
// state lives in shared memory or in the kernel.
var ErrNoSignal = errors.New("source cannot signal the requested interest")

// checkSource validates a source against the requested interest.
func checkSource(s Source, in Interest) error {
	if s == nil {
		return errors.New("source is nil")
	}
	if in == 0 || in&^(Read|Write) != 0 {
		return fmt.Errorf("invalid interest %v", in)
	}
	if in&Read != 0 && s.Readable() == nil {
		return ErrNoSignal
	}
	if in&Write != 0 && s.Writable() == nil {
		return ErrNoSignal
	}
	return nil
}

// readiness reports the subset of in that s is ready for now.
func readiness(s Source, in Interest) Interest {
	var r Interest
	if in&Read != 0 && s.ReadReady() {
		r |= Read
	}
	if in&Write != 0 && s.WriteReady() {
		r |= Write
	}
	return r
}

// signal posts a wakeup to ch if one is not already pending.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
