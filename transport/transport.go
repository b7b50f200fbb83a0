// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package transport implements the mechanisms a channel moves its messages
// through: in-process typed queues and ring buffers, named pipes, shared
// memory segments, and stream sockets.
//
// A transport moves one record at a time and does no flow control of its
// own unless documented otherwise. Occupancy bounds are enforced by the
// caller with a slot synchronizer, which brackets every transfer (see the
// slot package). Transports that move bytes through a kernel stream carry
// no synchronizer; the kernel's own buffering provides the back-pressure.
package transport

import (
	"context"
	"errors"
	"net"

	"github.com/creachadair/sluice/slot"
)

// A Record is one message as a transport carries it: an opaque payload and
// an optional positive type tag. Transports that do not store tags report
// records with a zero type.
type Record struct {
	Type int32
	Data []byte
}

// A Transport moves records through one endpoint of a conduit.
//
// Send stages one record. Recv takes the next available record, reporting
// io.EOF when the conduit has ended and no data remains. Implementations
// whose transfers are bracketed by a slot synchronizer may assume a slot was
// claimed before Send or Recv is called.
type Transport interface {
	Send(rec Record) error
	Recv() (Record, error)
	Close() error
}

// A Selector is a Transport that can take records by type tag rather than
// strictly in arrival order.
type Selector interface {
	Transport

	// RecvMatch takes the first record matching filter, blocking until one
	// is staged or ctx ends. The filter selects as follows:
	//
	//   filter == 0: the oldest record regardless of type
	//   filter > 0:  the oldest record whose type equals filter
	//   filter < 0:  the oldest record of the lowest type value <= -filter
	//
	// The caller must have claimed a full slot before calling RecvMatch.
	// The claim guarantees a record is staged, but not that one matches:
	// RecvMatch waits for a match while other records sit in the conduit.
	RecvMatch(ctx context.Context, filter int32) (Record, error)
}

// A Destroyer is a Transport whose named underlying object can be removed.
// Destroy unlinks the name so no further opens can find it. Endpoints that
// are already attached continue to work where the mechanism allows it.
type Destroyer interface {
	Destroy() error
}

// An Endpoint is one open side of a conduit, bundling the transport with
// the synchronizer that gates it.
type Endpoint struct {
	Transport Transport
	Sync      slot.Sync // nil when the transport provides its own flow control
	Creator   bool      // whether this open created the named object
	Signal    bool      // whether closing this endpoint signals its direction on Sync

	// The geometry of the underlying object. For an endpoint attached to an
	// existing object these report the creator's values, which may differ
	// from the sizes the opener asked for. Zero means the transport imposes
	// no bound of its own.
	Capacity int // records in flight
	SlotSize int // payload bytes per record
}

// A Config carries the construction parameters common to the Open
// functions. The capacity and slot size are fixed by whichever endpoint
// creates the object; openers of an existing object inherit them.
type Config struct {
	Capacity  int  // maximum records in flight
	SlotSize  int  // maximum record payload size in bytes
	Create    bool // create the object if it does not exist
	Exclusive bool // with Create, fail if the object already exists

	// If not nil, these are used in place of the net package's dialer and
	// listener to establish stream-socket conduits. They allow tests to run
	// socket conduits over an in-memory network.
	Dial   func(network, address string) (net.Conn, error)
	Listen func(network, address string) (net.Listener, error)
}

func (c Config) dial() func(network, address string) (net.Conn, error) {
	if c.Dial == nil {
		return net.Dial
	}
	return c.Dial
}

func (c Config) listen() func(network, address string) (net.Listener, error) {
	if c.Listen == nil {
		return net.Listen
	}
	return c.Listen
}

// ErrTooLarge is reported by Send when a record's payload exceeds the slot
// size of the conduit.
var ErrTooLarge = errors.New("record exceeds slot size")

// ErrRemoved is reported by operations on an object that has been destroyed
// while still attached.
var ErrRemoved = errors.New("object has been removed")

// ErrUnsupported is reported by Open functions for mechanisms the platform
// does not provide.
var ErrUnsupported = errors.New("transport is not supported on this platform")
