// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package sluice

import (
	"fmt"
	"io"
	"log"
	"net"
)

const logFlags = log.LstdFlags | log.Lshortfile

// defaultMaxMessage is the bound on message payload size when the options do
// not specify one.
const defaultMaxMessage = 4096

// Options control the behaviour of a channel created by Open or Pipe.
// A nil *Options provides sensible defaults.
type Options struct {
	// If not nil, send debug logs to this writer.
	LogWriter io.Writer

	// The maximum number of unconsumed messages the channel may hold at
	// once. Zero means one slot, the single-buffer shape; negative values
	// are rejected by Open. Endpoints of stream-backed channels (fifo,
	// socket) ignore this: their bound is the kernel object's own buffer.
	//
	// An endpoint that opens an existing named object inherits the capacity
	// its creator fixed, and this value is ignored.
	Capacity int

	// The maximum payload size in bytes of a single message. Zero means
	// 4096; negative values are rejected by Open. Sending a larger message
	// fails; a received message that is larger (possible when another
	// endpoint fixed a larger bound) is truncated to this size and reported
	// as such.
	MaxMessageSize int

	// Create the named transport object if it does not exist. The endpoint
	// that actually creates the object becomes its owner, and destroys it
	// when the endpoint is closed.
	Create bool

	// With Create, fail if the named object already exists.
	Exclusive bool

	// Report WouldBlock from Send and Receive instead of waiting for a slot.
	//
	// Only slot-synchronized channels (queue, ring, and in-process pipe) have
	// the occupancy accounting this needs. Stream-backed channels (fifo,
	// socket) block in the kernel's own buffer, and NonBlocking has no effect
	// on them.
	NonBlocking bool

	// For a Duplex socket endpoint, bind and accept an inbound peer instead
	// of connecting outward. Ignored for other roles and transports: a
	// Producer always connects, a Consumer always accepts.
	Passive bool

	// If not nil, this value is used to capture per-channel statistics.
	Metrics *Metrics

	// If not nil, these are used in place of the net package's dialer and
	// listener for socket channels. They allow tests to run socket channels
	// over an in-memory network.
	Dial   func(network, address string) (net.Conn, error)
	Listen func(network, address string) (net.Listener, error)
}

func (o *Options) logFunc() func(string, ...any) {
	if o == nil || o.LogWriter == nil {
		return func(string, ...any) {}
	}
	logger := log.New(o.LogWriter, "[sluice] ", logFlags)
	return func(msg string, args ...any) { logger.Output(2, fmt.Sprintf(msg, args...)) }
}

func (o *Options) capacity() int {
	if o == nil || o.Capacity == 0 {
		return 1
	}
	return o.Capacity
}

func (o *Options) maxMessageSize() int {
	if o == nil || o.MaxMessageSize == 0 {
		return defaultMaxMessage
	}
	return o.MaxMessageSize
}

func (o *Options) create() bool      { return o != nil && o.Create }
func (o *Options) exclusive() bool   { return o != nil && o.Exclusive }
func (o *Options) nonBlocking() bool { return o != nil && o.NonBlocking }
func (o *Options) passive() bool     { return o != nil && o.Passive }

func (o *Options) metrics() *Metrics {
	if o == nil {
		return nil // a nil *Metrics discards everything it is given
	}
	return o.Metrics
}

func (o *Options) netDial() func(network, address string) (net.Conn, error) {
	if o == nil {
		return nil
	}
	return o.Dial
}

func (o *Options) netListen() func(network, address string) (net.Listener, error) {
	if o == nil {
		return nil
	}
	return o.Listen
}
