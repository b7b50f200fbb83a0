// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package sluice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/creachadair/sluice/kind"
	"github.com/creachadair/sluice/slot"
	"github.com/creachadair/sluice/transport"
)

// A Role determines which operations are legal on a channel endpoint. The
// role is fixed when the channel is opened.
type Role int

const (
	Producer Role = iota + 1 // the endpoint sends messages
	Consumer                 // the endpoint receives messages
	Duplex                   // both directions; stream sockets only
)

func (r Role) String() string {
	switch r {
	case Producer:
		return "producer"
	case Consumer:
		return "consumer"
	case Duplex:
		return "duplex"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// A Message is one unit of data carried by a channel.
//
// Type is an optional tag used by typed queue channels to support selective
// receive; it must not be negative, and negative filter values are reserved
// for ReceiveMatch. The other backends do not carry tags, and deliver every
// message with type zero.
type Message struct {
	Type int32
	Data []byte
}

// A Channel is one endpoint of a bounded conduit. Every transfer is
// bracketed by the channel's slot synchronizer: a send claims an empty slot,
// stages the message, and publishes a full slot; a receive claims a full
// slot, takes the message, and returns an empty one. A failed transfer
// releases its claimed slot back unchanged, so the occupancy counts are
// exact at every instant.
//
// Channels backed by a kernel byte stream (fifo, socket) carry no
// synchronizer; the stream's own buffer bounds them, and the slot phases are
// skipped.
//
// A Channel is safe for concurrent use by multiple goroutines. A Channel
// must not be used after it is closed.
type Channel struct {
	name    string
	role    Role
	tr      transport.Transport
	sync    slot.Sync      // nil for stream-backed channels
	notify  *slot.Counting // non-nil when sync carries notification channels
	creator bool           // this endpoint owns the named object
	signal  bool           // closing signals this endpoint's direction

	capacity int
	maxSize  int
	noWait   bool
	metrics  *Metrics
	log      func(string, ...any)

	sendMu sync.Mutex // serializes the physical write to tr
	recvMu sync.Mutex // serializes the physical read from tr

	closed    atomic.Bool
	closeOnce sync.Once
}

// newChannel assembles a channel over an open transport endpoint. The
// effective message size bound is the smaller of the requested bound and the
// endpoint's slot size, when the endpoint has one.
func newChannel(name string, role Role, ep *transport.Endpoint, opts *Options) *Channel {
	maxSize := opts.maxMessageSize()
	if ep.SlotSize > 0 && ep.SlotSize < maxSize {
		maxSize = ep.SlotSize
	}
	c := &Channel{
		name:     name,
		role:     role,
		tr:       ep.Transport,
		sync:     ep.Sync,
		creator:  ep.Creator,
		signal:   ep.Signal,
		capacity: ep.Capacity,
		maxSize:  maxSize,
		noWait:   opts.nonBlocking(),
		metrics:  opts.metrics(),
		log:      opts.logFunc(),
	}
	if n, ok := ep.Sync.(*slot.Counting); ok {
		c.notify = n
	}
	channelsActiveGauge.Add(1)
	return c
}

// Name reports the identity the channel was opened with. Channels from Pipe
// have no identity and report "".
func (c *Channel) Name() string { return c.name }

// Role reports the role the channel was opened with.
func (c *Channel) Role() Role { return c.role }

// Capacity reports the number of messages the channel can hold unconsumed,
// or 0 for stream-backed channels bounded by the kernel buffer in bytes.
func (c *Channel) Capacity() int { return c.capacity }

// MaxMessageSize reports the effective bound on message payload size.
func (c *Channel) MaxMessageSize() int { return c.maxSize }

// Metrics returns the per-channel metrics collector, or nil if none was set.
func (c *Channel) Metrics() *Metrics { return c.metrics }

// Send delivers msg through the channel, blocking until an empty slot is
// available, ctx ends, or the consumer side is gone. The payload is copied
// before Send returns, so the caller may immediately reuse msg.Data.
//
// If the channel was opened with Options.NonBlocking and no slot is free,
// Send reports kind.WouldBlock without waiting; stream-backed channels have
// no slot accounting, and NonBlocking does not apply to them. If ctx ends
// during the wait the slot counts are left exactly as found, and the error
// carries kind.TimedOut or kind.Cancelled. Once a slot is claimed the
// physical write is not cancellable.
func (c *Channel) Send(ctx context.Context, msg Message) error {
	if c.closed.Load() {
		return ErrChannelClosed
	} else if c.role == Consumer {
		return Errorf(kind.PermissionDenied, "channel is receive-only")
	} else if msg.Type < 0 {
		return Errorf(kind.IOError, "negative message type %d", msg.Type)
	} else if len(msg.Data) > c.maxSize {
		return Errorf(kind.Truncated, "message size %d exceeds limit %d", len(msg.Data), c.maxSize)
	}
	data := bytes.Clone(msg.Data)

	if c.sync != nil {
		if !c.sync.TryAcquireEmpty() {
			if c.noWait {
				return Errorf(kind.WouldBlock, "channel is full")
			}
			sendsBlockedCount.Add(1)
			c.metrics.Count("channel.sendsBlocked", 1)
			if err := c.sync.AcquireEmpty(ctx); err != nil {
				return chanError(err)
			}
		}
	}
	// The slot phases admit as many senders as there are empty slots, but
	// the transports admit one physical writer at a time.
	c.sendMu.Lock()
	err := c.tr.Send(transport.Record{Type: msg.Type, Data: data})
	c.sendMu.Unlock()
	if err != nil {
		if c.sync != nil {
			c.sync.ReleaseEmpty() // undo: the slot was never filled
		}
		return chanError(err)
	}
	if c.sync != nil {
		c.sync.ReleaseFull()
	}
	messagesSentCount.Add(1)
	bytesSentCount.Add(int64(len(data)))
	c.metrics.Count("channel.messagesSent", 1)
	c.metrics.CountAndSetMax("channel.bytesSent", int64(len(data)))
	return nil
}

// Receive returns the next message from the channel, blocking until one is
// available, ctx ends, or the producer side has closed with nothing left
// (kind.EndOfStream).
//
// If the channel was opened with Options.NonBlocking and no message is
// staged, Receive reports kind.WouldBlock without waiting; as with Send,
// NonBlocking does not apply to stream-backed channels. A message larger
// than the channel's size bound is truncated to the bound and returned
// together with an error of kind.Truncated; the message is removed from the
// channel either way.
func (c *Channel) Receive(ctx context.Context) (Message, error) {
	if err := c.recvReady(); err != nil {
		return Message{}, err
	}
	if err := c.acquireFull(ctx); err != nil {
		return Message{}, err
	}
	c.recvMu.Lock()
	rec, err := c.tr.Recv()
	c.recvMu.Unlock()
	if err != nil {
		if c.sync != nil {
			c.sync.ReleaseFull() // undo: nothing was taken
		}
		return Message{}, chanError(err)
	}
	if c.sync != nil {
		c.sync.ReleaseEmpty()
	}
	return c.deliver(rec)
}

// ReceiveMatch returns the oldest message selected by filter, blocking until
// one is available or ctx ends. Only typed queue channels support selection;
// other backends report an error of kind.IOError. The filter selects:
//
//	filter == 0: the oldest message regardless of type
//	filter > 0:  the oldest message whose type equals filter
//	filter < 0:  the oldest message of the lowest type value <= -filter
//
// A matching message may arrive only after others: ReceiveMatch waits for a
// match while non-matching messages remain staged, bounded only by ctx.
// Truncation follows the same policy as Receive.
func (c *Channel) ReceiveMatch(ctx context.Context, filter int32) (Message, error) {
	if err := c.recvReady(); err != nil {
		return Message{}, err
	}
	sel, ok := c.tr.(transport.Selector)
	if !ok {
		return Message{}, Errorf(kind.IOError, "transport does not support selective receive")
	}
	if err := c.acquireFull(ctx); err != nil {
		return Message{}, err
	}
	// Not under recvMu: a match may wait for records that arrive later, and
	// the queue serializes its own state.
	rec, err := sel.RecvMatch(ctx, filter)
	if err != nil {
		if c.sync != nil {
			c.sync.ReleaseFull() // undo: nothing was taken
		}
		return Message{}, chanError(err)
	}
	if c.sync != nil {
		c.sync.ReleaseEmpty()
	}
	return c.deliver(rec)
}

// recvReady checks that the channel is open and permitted to receive.
func (c *Channel) recvReady() error {
	if c.closed.Load() {
		return ErrChannelClosed
	} else if c.role == Producer {
		return Errorf(kind.PermissionDenied, "channel is send-only")
	}
	return nil
}

// acquireFull runs the claim phase of a receive: take a full slot, honouring
// the non-blocking option and counting the blocked waits.
func (c *Channel) acquireFull(ctx context.Context) error {
	if c.sync == nil || c.sync.TryAcquireFull() {
		return nil
	}
	if c.noWait {
		return Errorf(kind.WouldBlock, "channel is empty")
	}
	receivesBlockedCount.Add(1)
	c.metrics.Count("channel.receivesBlocked", 1)
	if err := c.sync.AcquireFull(ctx); err != nil {
		return chanError(err)
	}
	return nil
}

// deliver applies the size bound to a received record and updates the
// transfer counters. Oversized payloads are cut to the bound and reported
// with kind.Truncated alongside the shortened message.
func (c *Channel) deliver(rec transport.Record) (Message, error) {
	messagesReceivedCount.Add(1)
	bytesReceivedCount.Add(int64(len(rec.Data)))
	c.metrics.Count("channel.messagesReceived", 1)
	c.metrics.CountAndSetMax("channel.bytesReceived", int64(len(rec.Data)))
	msg := Message{Type: rec.Type, Data: rec.Data}
	if len(msg.Data) > c.maxSize {
		messagesTruncatedCount.Add(1)
		c.metrics.Count("channel.messagesTruncated", 1)
		msg.Data = msg.Data[:c.maxSize]
		return msg, Errorf(kind.Truncated, "message size %d exceeds limit %d", len(rec.Data), c.maxSize)
	}
	return msg, nil
}

// Close shuts down this endpoint of the channel. Close is idempotent, and
// always reports nil; failures tearing down the transport are logged via
// Options.LogWriter rather than returned.
//
// Closing signals the endpoint's direction to the peer where the conduit
// supports it: a producer's close lets the consumer drain and then reports
// end of stream, a consumer's close turns blocked producers away. If this
// endpoint created an underlying named object, Close also destroys it.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.sync != nil && c.signal {
			if c.role != Consumer {
				c.sync.CloseSend()
			}
			if c.role != Producer {
				c.sync.CloseRecv()
			}
		}
		if err := c.tr.Close(); err != nil {
			c.log("Closing channel %q: %v", c.name, err)
		}
		if c.creator {
			if d, ok := c.tr.(transport.Destroyer); ok {
				if err := d.Destroy(); err != nil {
					c.log("Destroying channel %q: %v", c.name, err)
				}
			}
		}
		channelsActiveGauge.Add(-1)
	})
	return nil
}

// ReadReady reports whether a message is staged for receiving. It is false
// for stream-backed channels, whose occupancy the kernel does not expose.
// The report is advisory: another consumer may take the message first.
func (c *Channel) ReadReady() bool { return c.sync != nil && c.sync.Full() > 0 }

// WriteReady reports whether an empty slot is available for sending. It is
// false for stream-backed channels. The report is advisory: another
// producer may claim the slot first.
func (c *Channel) WriteReady() bool { return c.sync != nil && c.sync.Empty() > 0 }

// Readable returns a channel that receives a coalesced signal whenever a
// message is staged or the producer side closes, for use with a readiness
// waiter. It returns nil when the channel's synchronizer does not carry
// notifications (stream and cross-process channels). After a wakeup the
// caller must re-check ReadReady; signals are merged, not counted.
func (c *Channel) Readable() <-chan struct{} {
	if c.notify == nil {
		return nil
	}
	return c.notify.Readable()
}

// Writable returns a channel that receives a coalesced signal whenever an
// empty slot is returned or the consumer side closes. It returns nil when
// the channel's synchronizer does not carry notifications. After a wakeup
// the caller must re-check WriteReady.
func (c *Channel) Writable() <-chan struct{} {
	if c.notify == nil {
		return nil
	}
	return c.notify.Writable()
}

// chanError classifies an error from a slot or transport operation into the
// kinds of this package. Errors already carrying a kind pass through.
func chanError(err error) error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return err
	case errors.Is(err, slot.ErrGone):
		return &Error{kind: kind.PeerClosed, err: err}
	case errors.Is(err, slot.ErrDone), errors.Is(err, io.EOF):
		return &Error{kind: kind.EndOfStream, err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{kind: kind.TimedOut, err: err}
	case errors.Is(err, context.Canceled):
		return &Error{kind: kind.Cancelled, err: err}
	case errors.Is(err, transport.ErrTooLarge):
		return &Error{kind: kind.Truncated, err: err}
	case errors.Is(err, transport.ErrRemoved):
		return &Error{kind: kind.PeerClosed, err: err}
	case errors.Is(err, net.ErrClosed), errors.Is(err, fs.ErrClosed):
		return ErrChannelClosed
	case errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET):
		return &Error{kind: kind.PeerClosed, err: err}
	default:
		return &Error{kind: kind.IOError, err: err}
	}
}
