// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package transport

// Pipe returns the two endpoints of an unnamed in-process conduit with
// cfg.Capacity slots. Records pass directly in memory without framing or
// encoding. Closing the producer endpoint ends the stream for the consumer;
// closing the consumer endpoint turns away blocked producers.
func Pipe(cfg Config) (producer, consumer *Endpoint) {
	q := newMsgQueue(cfg.Capacity)
	producer = &Endpoint{
		Transport: pipeEnd{q: q},
		Sync:      q.sync,
		Creator:   true, // an unnamed conduit has no object to destroy, but one side still owns it
		Signal:    true,
		Capacity:  cfg.Capacity,
	}
	consumer = &Endpoint{
		Transport: pipeEnd{q: q},
		Sync:      q.sync,
		Signal:    true,
		Capacity:  cfg.Capacity,
	}
	return
}

// A pipeEnd is one endpoint of an unnamed in-process conduit. Both ends
// share the record buffer; direction is enforced by the caller.
type pipeEnd struct {
	q *msgQueue
}

// Send implements part of the Transport interface.
func (p pipeEnd) Send(rec Record) error { return p.q.put(rec) }

// Recv implements part of the Transport interface.
func (p pipeEnd) Recv() (Record, error) { return p.q.take() }

// Close implements part of the Transport interface. End-of-stream signaling
// is carried by the shared synchronizer, not the transport.
func (p pipeEnd) Close() error { return nil }
