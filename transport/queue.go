// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package transport

import (
	"context"
	"io"
	"sync"

	"github.com/creachadair/sluice/slot"
)

var queues = newRegistry[*msgQueue]()

// OpenQueue opens one endpoint of the typed message queue registered under
// name, creating the queue if cfg.Create is set and no queue exists. Queues
// are durable: closing an endpoint does not disturb records in flight, and
// the queue persists until the endpoint that created it destroys it.
func OpenQueue(name string, cfg Config) (*Endpoint, error) {
	q, created, err := queues.open(name, cfg.Create, cfg.Exclusive, func() (*msgQueue, error) {
		return newMsgQueue(cfg.Capacity), nil
	})
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		Transport: queueEndpoint{q: q, name: name},
		Sync:      q.sync,
		Creator:   created,
		Capacity:  q.capacity,
	}, nil
}

// A msgQueue is the shared state of a typed message queue: an arrival-order
// list of records plus the synchronizer that bounds it. Records carry a
// type tag, and a consumer may take the oldest record, the oldest of one
// type, or the oldest of the lowest type below a bound.
type msgQueue struct {
	sync     *slot.Counting
	capacity int

	mu      sync.Mutex
	recs    []Record
	arrive  chan struct{} // closed and replaced when a record is staged
	removed bool
}

func newMsgQueue(capacity int) *msgQueue {
	return &msgQueue{
		sync:     slot.NewCounting(capacity),
		capacity: capacity,
		arrive:   make(chan struct{}),
	}
}

// put stages rec at the tail of the queue and wakes any waiting matchers.
func (q *msgQueue) put(rec Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removed {
		return ErrRemoved
	}
	q.recs = append(q.recs, rec)
	close(q.arrive)
	q.arrive = make(chan struct{})
	return nil
}

// take removes and returns the oldest record. The caller must hold a full
// slot, which guarantees a record is staged unless the queue was removed.
func (q *msgQueue) take() (Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.recs) == 0 {
		if q.removed {
			return Record{}, io.EOF
		}
		panic("queue: full slot claimed but no record staged")
	}
	return q.pop(0), nil
}

// takeMatch removes and returns the oldest record matching filter, waiting
// for one to arrive if necessary. The caller must hold a full slot. The
// claim guarantees the queue is nonempty, but a match may never arrive if
// the queue stays occupied by other types; the wait is bounded only by ctx.
func (q *msgQueue) takeMatch(ctx context.Context, filter int32) (Record, error) {
	for {
		q.mu.Lock()
		if i := q.match(filter); i >= 0 {
			rec := q.pop(i)
			q.mu.Unlock()
			return rec, nil
		}
		if q.removed {
			q.mu.Unlock()
			return Record{}, io.EOF
		}
		arrive := q.arrive
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-arrive:
		}
	}
}

// match returns the index of the oldest record selected by filter, or -1.
// A zero filter selects the head. A positive filter selects the oldest
// record of exactly that type. A negative filter selects the oldest record
// of the lowest type value not exceeding -filter.
func (q *msgQueue) match(filter int32) int {
	switch {
	case filter == 0:
		if len(q.recs) > 0 {
			return 0
		}
	case filter > 0:
		for i, r := range q.recs {
			if r.Type == filter {
				return i
			}
		}
	default:
		limit := -filter
		best, bestType := -1, int32(0)
		for i, r := range q.recs {
			if r.Type <= limit && (best < 0 || r.Type < bestType) {
				best, bestType = i, r.Type
			}
		}
		return best
	}
	return -1
}

// pop removes and returns the record at index i. The caller must hold q.mu.
func (q *msgQueue) pop(i int) Record {
	rec := q.recs[i]
	q.recs = append(q.recs[:i], q.recs[i+1:]...)
	return rec
}

// shutdown discards all staged records and wakes every waiter. Blocked
// receivers report end of stream; blocked senders report that the consumer
// side is gone.
func (q *msgQueue) shutdown() {
	q.mu.Lock()
	q.removed = true
	q.recs = nil
	close(q.arrive)
	q.mu.Unlock()

	q.sync.CloseSend()
	q.sync.CloseRecv()
}

// A queueEndpoint is one endpoint's handle on a shared msgQueue.
type queueEndpoint struct {
	q    *msgQueue
	name string
}

// Send implements part of the Transport interface.
func (e queueEndpoint) Send(rec Record) error { return e.q.put(rec) }

// Recv implements part of the Transport interface.
func (e queueEndpoint) Recv() (Record, error) { return e.q.take() }

// RecvMatch implements the Selector interface.
func (e queueEndpoint) RecvMatch(ctx context.Context, filter int32) (Record, error) {
	return e.q.takeMatch(ctx, filter)
}

// Close implements part of the Transport interface. The queue itself is
// undisturbed; only this endpoint's reference is dropped.
func (e queueEndpoint) Close() error {
	queues.release(e.name)
	return nil
}

// Destroy implements the Destroyer interface. The name is unlinked and all
// staged records are discarded, waking any blocked endpoints.
func (e queueEndpoint) Destroy() error {
	if q, ok := queues.remove(e.name); ok {
		q.shutdown()
	}
	return nil
}
