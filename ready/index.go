// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package ready

import (
	"context"
	"sync"
)

// An Index is a Waiter that keeps a resident watch on every registration: a
// goroutine per source forwards its wakeup signals into a shared ready set,
// and a wait drains only that set. Register and Unregister mutate the
// resident state; a wait's cost grows with the number of ready sources, not
// with the number registered.
//
// The ready set is level-triggered: a source stays in it as long as it
// remains ready, so consecutive waits keep reporting a source until its
// readiness is consumed.
type Index struct {
	mu      sync.Mutex
	watches map[Source]*watch
	queue   map[*watch]struct{} // sources signalled since their last drain
	wake    chan struct{}       // coalesced: the queue may be nonempty
	closed  bool
	done    chan struct{}
}

// A watch is the resident state of one registration.
type watch struct {
	src  Source
	in   Interest
	stop chan struct{}
}

var _ Waiter = (*Index)(nil)

// NewIndex constructs an empty Index waiter. The caller must Close it when
// done, to stop the watches it has spawned.
func NewIndex() *Index {
	return &Index{
		watches: make(map[Source]*watch),
		queue:   make(map[*watch]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Register implements part of the Waiter interface.
func (ix *Index) Register(src Source, in Interest) error {
	if err := checkSource(src, in); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}
	if old, ok := ix.watches[src]; ok {
		close(old.stop)
		delete(ix.queue, old)
	}
	w := &watch{src: src, in: in, stop: make(chan struct{})}
	ix.watches[src] = w

	// Queue the new watch at once: the source may already be ready, and no
	// further signal is owed for readiness that predates the registration.
	ix.queue[w] = struct{}{}
	signal(ix.wake)
	go ix.run(w)
	return nil
}

// run forwards wakeup signals from w's source into the ready set until the
// watch is replaced, unregistered, or the waiter closes.
func (ix *Index) run(w *watch) {
	var rch, wch <-chan struct{}
	if w.in&Read != 0 {
		rch = w.src.Readable()
	}
	if w.in&Write != 0 {
		wch = w.src.Writable()
	}
	for {
		select {
		case <-w.stop:
			return
		case <-ix.done:
			return
		case <-rch:
		case <-wch:
		}
		ix.mu.Lock()
		if ix.watches[w.src] == w {
			ix.queue[w] = struct{}{}
			signal(ix.wake)
		}
		ix.mu.Unlock()
	}
}

// Unregister implements part of the Waiter interface.
func (ix *Index) Unregister(src Source) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if w, ok := ix.watches[src]; ok {
		close(w.stop)
		delete(ix.watches, src)
		delete(ix.queue, w)
	}
}

// drain collects events for the queued watches, dropping entries whose
// readiness has already been consumed and keeping the rest queued for the
// next pass. The caller must hold ix.mu.
func (ix *Index) drain() []Event {
	var evs []Event
	for w := range ix.queue {
		r := readiness(w.src, w.in)
		if r == 0 {
			delete(ix.queue, w)
			continue
		}
		evs = append(evs, Event{Source: w.src, Ready: r})
	}
	return evs
}

// Poll implements part of the Waiter interface.
func (ix *Index) Poll() []Event {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	return ix.drain()
}

// Wait implements part of the Waiter interface. Unlike the scanning
// waiters, an Index observes registrations made while a wait is blocked as
// soon as they are made.
func (ix *Index) Wait(ctx context.Context) ([]Event, error) {
	for {
		ix.mu.Lock()
		if ix.closed {
			ix.mu.Unlock()
			return nil, ErrClosed
		}
		evs := ix.drain()
		ix.mu.Unlock()
		if len(evs) != 0 {
			return evs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ix.done:
			return nil, ErrClosed
		case <-ix.wake:
		}
	}
}

// Close implements part of the Waiter interface. Closing stops the resident
// watches; it does not close or otherwise disturb the registered sources.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.closed {
		ix.closed = true
		close(ix.done)
	}
	return nil
}
