// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package slot

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// A Counting is a Sync for conduits whose endpoints share one process. It is
// safe for concurrent use by multiple goroutines.
//
// In addition to the Sync methods, a Counting carries two notification
// channels that receive a signal whenever a slot is released or a side
// closes. The signals are coalesced, so a reader of these channels must
// re-check the counts after each wakeup.
type Counting struct {
	capacity int64
	empty    *semaphore.Weighted
	full     *semaphore.Weighted

	emptyN atomic.Int64 // snapshot mirrors of the semaphore counts
	fullN  atomic.Int64

	readable chan struct{} // coalesced signal: full slots released, or close
	writable chan struct{} // coalesced signal: empty slots released, or close

	sendClosed atomic.Bool
	recvClosed atomic.Bool
	sendDone   chan struct{} // closed by CloseSend
	recvDone   chan struct{} // closed by CloseRecv
}

// NewCounting constructs a counting synchronizer for a conduit with the
// given capacity. It panics if capacity < 1.
func NewCounting(capacity int) *Counting {
	if capacity < 1 {
		panic(fmt.Sprintf("invalid capacity %d", capacity))
	}
	c := &Counting{
		capacity: int64(capacity),
		empty:    semaphore.NewWeighted(int64(capacity)),
		full:     semaphore.NewWeighted(int64(capacity)),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
		sendDone: make(chan struct{}),
		recvDone: make(chan struct{}),
	}
	c.full.TryAcquire(int64(capacity)) // all slots begin empty
	c.emptyN.Store(int64(capacity))
	return c
}

// AcquireEmpty implements part of the Sync interface.
func (c *Counting) AcquireEmpty(ctx context.Context) error {
	return c.acquire(ctx, c.empty, &c.emptyN, c.recvDone, ErrGone)
}

// AcquireFull implements part of the Sync interface.
func (c *Counting) AcquireFull(ctx context.Context) error {
	return c.acquire(ctx, c.full, &c.fullN, c.sendDone, ErrDone)
}

// acquire claims one unit from sem, giving up when ctx ends or done closes.
// After a close it makes a final non-blocking claim, so slots published
// before the close are still drained.
func (c *Counting) acquire(ctx context.Context, sem *semaphore.Weighted, n *atomic.Int64, done <-chan struct{}, closed error) error {
	if sem.TryAcquire(1) {
		n.Add(-1)
		return nil
	}
	select {
	case <-done:
		if sem.TryAcquire(1) {
			n.Add(-1)
			return nil
		}
		return closed
	default:
	}

	// Wrap ctx so that a close of done also unblocks the semaphore wait.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-wctx.Done():
		}
	}()
	if err := sem.Acquire(wctx, 1); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		select {
		case <-done:
			if sem.TryAcquire(1) {
				n.Add(-1)
				return nil
			}
			return closed
		default:
		}
		return err
	}
	n.Add(-1)
	return nil
}

// TryAcquireEmpty implements part of the Sync interface.
func (c *Counting) TryAcquireEmpty() bool {
	if c.empty.TryAcquire(1) {
		c.emptyN.Add(-1)
		return true
	}
	return false
}

// TryAcquireFull implements part of the Sync interface.
func (c *Counting) TryAcquireFull() bool {
	if c.full.TryAcquire(1) {
		c.fullN.Add(-1)
		return true
	}
	return false
}

// ReleaseEmpty implements part of the Sync interface.
func (c *Counting) ReleaseEmpty() {
	c.emptyN.Add(1)
	c.empty.Release(1)
	signal(c.writable)
}

// ReleaseFull implements part of the Sync interface.
func (c *Counting) ReleaseFull() {
	c.fullN.Add(1)
	c.full.Release(1)
	signal(c.readable)
}

// Empty implements part of the Sync interface.
func (c *Counting) Empty() int { return int(c.emptyN.Load()) }

// Full implements part of the Sync interface.
func (c *Counting) Full() int { return int(c.fullN.Load()) }

// CloseSend implements part of the Sync interface.
func (c *Counting) CloseSend() {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.sendDone)
		signal(c.readable)
	}
}

// CloseRecv implements part of the Sync interface.
func (c *Counting) CloseRecv() {
	if c.recvClosed.CompareAndSwap(false, true) {
		close(c.recvDone)
		signal(c.writable)
	}
}

// Readable returns a channel that receives a coalesced signal each time a
// full slot is published or the producer side closes.
func (c *Counting) Readable() <-chan struct{} { return c.readable }

// Writable returns a channel that receives a coalesced signal each time an
// empty slot is returned or the consumer side closes.
func (c *Counting) Writable() <-chan struct{} { return c.writable }

// signal posts a wakeup to ch if it is not already pending.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
