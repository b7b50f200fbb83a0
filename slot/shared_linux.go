// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build linux && (amd64 || arm64)

package slot

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// Close flag bits stored in the flags word of a Shared.
const (
	flagSendClosed = 1 << 0
	flagRecvClosed = 1 << 1
)

// pollInterval bounds how long a Shared acquire can sleep in the kernel
// before re-checking its context. Futexes cannot observe a context, so
// cancellation is detected between waits.
const pollInterval = 10 * time.Millisecond

// A Shared is a Sync whose counters are 32-bit words in memory mapped by
// multiple processes, typically the header of a shared ring. Waiting uses
// futexes, so every process mapping the words can block and wake the others.
//
// Each process constructs its own Shared over the same words. The creator of
// the region must call Reset once before any other process attaches.
type Shared struct {
	empty *uint32 // count of empty slots
	full  *uint32 // count of full slots
	flags *uint32 // close flag bits
}

// NewShared binds a synchronizer to three shared words. The words must be
// 4-byte aligned and remain mapped for the lifetime of the Shared.
func NewShared(empty, full, flags *uint32) *Shared {
	return &Shared{empty: empty, full: full, flags: flags}
}

// Reset initializes the shared words for a conduit with the given capacity:
// all slots empty, no close flags. Only the creator of the region may call
// Reset, and only before other processes attach.
func (s *Shared) Reset(capacity int) {
	atomic.StoreUint32(s.empty, uint32(capacity))
	atomic.StoreUint32(s.full, 0)
	atomic.StoreUint32(s.flags, 0)
}

// AcquireEmpty implements part of the Sync interface.
func (s *Shared) AcquireEmpty(ctx context.Context) error {
	return s.acquire(ctx, s.empty, flagRecvClosed, ErrGone)
}

// AcquireFull implements part of the Sync interface.
func (s *Shared) AcquireFull(ctx context.Context) error {
	return s.acquire(ctx, s.full, flagSendClosed, ErrDone)
}

// acquire claims one unit from the counter at p, sleeping on its futex while
// the count is zero. A set closed flag ends the wait after a final claim
// attempt, so units published before the close are still drained.
func (s *Shared) acquire(ctx context.Context, p *uint32, closedFlag uint32, closed error) error {
	for {
		if decrement(p) {
			return nil
		}
		if atomic.LoadUint32(s.flags)&closedFlag != 0 {
			if decrement(p) {
				return nil
			}
			return closed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := futexWait(p, 0, pollInterval); err != nil && err != errFutexTimeout {
			return err
		}
	}
}

// TryAcquireEmpty implements part of the Sync interface.
func (s *Shared) TryAcquireEmpty() bool { return decrement(s.empty) }

// TryAcquireFull implements part of the Sync interface.
func (s *Shared) TryAcquireFull() bool { return decrement(s.full) }

// ReleaseEmpty implements part of the Sync interface.
func (s *Shared) ReleaseEmpty() { release(s.empty) }

// ReleaseFull implements part of the Sync interface.
func (s *Shared) ReleaseFull() { release(s.full) }

// Empty implements part of the Sync interface.
func (s *Shared) Empty() int { return int(atomic.LoadUint32(s.empty)) }

// Full implements part of the Sync interface.
func (s *Shared) Full() int { return int(atomic.LoadUint32(s.full)) }

// CloseSend implements part of the Sync interface. Consumers blocked in any
// process are woken so they can observe the flag.
func (s *Shared) CloseSend() {
	atomic.OrUint32(s.flags, flagSendClosed)
	futexWake(s.full, math.MaxInt32)
}

// CloseRecv implements part of the Sync interface. Producers blocked in any
// process are woken so they can observe the flag.
func (s *Shared) CloseRecv() {
	atomic.OrUint32(s.flags, flagRecvClosed)
	futexWake(s.empty, math.MaxInt32)
}

// SendClosed reports whether the producer side has closed.
func (s *Shared) SendClosed() bool {
	return atomic.LoadUint32(s.flags)&flagSendClosed != 0
}

// RecvClosed reports whether the consumer side has closed.
func (s *Shared) RecvClosed() bool {
	return atomic.LoadUint32(s.flags)&flagRecvClosed != 0
}

// decrement claims one unit from the counter at p, reporting false if the
// count is zero.
func decrement(p *uint32) bool {
	for {
		v := atomic.LoadUint32(p)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(p, v, v-1) {
			return true
		}
	}
}

// release publishes one unit to the counter at p. A waiter is woken only on
// the zero to nonzero transition; waiters that race with later increments
// re-check the count before sleeping, so no wakeup is lost.
func release(p *uint32) {
	if atomic.AddUint32(p, 1) == 1 {
		futexWake(p, 1)
	}
}
