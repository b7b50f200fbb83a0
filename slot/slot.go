// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package slot implements counting synchronizers that bound the occupancy of
// a conduit. A synchronizer tracks two complementary counts, the number of
// empty slots and the number of full slots, whose sum never exceeds the
// conduit's capacity.
//
// A producer claims an empty slot before staging data and publishes a full
// slot afterward; a consumer claims a full slot before taking data and
// returns an empty slot afterward. If either step of the transfer fails, the
// claimed slot is released back to the count it came from, so a failed
// operation never changes the occupancy.
//
// The Counting implementation synchronizes goroutines within one process.
// The Shared implementation (Linux only) operates on counter words placed in
// memory mapped by multiple processes.
package slot

import (
	"context"
	"errors"
)

// ErrDone is reported by AcquireFull when the producer side has closed and
// every full slot has been consumed.
var ErrDone = errors.New("producer closed, no data remains")

// ErrGone is reported by AcquireEmpty when the consumer side has closed and
// will never return another empty slot.
var ErrGone = errors.New("consumer side is closed")

// A Sync tracks the empty and full slot counts of a bounded conduit.
//
// A successful acquire must be balanced by exactly one release: ReleaseFull
// after a completed send, or ReleaseEmpty to undo a failed one; ReleaseEmpty
// after a completed receive, or ReleaseFull to undo a failed one. Acquires
// block until a slot is available, the context ends, or the corresponding
// side of the conduit closes.
type Sync interface {
	// AcquireEmpty blocks until an empty slot can be claimed. It reports
	// ErrGone if the consumer side has closed, or the context error if ctx
	// ends first.
	AcquireEmpty(ctx context.Context) error

	// TryAcquireEmpty claims an empty slot without blocking, and reports
	// whether it succeeded.
	TryAcquireEmpty() bool

	// ReleaseEmpty returns an empty slot, waking a blocked producer if any.
	ReleaseEmpty()

	// AcquireFull blocks until a full slot can be claimed. It reports
	// ErrDone if the producer side has closed and no data remains, or the
	// context error if ctx ends first.
	AcquireFull(ctx context.Context) error

	// TryAcquireFull claims a full slot without blocking, and reports
	// whether it succeeded.
	TryAcquireFull() bool

	// ReleaseFull publishes a full slot, waking a blocked consumer if any.
	ReleaseFull()

	// Empty and Full report instantaneous snapshots of the slot counts.
	// The values are advisory: by the time the caller observes them the
	// counts may already have changed.
	Empty() int
	Full() int

	// CloseSend marks the producer side closed. Consumers may drain any
	// remaining full slots; once the count reaches zero, AcquireFull
	// reports ErrDone. CloseSend is idempotent.
	CloseSend()

	// CloseRecv marks the consumer side closed. Blocked and future
	// AcquireEmpty calls report ErrGone. CloseRecv is idempotent.
	CloseRecv()
}
