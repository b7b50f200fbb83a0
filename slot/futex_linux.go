// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build linux && (amd64 || arm64)

package slot

import (
	"errors"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// The futex calls here use the shared (non-private) operations, because the
// words they operate on live in memory mapped by multiple processes.

// Operation codes for the futex syscall, from <linux/futex.h>. The x/sys
// package exports the syscall number but not the operation codes.
const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

var errFutexTimeout = errors.New("futex wait timed out")

// futexWait blocks until the value at p is no longer val, another process
// calls futexWake on the same word, or the wait duration d elapses (d <= 0
// waits indefinitely). The value is re-checked atomically before entering
// the syscall, which closes the lost-wake race where the word changes
// between the caller's snapshot and the wait. Callers must re-check their
// condition after futexWait returns: wakeups may be spurious.
func futexWait(p *uint32, val uint32, d time.Duration) error {
	if atomic.LoadUint32(p) != val {
		return nil
	}
	var tsp *unix.Timespec
	if d > 0 {
		ts := unix.NsecToTimespec(int64(d))
		tsp = &ts
	}
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(p)),
		futexWaitOp,
		uintptr(val),
		uintptr(unsafe.Pointer(tsp)),
		0, 0,
	)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		// EAGAIN: the value changed before the wait began.
		// EINTR: interrupted by a signal. Both mean "re-check".
		return nil
	case unix.ETIMEDOUT:
		return errFutexTimeout
	}
	return errno
}

// futexWake wakes up to n waiters blocked on the word at p.
func futexWake(p *uint32, n int) {
	unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(p)),
		futexWakeOp,
		uintptr(n),
		0, 0, 0,
	)
}
