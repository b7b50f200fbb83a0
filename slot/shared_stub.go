// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build !linux || !(amd64 || arm64)

package slot

import (
	"context"
	"errors"
)

// ErrUnsupported is reported by the operations of a Shared on platforms
// without the kernel support it requires.
var ErrUnsupported = errors.New("shared synchronizers are not supported on this platform")

// A Shared is a Sync whose counters live in memory mapped by multiple
// processes. It is not supported on this platform: acquires fail with
// ErrUnsupported and the remaining operations are no-ops.
type Shared struct{}

// NewShared binds a synchronizer to three shared words. On this platform the
// result is inert; its acquire operations report ErrUnsupported.
func NewShared(empty, full, flags *uint32) *Shared { return &Shared{} }

// Reset is a no-op on this platform.
func (s *Shared) Reset(capacity int) {}

// AcquireEmpty implements part of the Sync interface.
func (s *Shared) AcquireEmpty(ctx context.Context) error { return ErrUnsupported }

// AcquireFull implements part of the Sync interface.
func (s *Shared) AcquireFull(ctx context.Context) error { return ErrUnsupported }

// TryAcquireEmpty implements part of the Sync interface.
func (s *Shared) TryAcquireEmpty() bool { return false }

// TryAcquireFull implements part of the Sync interface.
func (s *Shared) TryAcquireFull() bool { return false }

// ReleaseEmpty implements part of the Sync interface.
func (s *Shared) ReleaseEmpty() {}

// ReleaseFull implements part of the Sync interface.
func (s *Shared) ReleaseFull() {}

// Empty implements part of the Sync interface.
func (s *Shared) Empty() int { return 0 }

// Full implements part of the Sync interface.
func (s *Shared) Full() int { return 0 }

// CloseSend implements part of the Sync interface.
func (s *Shared) CloseSend() {}

// CloseRecv implements part of the Sync interface.
func (s *Shared) CloseRecv() {}

// SendClosed reports whether the producer side has closed.
func (s *Shared) SendClosed() bool { return false }

// RecvClosed reports whether the consumer side has closed.
func (s *Shared) RecvClosed() bool { return false }
