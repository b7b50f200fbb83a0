// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package slot

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/fortytw2/leaktest"
)

func mustAcquireEmpty(t *testing.T, s Sync) {
	t.Helper()
	if err := s.AcquireEmpty(context.Background()); err != nil {
		t.Fatalf("AcquireEmpty: unexpected error: %v", err)
	}
}

func mustAcquireFull(t *testing.T, s Sync) {
	t.Helper()
	if err := s.AcquireFull(context.Background()); err != nil {
		t.Fatalf("AcquireFull: unexpected error: %v", err)
	}
}

func TestCountingCounts(t *testing.T) {
	defer leaktest.Check(t)()

	c := NewCounting(3)
	if got, want := c.Empty(), 3; got != want {
		t.Errorf("Empty: got %d, want %d", got, want)
	}
	if got, want := c.Full(), 0; got != want {
		t.Errorf("Full: got %d, want %d", got, want)
	}

	// Transfer two slots from empty to full.
	for range 2 {
		mustAcquireEmpty(t, c)
		c.ReleaseFull()
	}
	if got, want := c.Empty(), 1; got != want {
		t.Errorf("Empty after 2 sends: got %d, want %d", got, want)
	}
	if got, want := c.Full(), 2; got != want {
		t.Errorf("Full after 2 sends: got %d, want %d", got, want)
	}

	// Claim the last empty slot; the next try must fail.
	if !c.TryAcquireEmpty() {
		t.Error("TryAcquireEmpty: got false, want true")
	}
	if c.TryAcquireEmpty() {
		t.Error("TryAcquireEmpty on exhausted sync: got true, want false")
	}
	c.ReleaseEmpty() // undo

	// Drain the full slots back to empty.
	for range 2 {
		mustAcquireFull(t, c)
		c.ReleaseEmpty()
	}
	if c.TryAcquireFull() {
		t.Error("TryAcquireFull on drained sync: got true, want false")
	}
	if got, want := c.Empty(), 3; got != want {
		t.Errorf("Empty after drain: got %d, want %d", got, want)
	}
}

func TestCountingBlocking(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewCounting(1)
		mustAcquireEmpty(t, c)
		c.ReleaseFull() // occupancy 1 of 1

		done := make(chan error, 1)
		go func() {
			done <- c.AcquireEmpty(context.Background())
		}()

		synctest.Wait()
		select {
		case err := <-done:
			t.Fatalf("AcquireEmpty at capacity returned early: %v", err)
		default:
			// still blocked, as it should be
		}

		// Consuming the full slot unblocks the producer.
		mustAcquireFull(t, c)
		c.ReleaseEmpty()
		if err := <-done; err != nil {
			t.Errorf("AcquireEmpty after release: unexpected error: %v", err)
		}
		c.ReleaseEmpty() // undo, so counts balance
	})
}

func TestCountingContext(t *testing.T) {
	t.Run("Cancel", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			c := NewCounting(1)
			mustAcquireEmpty(t, c)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- c.AcquireEmpty(ctx) }()
			synctest.Wait()
			cancel()
			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Errorf("AcquireEmpty: got %v, want %v", err, context.Canceled)
			}
		})
	})

	t.Run("Deadline", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			c := NewCounting(1)
			mustAcquireEmpty(t, c)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			if err := c.AcquireEmpty(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("AcquireEmpty: got %v, want %v", err, context.DeadlineExceeded)
			}
		})
	})
}

func TestCountingCloseSend(t *testing.T) {
	defer leaktest.Check(t)()

	c := NewCounting(2)

	// Publish one full slot, then close the producer side.
	mustAcquireEmpty(t, c)
	c.ReleaseFull()
	c.CloseSend()
	c.CloseSend() // idempotent

	// The published slot is still drainable after the close.
	if err := c.AcquireFull(context.Background()); err != nil {
		t.Errorf("AcquireFull of remaining slot: unexpected error: %v", err)
	}
	c.ReleaseEmpty()

	// Once drained, acquires report ErrDone.
	if err := c.AcquireFull(context.Background()); !errors.Is(err, ErrDone) {
		t.Errorf("AcquireFull after drain: got %v, want %v", err, ErrDone)
	}
}

func TestCountingCloseRecv(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewCounting(1)
		mustAcquireEmpty(t, c)

		// A blocked producer is woken by the consumer closing.
		done := make(chan error, 1)
		go func() { done <- c.AcquireEmpty(context.Background()) }()
		synctest.Wait()
		c.CloseRecv()
		if err := <-done; !errors.Is(err, ErrGone) {
			t.Errorf("AcquireEmpty after CloseRecv: got %v, want %v", err, ErrGone)
		}

		// Subsequent acquires fail immediately.
		if err := c.AcquireEmpty(context.Background()); !errors.Is(err, ErrGone) {
			t.Errorf("AcquireEmpty: got %v, want %v", err, ErrGone)
		}
	})
}

func TestCountingNotify(t *testing.T) {
	defer leaktest.Check(t)()

	c := NewCounting(1)
	select {
	case <-c.Readable():
		t.Error("Readable signalled before any release")
	default:
	}

	mustAcquireEmpty(t, c)
	c.ReleaseFull()
	select {
	case <-c.Readable():
		// ok
	default:
		t.Error("Readable not signalled after ReleaseFull")
	}

	mustAcquireFull(t, c)
	c.ReleaseEmpty()
	select {
	case <-c.Writable():
		// ok
	default:
		t.Error("Writable not signalled after ReleaseEmpty")
	}
}
