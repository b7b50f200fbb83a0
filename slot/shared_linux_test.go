// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build linux && (amd64 || arm64)

package slot

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// newSharedWords returns a Shared over freshly-allocated counter words.
// Futex waits work on any shared mapping, including the test's own heap.
func newSharedWords(capacity int) *Shared {
	words := make([]uint32, 3)
	s := NewShared(&words[0], &words[1], &words[2])
	s.Reset(capacity)
	return s
}

func TestSharedCounts(t *testing.T) {
	s := newSharedWords(2)
	if got, want := s.Empty(), 2; got != want {
		t.Errorf("Empty: got %d, want %d", got, want)
	}
	if got, want := s.Full(), 0; got != want {
		t.Errorf("Full: got %d, want %d", got, want)
	}

	mustAcquireEmpty(t, s)
	s.ReleaseFull()
	if got, want := s.Empty(), 1; got != want {
		t.Errorf("Empty after send: got %d, want %d", got, want)
	}
	if got, want := s.Full(), 1; got != want {
		t.Errorf("Full after send: got %d, want %d", got, want)
	}

	if !s.TryAcquireFull() {
		t.Error("TryAcquireFull: got false, want true")
	}
	if s.TryAcquireFull() {
		t.Error("TryAcquireFull on drained sync: got true, want false")
	}
	s.ReleaseEmpty()
}

func TestSharedBlocking(t *testing.T) {
	s := newSharedWords(1)
	mustAcquireEmpty(t, s) // occupancy will be 1 of 1 after release
	s.ReleaseFull()

	// A producer blocked on a full conduit is released by a consumer taking
	// the staged unit. Run several cycles to exercise the futex sleep/wake
	// path on both counters.
	g := new(errgroup.Group)
	g.Go(func() error {
		for range 50 {
			if err := s.AcquireEmpty(context.Background()); err != nil {
				return err
			}
			s.ReleaseFull()
		}
		return nil
	})
	g.Go(func() error {
		for range 50 {
			if err := s.AcquireFull(context.Background()); err != nil {
				return err
			}
			s.ReleaseEmpty()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Errorf("Transfer cycles: unexpected error: %v", err)
	}
	if got, want := s.Empty()+s.Full(), 1; got != want {
		t.Errorf("Empty+Full after cycles: got %d, want %d", got, want)
	}
}

func TestSharedContext(t *testing.T) {
	s := newSharedWords(1)
	mustAcquireEmpty(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.AcquireEmpty(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AcquireEmpty: got %v, want %v", err, context.DeadlineExceeded)
	}
	if got, want := s.Empty(), 0; got != want {
		t.Errorf("Empty after expired acquire: got %d, want %d", got, want)
	}
}

func TestSharedClose(t *testing.T) {
	s := newSharedWords(2)

	// A staged unit survives the producer close and is still drainable.
	mustAcquireEmpty(t, s)
	s.ReleaseFull()
	s.CloseSend()
	if !s.SendClosed() {
		t.Error("SendClosed: got false, want true")
	}
	if err := s.AcquireFull(context.Background()); err != nil {
		t.Errorf("AcquireFull of remaining unit: unexpected error: %v", err)
	}
	s.ReleaseEmpty()
	if err := s.AcquireFull(context.Background()); !errors.Is(err, ErrDone) {
		t.Errorf("AcquireFull after drain: got %v, want %v", err, ErrDone)
	}

	// A blocked producer is woken by the consumer side closing.
	for s.TryAcquireEmpty() {
	}
	done := make(chan error, 1)
	go func() { done <- s.AcquireEmpty(context.Background()) }()
	time.Sleep(20 * time.Millisecond) // let the producer reach its wait
	s.CloseRecv()
	if err := <-done; !errors.Is(err, ErrGone) {
		t.Errorf("AcquireEmpty after CloseRecv: got %v, want %v", err, ErrGone)
	}
}
