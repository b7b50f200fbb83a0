// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build linux && (amd64 || arm64)

package transport

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestSharedRing(t *testing.T) {
	const name = "shm-test"
	t.Cleanup(func() { os.Remove(shmPath(name)) })

	if _, err := OpenSharedRing(name, false, Config{}); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("OpenSharedRing without create: got %v, want %v", err, fs.ErrNotExist)
	}

	p, err := OpenSharedRing(name, true, Config{Capacity: 2, SlotSize: 32, Create: true})
	if err != nil {
		t.Fatalf("OpenSharedRing(create): unexpected error: %v", err)
	}
	if !p.Creator {
		t.Error("creating open: got Creator=false, want true")
	}

	// The attacher inherits the creator's geometry regardless of its own
	// config values.
	c, err := OpenSharedRing(name, false, Config{Capacity: 99, SlotSize: 7})
	if err != nil {
		t.Fatalf("OpenSharedRing(attach): unexpected error: %v", err)
	}
	if c.Creator {
		t.Error("attaching open: got Creator=true, want false")
	}
	if c.Capacity != 2 || c.SlotSize != 32 {
		t.Errorf("attached geometry: got %d/%d, want 2/32", c.Capacity, c.SlotSize)
	}

	// Both endpoints map the same region; transfers cross the mapping under
	// the futex-backed bracket. The counter words live in the region, so
	// either endpoint's Sync observes the other's operations.
	ctx := context.Background()
	msgs := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	g := new(errgroup.Group)
	g.Go(func() error {
		for _, m := range msgs {
			if err := p.Sync.AcquireEmpty(ctx); err != nil {
				return err
			}
			if err := p.Transport.Send(Record{Data: []byte(m)}); err != nil {
				return err
			}
			p.Sync.ReleaseFull()
		}
		return nil
	})
	got := make([]string, 0, len(msgs))
	g.Go(func() error {
		for range msgs {
			if err := c.Sync.AcquireFull(ctx); err != nil {
				return err
			}
			rec, err := c.Transport.Recv()
			if err != nil {
				return err
			}
			c.Sync.ReleaseEmpty()
			got = append(got, string(rec.Data))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("Transfer: unexpected error: %v", err)
	}
	for i, want := range msgs {
		if got[i] != want {
			t.Errorf("Record %d: got %q, want %q", i, got[i], want)
		}
	}

	// An exclusive create of the live file reports exist.
	if _, err := OpenSharedRing(name, true, Config{Capacity: 1, SlotSize: 8, Create: true, Exclusive: true}); !errors.Is(err, fs.ErrExist) {
		t.Errorf("exclusive create: got %v, want %v", err, fs.ErrExist)
	}

	// Destroy unlinks the backing file; the mappings survive until closed.
	if err := p.Transport.(Destroyer).Destroy(); err != nil {
		t.Fatalf("Destroy: unexpected error: %v", err)
	}
	if _, err := os.Stat(shmPath(name)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat after destroy: got %v, want %v", err, fs.ErrNotExist)
	}
	c.Transport.Close()
	p.Transport.Close()
}

// TestSharedRingSides verifies that the header attach words admit one
// endpoint per side of a shared ring at a time, and that closing an
// endpoint frees its side for reuse.
func TestSharedRingSides(t *testing.T) {
	const name = "shm-sides"
	t.Cleanup(func() { os.Remove(shmPath(name)) })

	p, err := OpenSharedRing(name, true, Config{Capacity: 1, SlotSize: 16, Create: true})
	if err != nil {
		t.Fatalf("OpenSharedRing(create): unexpected error: %v", err)
	}

	if _, err := OpenSharedRing(name, true, Config{}); !errors.Is(err, fs.ErrExist) {
		t.Errorf("second producer: got %v, want %v", err, fs.ErrExist)
	}

	// A failed attach must not disturb the region: the consumer side still
	// opens, and is gated the same way.
	c, err := OpenSharedRing(name, false, Config{})
	if err != nil {
		t.Fatalf("OpenSharedRing(consumer): unexpected error: %v", err)
	}
	if _, err := OpenSharedRing(name, false, Config{}); !errors.Is(err, fs.ErrExist) {
		t.Errorf("second consumer: got %v, want %v", err, fs.ErrExist)
	}

	// Closing an endpoint releases its side for a fresh open.
	p.Transport.Close()
	p2, err := OpenSharedRing(name, true, Config{})
	if err != nil {
		t.Fatalf("OpenSharedRing(reopen producer): unexpected error: %v", err)
	}
	p2.Transport.Close()
	c.Transport.Close()
}
