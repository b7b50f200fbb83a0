// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build linux && (amd64 || arm64)

package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/creachadair/sluice/slot"
	"golang.org/x/sys/unix"
)

// Attachers wait up to attachWait for the creator to finish formatting the
// region, polling at attachPoll.
const (
	attachWait = 250 * time.Millisecond
	attachPoll = 5 * time.Millisecond
)

// shmDir returns the directory where shared ring files are placed,
// preferring /dev/shm when it is available.
func shmDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// shmPath returns the backing file path for the shared ring named name.
func shmPath(name string) string {
	return filepath.Join(shmDir(), "sluice-"+name+".ring")
}

// OpenSharedRing opens the producer (write) or consumer endpoint of the
// shared ring whose backing file is derived from name, creating and
// formatting the file if cfg.Create is set and none exists. The region is
// mapped shared, so the endpoints may be in different processes; blocked
// endpoints wait on futexes over counter words in the ring header.
//
// Each side of a ring admits one endpoint at a time across every process
// mapping it; a second open of the same side fails. An endpoint that exits
// without closing leaves its side claimed until the ring is destroyed.
//
// The creator fixes the ring geometry; an endpoint attaching to an existing
// ring inherits the geometry recorded in its header and ignores the sizes
// in cfg.
func OpenSharedRing(name string, write bool, cfg Config) (*Endpoint, error) {
	path := shmPath(name)

	var f *os.File
	var created bool
	if cfg.Create {
		var err error
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			created = true
		} else if cfg.Exclusive || !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}
	if f == nil {
		var err error
		f, err = os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
	}
	defer f.Close()

	// A region the creator cannot finish formatting would poison the name
	// for every later open, so unlink it on any failure below.
	ok := false
	defer func() {
		if created && !ok {
			os.Remove(path)
		}
	}()

	var size int
	if created {
		size = RingSize(cfg.SlotSize, cfg.Capacity)
		if err := f.Truncate(int64(size)); err != nil {
			return nil, fmt.Errorf("size shared ring: %w", err)
		}
	} else {
		// The creator grows the file to its final size in a single
		// truncate, so any nonzero size is the whole region.
		var err error
		size, err = waitFileSize(f)
		if err != nil {
			return nil, err
		}
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map shared ring: %w", err)
	}

	var ring *Ring
	if created {
		ring = NewRing(mem, cfg.SlotSize, cfg.Capacity)
	} else if ring, err = waitAttach(mem); err != nil {
		unix.Munmap(mem)
		return nil, err
	}
	if err := ring.Claim(write); err != nil {
		unix.Munmap(mem)
		return nil, err
	}

	empty, full, flags := ring.Words()
	ok = true
	return &Endpoint{
		Transport: shmEndpoint{ring: ring, mem: mem, path: path, write: write},
		Sync:      slot.NewShared(empty, full, flags),
		Creator:   created,
		Signal:    true,
		Capacity:  ring.SlotCount(),
		SlotSize:  ring.SlotSize(),
	}, nil
}

// waitFileSize polls f until it has a nonzero size, so an attacher racing
// the creator's truncate does not map an empty file.
func waitFileSize(f *os.File) (int, error) {
	deadline := time.Now().Add(attachWait)
	for {
		fi, err := f.Stat()
		if err != nil {
			return 0, err
		}
		if n := int(fi.Size()); n >= headerSize {
			return n, nil
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("shared ring %s: region never sized", f.Name())
		}
		time.Sleep(attachPoll)
	}
}

// waitAttach polls the region header until the creator publishes the magic,
// then validates and binds it.
func waitAttach(mem []byte) (*Ring, error) {
	deadline := time.Now().Add(attachWait)
	for {
		ring, err := AttachRing(mem)
		if err == nil {
			return ring, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(attachPoll)
	}
}

// A shmEndpoint is one process's mapping of a shared ring.
type shmEndpoint struct {
	ring  *Ring
	mem   []byte
	path  string
	write bool
}

// Send implements part of the Transport interface.
func (e shmEndpoint) Send(rec Record) error { return e.ring.Send(rec) }

// Recv implements part of the Transport interface.
func (e shmEndpoint) Recv() (Record, error) { return e.ring.Recv() }

// SlotSize reports the maximum payload bytes per record.
func (e shmEndpoint) SlotSize() int { return e.ring.SlotSize() }

// Close implements part of the Transport interface. The endpoint's side of
// the ring is released and this process's mapping dropped; other endpoints
// keep theirs.
func (e shmEndpoint) Close() error {
	e.ring.Release(e.write)
	return unix.Munmap(e.mem)
}

// Destroy implements the Destroyer interface. The backing file is
// unlinked; existing mappings survive until their endpoints close.
func (e shmEndpoint) Destroy() error {
	if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
