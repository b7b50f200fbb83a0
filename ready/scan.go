// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package ready

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrTableFull is reported by Register on a Scan waiter whose table has no
// free entry.
var ErrTableFull = errors.New("waiter table is full")

// A Scan is a Waiter over a bounded table of sources. Register claims the
// lowest free table index and Unregister leaves a hole for reuse, so the
// occupied portion of the table stays as short as the registration pattern
// allows. Each wait re-examines every entry up to the highest occupied
// index and rebuilds its wakeup set from scratch, whether or not anything
// is ready; that full re-scan is the cost of the fixed-table design.
type Scan struct {
	mu     sync.Mutex
	slots  []scanSlot
	high   int // number of entries in use through the highest occupied index
	closed bool
	done   chan struct{}
}

type scanSlot struct {
	src Source // nil when the entry is free
	in  Interest
}

var _ Waiter = (*Scan)(nil)

// NewScan constructs a Scan waiter with a table of limit entries. It panics
// if limit < 1.
func NewScan(limit int) *Scan {
	if limit < 1 {
		panic(fmt.Sprintf("invalid table limit %d", limit))
	}
	return &Scan{slots: make([]scanSlot, limit), done: make(chan struct{})}
}

// Register implements part of the Waiter interface. It reports ErrTableFull
// when all limit entries are in use.
func (s *Scan) Register(src Source, in Interest) error {
	if err := checkSource(src, in); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	free := -1
	for i := range s.slots {
		if s.slots[i].src == src {
			s.slots[i].in = in
			return nil
		}
		if s.slots[i].src == nil && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return ErrTableFull
	}
	s.slots[free] = scanSlot{src: src, in: in}
	if free+1 > s.high {
		s.high = free + 1
	}
	return nil
}

// Unregister implements part of the Waiter interface.
func (s *Scan) Unregister(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots[:s.high] {
		if s.slots[i].src == src {
			s.slots[i] = scanSlot{}
			break
		}
	}
	for s.high > 0 && s.slots[s.high-1].src == nil {
		s.high--
	}
}

// Poll implements part of the Waiter interface.
func (s *Scan) Poll() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan()
}

// scan collects events for every occupied entry that is ready. The caller
// must hold s.mu.
func (s *Scan) scan() []Event {
	var evs []Event
	for _, slot := range s.slots[:s.high] {
		if slot.src == nil {
			continue
		}
		if r := readiness(slot.src, slot.in); r != 0 {
			evs = append(evs, Event{Source: slot.src, Ready: r})
		}
	}
	return evs
}

// Wait implements part of the Waiter interface. Sources registered while a
// wait is blocked are picked up on its next pass over the table.
func (s *Scan) Wait(ctx context.Context) ([]Event, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		if evs := s.scan(); len(evs) != 0 {
			s.mu.Unlock()
			return evs, nil
		}

		// Nothing ready: rebuild the wakeup set from the live table and
		// sleep on it. A wakeup only means some entry may have changed; the
		// next pass re-checks them all.
		cases := []reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.done)},
		}
		for _, slot := range s.slots[:s.high] {
			if slot.src == nil {
				continue
			}
			if slot.in&Read != 0 {
				cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(slot.src.Readable())})
			}
			if slot.in&Write != 0 {
				cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(slot.src.Writable())})
			}
		}
		s.mu.Unlock()

		switch chosen, _, _ := reflect.Select(cases); chosen {
		case 0:
			return nil, ctx.Err()
		case 1:
			return nil, ErrClosed
		}
	}
}

// Close implements part of the Waiter interface.
func (s *Scan) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}
