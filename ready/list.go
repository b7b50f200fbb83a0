// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package ready

import (
	"context"
	"reflect"
	"sync"
)

// A List is a Waiter over a flat list of interest records, one per
// registered source, each carrying the readiness observed for it by the
// most recent poll. The wakeup set is maintained as registrations change
// and is only copied, not rebuilt, for each wait; the wait itself
// re-examines every record, so its cost grows with the number of
// registrations rather than with a table bound.
type List struct {
	mu     sync.Mutex
	recs   []*listRec
	cases  []reflect.SelectCase // [0] close, [1] context, [2:] registrations
	closed bool
	done   chan struct{}
}

// A listRec pairs a source's registered interest with the readiness found
// by the last scan that examined it.
type listRec struct {
	src   Source
	in    Interest
	ready Interest
}

var _ Waiter = (*List)(nil)

// NewList constructs an empty List waiter.
func NewList() *List {
	l := &List{done: make(chan struct{})}
	l.cases = []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(l.done)},
		{Dir: reflect.SelectRecv}, // context slot, filled in per wait
	}
	return l
}

// Register implements part of the Waiter interface.
func (l *List) Register(src Source, in Interest) error {
	if err := checkSource(src, in); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	for _, r := range l.recs {
		if r.src == src {
			r.in = in
			l.rebuild()
			return nil
		}
	}
	r := &listRec{src: src, in: in}
	l.recs = append(l.recs, r)
	l.addCases(r)
	return nil
}

// Unregister implements part of the Waiter interface.
func (l *List) Unregister(src Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.recs {
		if r.src == src {
			l.recs = append(l.recs[:i], l.recs[i+1:]...)
			l.rebuild()
			return
		}
	}
}

// addCases appends the wakeup cases for r. The caller must hold l.mu.
func (l *List) addCases(r *listRec) {
	if r.in&Read != 0 {
		l.cases = append(l.cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(r.src.Readable())})
	}
	if r.in&Write != 0 {
		l.cases = append(l.cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(r.src.Writable())})
	}
}

// rebuild reconstructs the wakeup cases from the records, after a removal
// or an interest change. The caller must hold l.mu.
func (l *List) rebuild() {
	l.cases = l.cases[:2]
	for _, r := range l.recs {
		l.addCases(r)
	}
}

// collect refreshes the readiness mark of every record and returns events
// for those that are ready. The caller must hold l.mu.
func (l *List) collect() []Event {
	var evs []Event
	for _, r := range l.recs {
		r.ready = readiness(r.src, r.in)
		if r.ready != 0 {
			evs = append(evs, Event{Source: r.src, Ready: r.ready})
		}
	}
	return evs
}

// Poll implements part of the Waiter interface.
func (l *List) Poll() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collect()
}

// Wait implements part of the Waiter interface. Sources registered while a
// wait is blocked are picked up on its next pass over the records.
func (l *List) Wait(ctx context.Context) ([]Event, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, ErrClosed
		}
		if evs := l.collect(); len(evs) != 0 {
			l.mu.Unlock()
			return evs, nil
		}
		cases := make([]reflect.SelectCase, len(l.cases))
		copy(cases, l.cases)
		l.mu.Unlock()

		cases[1].Chan = reflect.ValueOf(ctx.Done())
		switch chosen, _, _ := reflect.Select(cases); chosen {
		case 0:
			return nil, ErrClosed
		case 1:
			return nil, ctx.Err()
		}
	}
}

// Close implements part of the Waiter interface.
func (l *List) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
	return nil
}
