// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package transport

import (
	"io/fs"
	"sync"
)

// A registry maps names to reference-counted objects shared by every
// endpoint in the process that opens the same name. Removing a name only
// unlinks it: endpoints already holding the object keep using it until they
// close, the way an unlinked file outlives its directory entry.
type registry[T any] struct {
	mu sync.Mutex
	m  map[string]*entry[T]
}

type entry[T any] struct {
	obj  T
	refs int
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{m: make(map[string]*entry[T])}
}

// open returns the object registered under name, constructing it with make
// if create is set and the name is unbound. It reports fs.ErrNotExist if
// the name is unbound and create is false, and fs.ErrExist if the name is
// bound and both create and exclusive are set.
func (r *registry[T]) open(name string, create, exclusive bool, make func() (T, error)) (obj T, created bool, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.m[name]; ok {
		if create && exclusive {
			return obj, false, fs.ErrExist
		}
		e.refs++
		return e.obj, false, nil
	}
	if !create {
		return obj, false, fs.ErrNotExist
	}
	obj, err := make()
	if err != nil {
		var zero T
		return zero, false, err
	}
	r.m[name] = &entry[T]{obj: obj, refs: 1}
	return obj, true, nil
}

// release drops one reference to name. It is a no-op if the name has
// already been removed.
func (r *registry[T]) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.m[name]; ok && e.refs > 0 {
		e.refs--
	}
}

// remove unlinks name and returns its object, if the name was bound.
func (r *registry[T]) remove(name string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.m[name]; ok {
		delete(r.m, name)
		return e.obj, true
	}
	var zero T
	return zero, false
}

// refs reports the number of live references to name, or 0 if the name is
// unbound.
func (r *registry[T]) refs(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.m[name]; ok {
		return e.refs
	}
	return 0
}
