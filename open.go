// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package sluice

import (
	"errors"
	"io/fs"
	"net/url"
	"syscall"

	"github.com/creachadair/sluice/kind"
	"github.com/creachadair/sluice/transport"
)

// Open opens one endpoint of the channel named by id, whose URL scheme
// selects the transport:
//
//	queue://name       typed in-process message queue
//	ring://name        in-process shared-memory ring
//	shm://name         cross-process shared-memory ring (Linux)
//	fifo:///path       named pipe on the filesystem (Unix)
//	tcp://host:port    stream socket
//	unix:///path       stream socket on a filesystem address
//
// An id with no scheme names a typed queue. Whether the named object must
// already exist is governed by opts: with Options.Create the object is
// created if missing, and with Options.Exclusive the open fails if it is
// not. Opening an endpoint of either role against a missing object without
// Create fails with kind.NotFound.
//
// The role fixes the legal transfer direction for the endpoint's lifetime.
// Duplex endpoints are supported only by the socket transports, which are
// inherently bidirectional: a Duplex endpoint connects outward unless
// Options.Passive is set. A socket Producer always connects and a socket
// Consumer always binds and accepts one peer; the accepting open blocks
// until its peer arrives.
//
// Open either returns a working channel or fails without residue: a
// half-constructed endpoint is torn down before the error is returned. A
// nil opts provides defaults (capacity 1, 4096-byte messages, blocking).
func Open(id string, role Role, opts *Options) (*Channel, error) {
	switch role {
	case Producer, Consumer, Duplex:
	default:
		return nil, Errorf(kind.PermissionDenied, "invalid role %v", role)
	}
	if opts != nil && opts.Capacity < 0 {
		return nil, Errorf(kind.InvalidCapacity, "invalid capacity %d", opts.Capacity)
	}
	if opts != nil && opts.MaxMessageSize < 0 {
		return nil, Errorf(kind.InvalidCapacity, "invalid message size limit %d", opts.MaxMessageSize)
	}
	u, err := url.Parse(id)
	if err != nil {
		return nil, Errorf(kind.NotFound, "invalid channel id: %v", err)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "queue"
	}
	if role == Duplex && scheme != "tcp" && scheme != "unix" {
		return nil, Errorf(kind.PermissionDenied, "duplex is not supported by %s channels", scheme)
	}

	cfg := transport.Config{
		Capacity:  opts.capacity(),
		SlotSize:  opts.maxMessageSize(),
		Create:    opts.create(),
		Exclusive: opts.exclusive(),
		Dial:      opts.netDial(),
		Listen:    opts.netListen(),
	}
	var ep *transport.Endpoint
	switch scheme {
	case "queue":
		name, err := objectName(u, id)
		if err != nil {
			return nil, err
		}
		ep, err = transport.OpenQueue(name, cfg)
		if err != nil {
			return nil, openError(id, err)
		}
	case "ring":
		name, err := objectName(u, id)
		if err != nil {
			return nil, err
		}
		ep, err = transport.OpenRing(name, role == Producer, cfg)
		if err != nil {
			return nil, openError(id, err)
		}
	case "shm":
		name, err := objectName(u, id)
		if err != nil {
			return nil, err
		}
		ep, err = transport.OpenSharedRing(name, role == Producer, cfg)
		if err != nil {
			return nil, openError(id, err)
		}
	case "fifo":
		path, err := objectName(u, id)
		if err != nil {
			return nil, err
		}
		ep, err = transport.OpenFIFO(path, role == Producer, cfg)
		if err != nil {
			return nil, openError(id, err)
		}
	case "tcp", "unix":
		addr := u.Host
		if scheme == "unix" {
			addr, err = objectName(u, id)
			if err != nil {
				return nil, err
			}
		}
		if addr == "" {
			return nil, Errorf(kind.NotFound, "channel id %q has no address", id)
		}
		passive := role == Consumer || (role == Duplex && opts.passive())
		ep, err = transport.OpenSocket(scheme, addr, passive, cfg)
		if err != nil {
			return nil, openError(id, err)
		}
	default:
		return nil, Errorf(kind.NotFound, "no transport for scheme %q", scheme)
	}

	c := newChannel(id, role, ep, opts)
	c.log("Channel %q open (%v, capacity %d)", id, role, c.capacity)
	return c, nil
}

// Pipe returns the two endpoints of an unnamed in-process channel with
// opts.Capacity slots: messages sent on producer are received on consumer.
// Both endpoints share one synchronizer, so closing the producer ends the
// consumer's stream and closing the consumer turns blocked sends away.
//
// Pipe panics if opts.Capacity is negative.
func Pipe(opts *Options) (producer, consumer *Channel) {
	pe, ce := transport.Pipe(transport.Config{Capacity: opts.capacity()})
	return newChannel("", Producer, pe, opts), newChannel("", Consumer, ce, opts)
}

// objectName extracts the transport object name from a channel identity URL.
func objectName(u *url.URL, id string) (string, error) {
	name := u.Opaque
	if name == "" {
		name = u.Host + u.Path
	}
	if name == "" {
		return "", Errorf(kind.NotFound, "channel id %q has no object name", id)
	}
	return name, nil
}

// openError classifies a transport construction failure into the error kinds
// reported by Open.
func openError(id string, err error) error {
	k := kind.IOError
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ECONNREFUSED):
		k = kind.NotFound
	case errors.Is(err, fs.ErrExist), errors.Is(err, syscall.EADDRINUSE):
		k = kind.AlreadyExists
	case errors.Is(err, fs.ErrPermission):
		k = kind.PermissionDenied
	case errors.Is(err, transport.ErrUnsupported):
		k = kind.SystemError
	}
	return Errorf(k, "open channel %q: %w", id, err)
}
