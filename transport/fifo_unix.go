// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build unix

package transport

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// OpenFIFO opens one end of the named pipe at path, creating the pipe node
// if cfg.Create is set and none exists. The conduit is a unidirectional byte
// stream: the producer end is opened write-only and the consumer end
// read-only, and records are framed with a length prefix (see NewStream).
//
// Opening blocks until the other end of the pipe has also been opened; that
// is the mechanism's own rendezvous, not a property of this package. Flow
// control is the kernel's pipe buffer, so the endpoint carries no
// synchronizer.
func OpenFIFO(path string, write bool, cfg Config) (*Endpoint, error) {
	var created bool
	if cfg.Create {
		if err := unix.Mkfifo(path, 0o600); err == nil {
			created = true
		} else if cfg.Exclusive || !errors.Is(err, fs.ErrExist) {
			return nil, &fs.PathError{Op: "mkfifo", Path: path, Err: err}
		}
	}

	mode := os.O_RDONLY
	if write {
		mode = os.O_WRONLY
	}
	f, err := os.OpenFile(path, mode, 0)
	if err != nil {
		if created {
			os.Remove(path)
		}
		return nil, err
	}

	var tr Transport
	if write {
		tr = NewWriteStream(f)
	} else {
		tr = NewReadStream(f)
	}
	return &Endpoint{
		Transport: fifoEndpoint{Transport: tr, path: path},
		Creator:   created,
	}, nil
}

// A fifoEndpoint is one end of a named pipe, a framed stream that also knows
// the filesystem name to unlink on Destroy.
type fifoEndpoint struct {
	Transport
	path string
}

// Destroy implements the Destroyer interface. The pipe node is unlinked;
// endpoints already attached keep their stream until they close.
func (e fifoEndpoint) Destroy() error {
	if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
