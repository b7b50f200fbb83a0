// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build !unix

package transport

// OpenFIFO is not supported on this platform.
func OpenFIFO(path string, write bool, cfg Config) (*Endpoint, error) {
	return nil, ErrUnsupported
}
