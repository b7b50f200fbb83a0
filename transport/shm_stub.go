// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build !linux || !(amd64 || arm64)

package transport

// OpenSharedRing is not supported on this platform: it depends on futex
// wakeups between processes sharing a mapped region.
func OpenSharedRing(name string, write bool, cfg Config) (*Endpoint, error) {
	return nil, ErrUnsupported
}
