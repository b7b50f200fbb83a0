// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package transport

import (
	"fmt"
	"net"
)

// OpenSocket establishes one end of a connection-oriented stream conduit on
// the given network ("tcp" or "unix") and address. A passive endpoint binds
// the address, accepts exactly one peer, and stops listening; an active
// endpoint connects to an already-bound address. Records are framed with a
// length prefix in both directions (see NewStream), and flow control is the
// connection's own buffering, so the endpoint carries no synchronizer.
//
// A passive open blocks until a peer connects. Binding an address already in
// use fails rather than retrying.
func OpenSocket(network, address string, passive bool, cfg Config) (*Endpoint, error) {
	var conn net.Conn
	if passive {
		ln, err := cfg.listen()(network, address)
		if err != nil {
			return nil, fmt.Errorf("bind %s address %s: %w", network, address, err)
		}
		conn, err = ln.Accept()
		ln.Close()
		if err != nil {
			return nil, fmt.Errorf("accept peer on %s: %w", address, err)
		}
	} else {
		var err error
		conn, err = cfg.dial()(network, address)
		if err != nil {
			return nil, fmt.Errorf("connect %s address %s: %w", network, address, err)
		}
	}
	return &Endpoint{
		Transport: socketEndpoint{stream: NewStream(conn, conn), conn: conn},
		Creator:   passive, // the binding side owns the identity
	}, nil
}

// A socketEndpoint is one end of a connected stream socket with length
// framing in both directions.
type socketEndpoint struct {
	stream Transport
	conn   net.Conn
}

// Send implements part of the Transport interface.
func (e socketEndpoint) Send(rec Record) error { return e.stream.Send(rec) }

// Recv implements part of the Transport interface.
func (e socketEndpoint) Recv() (Record, error) { return e.stream.Recv() }

// Close implements part of the Transport interface. Closing the connection
// delivers end of stream to the peer.
func (e socketEndpoint) Close() error { return e.conn.Close() }
