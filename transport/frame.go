// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxFrame bounds the length a stream transport will accept for a single
// record, protecting the reader from a corrupted or hostile length prefix.
const maxFrame = 1 << 24

// NewStream constructs a Transport that frames records on a byte stream:
// each record is transmitted as a 4-byte big-endian length followed by that
// many payload bytes. Record types are not carried; received records have
// type zero.
func NewStream(r io.Reader, wc io.WriteCloser) Transport {
	return &stream{wc: wc, cl: wc, rd: bufio.NewReader(r), buf: bytes.NewBuffer(nil)}
}

// NewReadStream constructs a receive-only stream Transport. Close closes rc.
func NewReadStream(rc io.ReadCloser) Transport {
	return &stream{cl: rc, rd: bufio.NewReader(rc), buf: bytes.NewBuffer(nil)}
}

// NewWriteStream constructs a send-only stream Transport. Close closes wc.
func NewWriteStream(wc io.WriteCloser) Transport {
	return &stream{wc: wc, cl: wc, buf: bytes.NewBuffer(nil)}
}

// A stream implements Transport over a byte stream with length-prefix
// framing.
type stream struct {
	wc  io.WriteCloser // nil for a receive-only stream
	rd  *bufio.Reader  // nil for a send-only stream
	cl  io.Closer
	buf *bytes.Buffer
}

// Send implements part of the Transport interface. The length prefix and
// payload are staged into a single write, so a frame is never interleaved
// with another on the same stream.
func (s *stream) Send(rec Record) error {
	if s.wc == nil {
		return errors.New("stream is not writable")
	} else if len(rec.Data) > maxFrame {
		return ErrTooLarge
	}
	var ln [4]byte
	binary.BigEndian.PutUint32(ln[:], uint32(len(rec.Data)))
	s.buf.Reset()
	s.buf.Write(ln[:])
	s.buf.Write(rec.Data)
	_, err := s.wc.Write(s.buf.Next(s.buf.Len()))
	return err
}

// Recv implements part of the Transport interface. A clean end of stream
// before any prefix bytes reports io.EOF; an end of stream inside a frame
// reports io.ErrUnexpectedEOF.
func (s *stream) Recv() (Record, error) {
	if s.rd == nil {
		return Record{}, errors.New("stream is not readable")
	}
	var ln [4]byte
	if _, err := io.ReadFull(s.rd, ln[:]); err != nil {
		return Record{}, err
	}
	size := binary.BigEndian.Uint32(ln[:])
	if size > maxFrame {
		return Record{}, fmt.Errorf("invalid frame length %d", size)
	}

	// ReadFull is required here because the buffered reader may not be able
	// to deliver the whole payload in a single read from the source.
	data := make([]byte, int(size))
	if _, err := io.ReadFull(s.rd, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, err
	}
	return Record{Data: data}, nil
}

// Close implements part of the Transport interface.
func (s *stream) Close() error { return s.cl.Close() }
