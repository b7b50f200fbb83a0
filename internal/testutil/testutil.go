// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package testutil defines internal support code for writing tests.
package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/creachadair/sluice"
	"github.com/creachadair/sluice/kind"
)

// SendAll delivers each msg on ch in order, stopping at the first error.
func SendAll(ctx context.Context, ch *sluice.Channel, msgs ...string) error {
	for _, msg := range msgs {
		if err := ch.Send(ctx, sluice.Message{Data: []byte(msg)}); err != nil {
			return err
		}
	}
	return nil
}

// DrainAll receives from ch until the stream ends, and returns the payloads
// in arrival order. An error of kind.EndOfStream is the expected terminator
// and is not reported; any other receive failure is.
func DrainAll(ctx context.Context, ch *sluice.Channel) ([]string, error) {
	var msgs []string
	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			if kind.Is(err, kind.EndOfStream) {
				return msgs, nil
			}
			return msgs, err
		}
		msgs = append(msgs, string(msg.Data))
	}
}

// MustOpenPair opens the producer and consumer endpoints of the channel
// named id, creating it through the producer, and fails t if either open
// does. Both endpoints are closed, producer last, when the test finishes.
func MustOpenPair(t *testing.T, id string, opts *sluice.Options) (pc, cc *sluice.Channel) {
	t.Helper()

	popts := sluice.Options{Create: true}
	if opts != nil {
		popts = *opts
		popts.Create = true
	}
	pc, err := sluice.Open(id, sluice.Producer, &popts)
	if err != nil {
		t.Fatalf("Open %q producer: unexpected error: %v", id, err)
	}
	cc, err = sluice.Open(id, sluice.Consumer, opts)
	if err != nil {
		pc.Close()
		t.Fatalf("Open %q consumer: unexpected error: %v", id, err)
	}

	// The producer created the object, so it closes last: its close
	// destroys the name and discards anything staged.
	t.Cleanup(func() {
		cc.Close()
		pc.Close()
	})
	return pc, cc
}

// IsClosed reports whether err indicates an operation on a self-closed
// channel.
func IsClosed(err error) bool { return errors.Is(err, sluice.ErrChannelClosed) }
