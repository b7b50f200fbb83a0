// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package testutil_test

import (
	"context"
	"testing"

	"github.com/creachadair/sluice"
	"github.com/creachadair/sluice/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

func TestSendDrain(t *testing.T) {
	ctx := context.Background()
	pc, cc := sluice.Pipe(&sluice.Options{Capacity: 4})

	want := []string{"alpha", "bravo", "charlie"}
	if err := testutil.SendAll(ctx, pc, want...); err != nil {
		t.Fatalf("SendAll: unexpected error: %v", err)
	}
	pc.Close()

	got, err := testutil.DrainAll(ctx, cc)
	if err != nil {
		t.Fatalf("DrainAll: unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Drained messages (-got, +want):\n%s", diff)
	}
	cc.Close()
}

func TestMustOpenPair(t *testing.T) {
	ctx := context.Background()
	pc, cc := testutil.MustOpenPair(t, "queue://testutil-pair", &sluice.Options{Capacity: 2})

	if err := testutil.SendAll(ctx, pc, "x"); err != nil {
		t.Fatalf("SendAll: unexpected error: %v", err)
	}
	msg, err := cc.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: unexpected error: %v", err)
	}
	if got, want := string(msg.Data), "x"; got != want {
		t.Errorf("Receive: got %q, want %q", got, want)
	}
}

func TestIsClosed(t *testing.T) {
	pc, cc := sluice.Pipe(nil)
	cc.Close()
	pc.Close()
	if err := pc.Send(context.Background(), sluice.Message{Data: []byte("no")}); !testutil.IsClosed(err) {
		t.Errorf("Send on closed channel: got %v, want %v", err, sluice.ErrChannelClosed)
	}
}
