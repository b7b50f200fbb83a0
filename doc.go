/*
Package sluice implements bounded, synchronized message channels between
execution contexts on one machine: goroutines in a single process, or
separate processes sharing a kernel namespace.

A channel carries discrete byte messages through one of several transports
(an in-process typed queue, a shared-memory ring, a named pipe, or a stream
socket), and bounds the number of unconsumed messages with a pair of
counting synchronizers. Every transfer is bracketed: a send claims an empty
slot, stages the message, and publishes a full slot; a receive claims a full
slot, takes the message, and returns an empty one. The bracket is also the
ordering boundary, so a received message always observes the complete write
that produced it.

Opening a channel

A channel endpoint is opened by a URL-shaped identity whose scheme selects
the transport, together with a role fixing its direction:

   ch, err := sluice.Open("queue://orders", sluice.Producer, &sluice.Options{
      Create:   true,
      Capacity: 4,
   })
   ...
   defer ch.Close()

An identity with no scheme names a typed queue, so "orders" and
"queue://orders" open the same object. The endpoint that creates a named
object owns it: closing the owner destroys the name. Other endpoints open
the existing object and inherit the capacity and message size bound its
creator fixed.

Sending and receiving

Send and Receive move whole messages and block while the channel is full or
empty, bounded by a context:

   err := ch.Send(ctx, sluice.Message{Data: []byte("job 1")})
   ...
   msg, err := rc.Receive(ctx)

Opening with Options.NonBlocking makes both report kind.WouldBlock instead
of waiting, on the backends that keep slot accounts (queues, rings, and
in-process pipes). Failures carry a kind.Kind classifying what went wrong;
the kind package enumerates them, and errors.Is/errors.As reach the
underlying cause. When the producer side has closed and nothing remains,
Receive reports kind.EndOfStream; when the consumer side is gone, Send
reports kind.PeerClosed.

Typed queues additionally tag each message with a positive type, and
ReceiveMatch takes the oldest message selected by a filter rather than
strictly the head of the queue:

   msg, err := rc.ReceiveMatch(ctx, 3)   // the oldest message of type 3
   msg, err := rc.ReceiveMatch(ctx, -2)  // the oldest of the lowest type <= 2

Pipes

For the degenerate in-process case, Pipe returns a connected pair of
endpoints without naming any object:

   pc, cc := sluice.Pipe(nil)

Messages sent on pc arrive on cc in order. This is mainly useful for tests
and for wiring stages of a pipeline within one process.

Readiness

A consumer serving several channels can wait for whichever becomes ready
instead of dedicating a goroutine to each. The ready package provides
waiters that multiplex the readiness of channel endpoints:

   w := ready.NewList()
   w.Register(ch1, ready.Read)
   w.Register(ch2, ready.Read)
   evs, err := w.Wait(ctx)  // blocks until at least one channel is ready

See the ready package for the available waiter strategies and their costs.
*/
package sluice
