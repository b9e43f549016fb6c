// Package eventq holds the two per-connection event buffers shared between a
// connection's network goroutines and the rest of the process.
//
// An [Inbox] is an unordered bag of received events. Consumers pull
// correlated replies out of it with [Inbox.WaitFor] or [Inbox.Take], or take
// everything with [Inbox.Drain].
//
// An [Outbox] is a strict FIFO of events waiting to be written. [Outbox.Send]
// only appends under the queue lock; [Outbox.Flush] drains the queue into a
// single buffered write under a separate send lock, so a slow peer never
// blocks producers and queued bursts leave as one write.
package eventq
