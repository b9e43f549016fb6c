package eventq

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/protocol"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Outbox queues outbound events and writes them in enqueue order.
type Outbox struct {
	queueMu sync.Mutex
	queue   []protocol.Event

	sendMu   sync.Mutex
	bw       *bufio.Writer
	scratch  bytes.Buffer
	deadline writeDeadliner
	timeout  time.Duration

	signal chan struct{}
}

// OutboxOption configures an Outbox
type OutboxOption func(*Outbox)

// WithWriteTimeout sets a write deadline of d on conn before every flush
func WithWriteTimeout(conn writeDeadliner, d time.Duration) OutboxOption {
	return func(o *Outbox) {
		o.deadline = conn
		o.timeout = d
	}
}

// NewOutbox creates an outbox writing to w
func NewOutbox(w io.Writer, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		bw:     bufio.NewWriterSize(w, consts.WriteBufferSize),
		signal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Send enqueues events and wakes the writer. It never blocks on the network.
func (o *Outbox) Send(events ...protocol.Event) {
	if len(events) == 0 {
		return
	}
	o.queueMu.Lock()
	o.queue = append(o.queue, events...)
	o.queueMu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

// Pending reports the number of queued, unwritten events
func (o *Outbox) Pending() int {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	return len(o.queue)
}

// Flush writes every queued event with a single buffered write. Concurrent
// flushes are serialized; events are never interleaved. An event that fails
// to encode is logged and skipped.
func (o *Outbox) Flush() error {
	o.sendMu.Lock()
	defer o.sendMu.Unlock()

	o.queueMu.Lock()
	batch := o.queue
	o.queue = nil
	o.queueMu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if o.deadline != nil && o.timeout > 0 {
		if err := o.deadline.SetWriteDeadline(time.Now().Add(o.timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	for _, e := range batch {
		// an event that cannot be encoded must not leave a partial message
		o.scratch.Reset()
		if err := protocol.Encode(&o.scratch, e); err != nil {
			logger.Warn("outbox: dropping %s: %v", e.Command(), err)
			continue
		}
		if _, err := o.bw.Write(o.scratch.Bytes()); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Command(), err)
		}
	}
	if err := o.bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush %d events: %w", len(batch), err)
	}
	return nil
}

// Run is the writer loop. It flushes whenever Send signals and returns when
// ctx is done or a flush fails.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.signal:
			if err := o.Flush(); err != nil {
				return err
			}
		}
	}
}
