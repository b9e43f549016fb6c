package eventq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/protocol"
)

// ErrClosed is returned by WaitFor once the inbox is closed and no buffered
// event matches.
var ErrClosed = errors.New("eventq: inbox closed")

// Predicate selects events from an Inbox
type Predicate func(protocol.Event) bool

// Inbox is a mutex-guarded bag of received events. The zero value is ready
// to use.
type Inbox struct {
	mu     sync.Mutex
	events []protocol.Event
	closed bool
	err    error
}

// Put appends events. Events put after Close are dropped.
func (b *Inbox) Put(events ...protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.events = append(b.events, events...)
}

// Take removes and returns the first buffered event matching pred.
func (b *Inbox) Take(pred Predicate) (protocol.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.events {
		if pred(e) {
			b.events = append(b.events[:i], b.events[i+1:]...)
			return e, true
		}
	}
	return nil, false
}

// Drain removes and returns every buffered event in arrival order
func (b *Inbox) Drain() []protocol.Event {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()
	return events
}

// Len reports the number of buffered events
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Close marks the inbox as finished. Buffered events stay takeable; err is
// what the receive loop ended with and may be nil.
func (b *Inbox) Close(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.err = err
}

// Closed reports whether Close was called and the error passed to it
func (b *Inbox) Closed() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed, b.err
}

// WaitFor polls until an event matching pred arrives, the inbox closes, or ctx
// is done. A poll interval <= 0 uses consts.WaitPollInterval.
//
// When the inbox is closed with a receive error, that error is returned
// wrapped in ErrClosed.
func (b *Inbox) WaitFor(ctx context.Context, pred Predicate, poll time.Duration) (protocol.Event, error) {
	if poll <= 0 {
		poll = consts.WaitPollInterval
	}

	var ticker *time.Ticker
	for {
		if e, ok := b.Take(pred); ok {
			return e, nil
		}
		if closed, err := b.Closed(); closed {
			if err != nil {
				return nil, errors.Join(ErrClosed, err)
			}
			return nil, ErrClosed
		}

		if ticker == nil {
			ticker = time.NewTicker(poll)
			defer ticker.Stop()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ForOperation matches events carrying op as correlation id whose tag is one
// of cmds. An empty cmds matches any tag.
func ForOperation(op uuid.UUID, cmds ...protocol.Command) Predicate {
	return func(e protocol.Event) bool {
		id, ok := protocol.OperationOf(e)
		if !ok || id != op {
			return false
		}
		if len(cmds) == 0 {
			return true
		}
		for _, c := range cmds {
			if e.Command() == c {
				return true
			}
		}
		return false
	}
}

// OfCommand matches events with one of the given tags
func OfCommand(cmds ...protocol.Command) Predicate {
	return func(e protocol.Event) bool {
		for _, c := range cmds {
			if e.Command() == c {
				return true
			}
		}
		return false
	}
}
