package socketclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/eventq"
	"github.com/codefionn/netshell/internal/lifecycle"
	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/protocol"
)

var (
	// ErrLoginFailed is returned when the server rejects a login
	ErrLoginFailed = errors.New("login failed")
	// ErrAccessDenied is returned when the server refuses a privileged request
	ErrAccessDenied = errors.New("access denied")
	// ErrDisconnected is returned once the server has closed the connection
	ErrDisconnected = errors.New("disconnected")
)

// Connection is the client side of a netshell session
type Connection struct {
	conn net.Conn
	r    *bufio.Reader
	out  *eventq.Outbox
	in   eventq.Inbox
	lc   lifecycle.Machine

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	reason string
}

// Dial connects to addr over TLS
func Dial(ctx context.Context, addr string, cfg *tls.Config) (*Connection, error) {
	d := &tls.Dialer{Config: cfg}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return New(conn), nil
}

// New starts a connection over an established stream
func New(conn net.Conn) *Connection {
	c := &Connection{
		conn: conn,
		r:    bufio.NewReaderSize(conn, consts.ReadBufferSize),
		out:  eventq.NewOutbox(conn, eventq.WithWriteTimeout(conn, consts.WriteTimeout)),
		done: make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.lc.Advance(lifecycle.NotStarted, lifecycle.Starting)

	go func() {
		if err := c.out.Run(c.ctx); err != nil && c.ctx.Err() == nil {
			logger.Warn("socketclient: writer stopped: %v", err)
		}
	}()
	go c.receiveLoop()
	return c
}

// State returns the lifecycle state
func (c *Connection) State() lifecycle.State { return c.lc.State() }

// DisconnectReason returns the reason the server gave for closing, if any
func (c *Connection) DisconnectReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Done is closed when the receive loop ends
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) receiveLoop() {
	defer close(c.done)
	for {
		e, err := protocol.Decode(c.r)
		if err != nil {
			if c.ctx.Err() != nil {
				err = nil
			}
			c.in.Close(err)
			return
		}
		if d, ok := e.(*protocol.ServerDisconnectEvent); ok {
			c.mu.Lock()
			c.reason = d.Reason
			c.mu.Unlock()
		}
		c.in.Put(e)
	}
}

// Send queues events for the writer
func (c *Connection) Send(events ...protocol.Event) {
	c.out.Send(events...)
}

// Flush writes every queued event now
func (c *Connection) Flush() error {
	return c.out.Flush()
}

// WaitFor blocks until a received event matches pred
func (c *Connection) WaitFor(ctx context.Context, pred eventq.Predicate) (protocol.Event, error) {
	e, err := c.in.WaitFor(ctx, pred, consts.WaitPollInterval)
	if errors.Is(err, eventq.ErrClosed) {
		return nil, errors.Join(ErrDisconnected, err)
	}
	return e, err
}

// Drain removes every buffered event
func (c *Connection) Drain() []protocol.Event {
	return c.in.Drain()
}

// Login authenticates. A non-nil token registers the account first.
func (c *Connection) Login(ctx context.Context, user, pass string, token *string) (*protocol.UserInfoEvent, error) {
	c.lc.Require("login", lifecycle.Starting, lifecycle.Starting)

	op := uuid.New()
	c.Send(&protocol.LoginEvent{Operation: op, User: user, Pass: pass, RegistrationToken: token})
	e, err := c.WaitFor(ctx, eventq.ForOperation(op, protocol.CommandUserInfo, protocol.CommandLoginFail))
	if err != nil {
		return nil, err
	}
	info, ok := e.(*protocol.UserInfoEvent)
	if !ok {
		return nil, ErrLoginFailed
	}
	c.lc.Advance(lifecycle.Starting, lifecycle.Active)
	return info, nil
}

// ForgeToken asks the server for a registration token
func (c *Connection) ForgeToken(ctx context.Context) (string, error) {
	op := uuid.New()
	c.Send(&protocol.RegistrationTokenForgeRequestEvent{Operation: op})
	e, err := c.WaitFor(ctx, eventq.ForOperation(op, protocol.CommandRegistrationTokenForged, protocol.CommandAccessFail))
	if err != nil {
		return "", err
	}
	res, ok := e.(*protocol.RegistrationTokenForgeResponseEvent)
	if !ok {
		return "", ErrAccessDenied
	}
	return res.Token, nil
}

// Command runs text and returns the events received up to its completion,
// or up to an input or edit request for it. The last event is the one that
// ended the collection.
func (c *Connection) Command(ctx context.Context, width int, text string) (uuid.UUID, []protocol.Event, error) {
	op := uuid.New()
	c.Send(&protocol.CommandEvent{Operation: op, ConWidth: int32(width), Text: text})
	events, err := c.Collect(ctx, op)
	return op, events, err
}

// InitialCommand runs the startup command line of the player's shell
func (c *Connection) InitialCommand(ctx context.Context, width int) (uuid.UUID, []protocol.Event, error) {
	op := uuid.New()
	c.Send(&protocol.InitialCommandEvent{Operation: op, ConWidth: int32(width)})
	events, err := c.Collect(ctx, op)
	return op, events, err
}

// Respond answers an input request for op and collects what follows
func (c *Connection) Respond(ctx context.Context, op uuid.UUID, input string) ([]protocol.Event, error) {
	c.Send(&protocol.InputResponseEvent{Operation: op, Input: input})
	return c.Collect(ctx, op)
}

// SaveEdit answers an edit request for op and collects what follows
func (c *Connection) SaveEdit(ctx context.Context, op uuid.UUID, write bool, content string) ([]protocol.Event, error) {
	c.Send(&protocol.EditResponseEvent{Operation: op, Write: write, Content: content})
	return c.Collect(ctx, op)
}

// Collect gathers received events until one ends operation op
func (c *Connection) Collect(ctx context.Context, op uuid.UUID) ([]protocol.Event, error) {
	var events []protocol.Event
	for {
		e, err := c.WaitFor(ctx, func(protocol.Event) bool { return true })
		if err != nil {
			return events, err
		}
		events = append(events, e)
		if Ends(e, op) {
			return events, nil
		}
	}
}

// Ends reports whether e completes op or suspends it waiting for the user
func Ends(e protocol.Event, op uuid.UUID) bool {
	switch e.(type) {
	case *protocol.ServerDisconnectEvent:
		return true
	case *protocol.OperationCompleteEvent, *protocol.InitialCommandCompleteEvent,
		*protocol.ChainCommandCompleteEvent, *protocol.InputRequestEvent, *protocol.EditRequestEvent:
		id, _ := protocol.OperationOf(e)
		return id == op
	}
	return false
}

// Dispose closes the connection. It is idempotent.
func (c *Connection) Dispose() {
	prev, moved := c.lc.AdvanceTo(lifecycle.Dispose)
	if !moved {
		return
	}
	if prev == lifecycle.Active {
		c.Send(&protocol.ClientDisconnectEvent{})
		_ = c.out.Flush()
	}
	c.cancel()
	_ = c.conn.Close()
	<-c.done
	c.lc.AdvanceTo(lifecycle.Disposed)
}
