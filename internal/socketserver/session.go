package socketserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/eventq"
	"github.com/codefionn/netshell/internal/lifecycle"
	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/protocol"
	"github.com/codefionn/netshell/internal/world"
)

var errIdle = errors.New("idle timeout")

// Session is the server side of one client connection. It implements
// world.Terminal.
type Session struct {
	ID uuid.UUID

	conn net.Conn
	tls  *tls.Conn
	r    *bufio.Reader
	out  *eventq.Outbox
	in   eventq.Inbox
	lc   lifecycle.Machine
	disp *Dispatcher
	log  *logger.Logger

	preLogin  time.Duration
	postLogin time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	handshaking atomic.Bool
	done        chan struct{}
	onDispose   func(*Session)

	mu     sync.Mutex
	user   *model.User
	joined *world.World
}

var _ world.Terminal = (*Session)(nil)

// SessionOption configures a Session
type SessionOption func(*Session)

// WithTimeouts overrides the pre- and post-login idle timeouts
func WithTimeouts(preLogin, postLogin time.Duration) SessionOption {
	return func(s *Session) {
		if preLogin > 0 {
			s.preLogin = preLogin
		}
		if postLogin > 0 {
			s.postLogin = postLogin
		}
	}
}

// WithDisposeHook runs fn once the session is torn down
func WithDisposeHook(fn func(*Session)) SessionOption {
	return func(s *Session) { s.onDispose = fn }
}

// NewSession wraps conn. A *tls.Conn is handshaken by Serve; any other
// stream is taken as already secured.
func NewSession(ctx context.Context, conn net.Conn, disp *Dispatcher, opts ...SessionOption) *Session {
	id := uuid.New()
	s := &Session{
		ID:        id,
		conn:      conn,
		r:         bufio.NewReaderSize(conn, consts.ReadBufferSize),
		out:       eventq.NewOutbox(conn, eventq.WithWriteTimeout(conn, consts.WriteTimeout)),
		disp:      disp,
		log:       logger.Global().WithPrefix("session:" + id.String()[:8]),
		preLogin:  consts.PreLoginReadTimeout,
		postLogin: consts.PostLoginReadTimeout,
		done:      make(chan struct{}),
	}
	s.tls, _ = conn.(*tls.Conn)
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the lifecycle state
func (s *Session) State() lifecycle.State { return s.lc.State() }

// User returns the authenticated user, or nil before login
func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Done is closed once the session is disposed
func (s *Session) Done() <-chan struct{} { return s.done }

// Connected reports whether the session is logged in and not torn down
func (s *Session) Connected() bool {
	return s.lc.State() == lifecycle.Active
}

// Send queues events for the writer
func (s *Session) Send(events ...protocol.Event) {
	if s.lc.State() >= lifecycle.Dispose {
		return
	}
	s.out.Send(events...)
}

// TakeInput removes a buffered input or edit response for op
func (s *Session) TakeInput(op uuid.UUID, cmd protocol.Command) (protocol.Event, bool) {
	return s.in.Take(eventq.ForOperation(op, cmd))
}

// WaitFor blocks until a received event matches pred
func (s *Session) WaitFor(ctx context.Context, pred eventq.Predicate, poll time.Duration) (protocol.Event, error) {
	return s.in.WaitFor(ctx, pred, poll)
}

// Drain removes every buffered inbound event
func (s *Session) Drain() []protocol.Event {
	return s.in.Drain()
}

// Serve runs the handshake, the writer and the receive loop, and disposes
// the session when the loop ends.
func (s *Session) Serve() error {
	if !s.lc.Advance(lifecycle.NotStarted, lifecycle.Starting) {
		return fmt.Errorf("session %s: cannot serve from state %s", s.ID, s.lc.State())
	}
	defer s.Dispose()

	stop := context.AfterFunc(s.ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := s.handshake(); err != nil {
		s.log.Warn("TLS handshake with %s failed: %v", s.conn.RemoteAddr(), err)
		return err
	}

	go func() {
		if err := s.out.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.log.Warn("writer stopped: %v", err)
			s.Dispose()
		}
	}()

	err := s.readLoop()
	s.in.Close(err)
	switch {
	case errors.Is(err, errIdle):
		s.log.Info("disconnected after idle timeout")
		return nil
	case err != nil:
		s.log.Warn("receive loop ended: %v", err)
	}
	return err
}

func (s *Session) handshake() error {
	if s.tls == nil {
		return nil
	}
	s.handshaking.Store(true)
	defer s.handshaking.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, consts.HandshakeTimeout)
	defer cancel()
	return s.tls.HandshakeContext(ctx)
}

// readLoop receives events until the peer leaves, the session is disposed
// or an error occurs. A clean end returns nil.
func (s *Session) readLoop() error {
	for {
		timeout := s.preLogin
		if s.lc.State() == lifecycle.Active {
			timeout = s.postLogin
		}
		if err := s.setReadDeadline(timeout); err != nil {
			return err
		}
		if s.ctx.Err() != nil {
			return nil
		}

		// the idle deadline covers the wait for a tag only
		tag, err := protocol.DecodeTag(s.r)
		if err != nil {
			return s.readError(err)
		}
		if err := s.setReadDeadline(consts.PayloadReadTimeout); err != nil {
			return err
		}

		e, err := protocol.DecodeBody(tag, s.r)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() && s.ctx.Err() == nil {
				return fmt.Errorf("payload of %s timed out: %w", tag, err)
			}
			return s.readError(err)
		}
		if s.handle(e) {
			return nil
		}
	}
}

func (s *Session) protocolError(err error) error {
	s.log.Warn("protocol error: %v", err)
	s.out.Send(&protocol.ServerDisconnectEvent{Reason: "Protocol error."})
	_ = s.out.Flush()
	return err
}

func (s *Session) setReadDeadline(d time.Duration) error {
	if err := s.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		if s.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	return nil
}

func (s *Session) readError(err error) error {
	var perr *protocol.ProtocolError
	if errors.As(err, &perr) {
		return s.protocolError(err)
	}
	if s.ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errIdle
	}
	return err
}

// Dispose tears the session down. It is idempotent and safe from any
// goroutine. A session that was never served goes straight to Disposed.
func (s *Session) Dispose() {
	if s.lc.Advance(lifecycle.NotStarted, lifecycle.Disposed) {
		s.cancel()
		s.release()
		s.log.Debug("disposed before start")
		return
	}
	if _, moved := s.lc.AdvanceTo(lifecycle.Dispose); !moved {
		return
	}
	s.cancel()
	for s.handshaking.Load() {
		time.Sleep(consts.DisposePollInterval)
	}

	s.mu.Lock()
	joined := s.joined
	s.joined = nil
	s.mu.Unlock()
	if joined != nil {
		joined.Leave(s)
	}

	s.lc.AdvanceTo(lifecycle.Disposed)
	s.release()
	s.log.Debug("disposed")
}

// release closes the stream and the inbox and removes the session from its
// table. It runs once, after the state reached Disposed.
func (s *Session) release() {
	_ = s.conn.Close()
	s.in.Close(nil)
	if s.onDispose != nil {
		s.onDispose(s)
	}
	close(s.done)
}
