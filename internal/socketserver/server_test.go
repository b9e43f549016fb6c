package socketserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/codefionn/netshell/internal/auth"
	"github.com/codefionn/netshell/internal/config"
	"github.com/codefionn/netshell/internal/lifecycle"
	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/programs"
	"github.com/codefionn/netshell/internal/protocol"
	"github.com/codefionn/netshell/internal/securemem"
	"github.com/codefionn/netshell/internal/socketclient"
	"github.com/codefionn/netshell/internal/store"
	"github.com/codefionn/netshell/internal/world"
)

const waitTimeout = 5 * time.Second

type testServer struct {
	srv      *Server
	addr     string
	client   *tls.Config
	accounts *auth.Accounts
	cancel   context.CancelFunc
	errCh    chan error
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	db := store.NewMemory()
	accounts := auth.New(db, auth.WithCost(bcrypt.MinCost))
	for _, u := range []struct {
		name  string
		admin bool
	}{{"alice", false}, {"root", true}} {
		_, err := accounts.CreateUser(context.Background(), u.name, securemem.FromString("secret"), u.admin)
		require.NoError(t, err)
	}

	rec := &model.World{ID: uuid.New(), Name: "testnet"}
	w, err := world.New(context.Background(), db, rec, world.WithLogger(logger.Discard()))
	require.NoError(t, err)
	programs.Install(w)

	cert, err := SelfSignedCertificate()
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(cert.Leaf)

	cfg := config.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.TickIntervalMillis = 10

	srv, err := NewServer(cfg, Deps{
		Dispatcher: NewDispatcher(accounts, w),
		TLS:        &tls.Config{Certificates: []tls.Certificate{cert}},
	})
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{
		srv:      srv,
		addr:     srv.Addr().String(),
		client:   &tls.Config{RootCAs: pool, ServerName: "localhost"},
		accounts: accounts,
		cancel:   cancel,
		errCh:    make(chan error, 1),
	}
	go func() { ts.errCh <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.errCh:
		case <-time.After(waitTimeout):
			t.Error("server did not stop")
		}
	})
	return ts
}

func (ts *testServer) dial(t *testing.T) *socketclient.Connection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	conn, err := socketclient.Dial(ctx, ts.addr, ts.client)
	require.NoError(t, err)
	t.Cleanup(conn.Dispose)
	return conn
}

func (ts *testServer) login(t *testing.T, user string) *socketclient.Connection {
	t.Helper()
	conn := ts.dial(t)
	_, err := conn.Login(testContext(t), user, "secret", nil)
	require.NoError(t, err)
	_, err = conn.WaitFor(testContext(t), eventOf(protocol.CommandShellPrompt))
	require.NoError(t, err)
	conn.Drain()
	return conn
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

func eventOf(cmd protocol.Command) func(protocol.Event) bool {
	return func(e protocol.Event) bool { return e.Command() == cmd }
}

func outputOf(events []protocol.Event) string {
	var s string
	for _, e := range events {
		if o, ok := e.(*protocol.OutputEvent); ok {
			s += o.Text
		}
	}
	return s
}

func TestLoginSuccess(t *testing.T) {
	ts := startServer(t)
	conn := ts.dial(t)

	info, err := conn.Login(testContext(t), "alice", "secret", nil)
	require.NoError(t, err)
	assert.False(t, info.Admin)
	assert.Equal(t, lifecycle.Active, conn.State())

	e, err := conn.WaitFor(testContext(t), eventOf(protocol.CommandOutput))
	require.NoError(t, err)
	assert.Equal(t, "Welcome to testnet, alice.\n", e.(*protocol.OutputEvent).Text)

	e, err = conn.WaitFor(testContext(t), eventOf(protocol.CommandShellPrompt))
	require.NoError(t, err)
	assert.Equal(t, "/home/alice", e.(*protocol.ShellPromptEvent).Path)

	require.Eventually(t, func() bool {
		for _, s := range ts.srv.Hub().snapshot() {
			if u := s.User(); u != nil && u.Name == "alice" {
				return s.State() == lifecycle.Active
			}
		}
		return false
	}, waitTimeout, 10*time.Millisecond)
}

func TestLoginFailure(t *testing.T) {
	ts := startServer(t)
	conn := ts.dial(t)

	_, err := conn.Login(testContext(t), "bob", "wrong", nil)
	assert.ErrorIs(t, err, socketclient.ErrLoginFailed)

	_, err = conn.WaitFor(testContext(t), eventOf(protocol.CommandServerDisconnect))
	require.NoError(t, err)
	assert.Equal(t, "Invalid login.", conn.DisconnectReason())

	select {
	case <-conn.Done():
	case <-time.After(waitTimeout):
		t.Fatal("server did not close the connection")
	}
	assert.Eventually(t, func() bool { return ts.srv.Hub().Count() == 0 }, waitTimeout, 10*time.Millisecond)
}

func TestRequestsBeforeLogin(t *testing.T) {
	ts := startServer(t)
	conn := ts.dial(t)
	ctx := testContext(t)

	op, events, err := conn.Command(ctx, 80, "echo hi")
	require.NoError(t, err)
	assert.Equal(t, []protocol.Event{&protocol.OperationCompleteEvent{Operation: op}}, events)

	op, events, err = conn.InitialCommand(ctx, 80)
	require.NoError(t, err)
	assert.Equal(t, []protocol.Event{&protocol.InitialCommandCompleteEvent{Operation: op, NeedsRetry: true}}, events)

	_, err = conn.ForgeToken(ctx)
	assert.ErrorIs(t, err, socketclient.ErrAccessDenied)

	_, err = conn.Login(ctx, "alice", "secret", nil)
	require.NoError(t, err)
}

func TestCommands(t *testing.T) {
	ts := startServer(t)
	conn := ts.login(t, "alice")
	ctx := testContext(t)

	tests := []struct {
		line string
		want string
	}{
		{"echo hello world", "hello world\n"},
		{"frobnicate", "/bin/frobnicate: not found\n"},
		{"cat /etc/motd", "Welcome to alice-box.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			op, events, err := conn.Command(ctx, 80, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outputOf(events))
			assert.Equal(t, &protocol.OperationCompleteEvent{Operation: op}, events[len(events)-1])
		})
	}
}

func TestInputRoundTrip(t *testing.T) {
	ts := startServer(t)
	conn := ts.login(t, "alice")
	ctx := testContext(t)

	op, events, err := conn.Command(ctx, 0, "read name?")
	require.NoError(t, err)
	assert.Equal(t, &protocol.InputRequestEvent{Operation: op}, events[len(events)-1])

	events, err = conn.Respond(ctx, op, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob\n", outputOf(events))
	assert.Equal(t, &protocol.OperationCompleteEvent{Operation: op}, events[len(events)-1])
}

func TestForgeTokenAndRegister(t *testing.T) {
	ts := startServer(t)
	ctx := testContext(t)

	_, err := ts.login(t, "alice").ForgeToken(ctx)
	assert.ErrorIs(t, err, socketclient.ErrAccessDenied)

	token, err := ts.login(t, "root").ForgeToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	info, err := ts.dial(t).Login(ctx, "carol", "hunter2", &token)
	require.NoError(t, err)
	assert.False(t, info.Admin)

	_, err = ts.dial(t).Login(ctx, "dave", "hunter2", &token)
	assert.ErrorIs(t, err, socketclient.ErrLoginFailed)

	_, err = ts.dial(t).Login(ctx, "carol", "hunter2", nil)
	assert.NoError(t, err)
}

func TestUnknownTagIsProtocolError(t *testing.T) {
	ts := startServer(t)

	conn, err := tls.Dial("tcp", ts.addr, ts.client)
	require.NoError(t, err)
	defer conn.Close()

	var tag [4]byte
	binary.LittleEndian.PutUint32(tag[:], 0xDEADBEEF)
	_, err = conn.Write(tag[:])
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	e, err := protocol.Decode(conn)
	require.NoError(t, err)
	assert.Equal(t, &protocol.ServerDisconnectEvent{Reason: "Protocol error."}, e)
}

func TestShutdownDisconnectsSessions(t *testing.T) {
	ts := startServer(t)
	conn := ts.login(t, "alice")

	ts.cancel()
	select {
	case err := <-ts.errCh:
		assert.NoError(t, err)
		ts.errCh <- err
	case <-time.After(waitTimeout):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, 0, ts.srv.Hub().Count())

	select {
	case <-conn.Done():
	case <-time.After(waitTimeout):
		t.Fatal("connection stayed open")
	}
	assert.Equal(t, "Server shutting down.", conn.DisconnectReason())

	var alerted bool
	for _, e := range conn.Drain() {
		if a, ok := e.(*protocol.AlertEvent); ok {
			alerted = a.Kind == protocol.AlertSystem
		}
	}
	assert.True(t, alerted)
}

func TestSessionDisposeIsIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	var hooked atomic.Int32
	s := NewSession(context.Background(), server, NewDispatcher(nil),
		WithDisposeHook(func(*Session) { hooked.Add(1) }))

	s.Dispose()
	s.Dispose()
	assert.Equal(t, lifecycle.Disposed, s.State())
	assert.Equal(t, int32(1), hooked.Load())
	assert.False(t, s.Connected())

	s.Send(&protocol.OutputEvent{Text: "dropped"})
	assert.Equal(t, 0, s.out.Pending())
}

func TestDisposeBeforeServe(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	var hooked atomic.Int32
	s := NewSession(context.Background(), server, NewDispatcher(nil),
		WithDisposeHook(func(*Session) { hooked.Add(1) }))

	s.Dispose()
	assert.Equal(t, lifecycle.Disposed, s.State())
	assert.Equal(t, int32(1), hooked.Load())
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}

	assert.Error(t, s.Serve())
	assert.Equal(t, lifecycle.Disposed, s.State())
	assert.Equal(t, int32(1), hooked.Load())
}

func TestActiveSessionWithoutWorldStopsReading(t *testing.T) {
	tests := []struct {
		name  string
		event protocol.Event
	}{
		{"command", &protocol.CommandEvent{Operation: uuid.New(), ConWidth: 80, Text: "echo hi"}},
		{"initial command", &protocol.InitialCommandEvent{Operation: uuid.New(), ConWidth: 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer client.Close()
			defer server.Close()

			// logged in, then detached by a concurrent Dispose
			s := NewSession(context.Background(), server, NewDispatcher(nil))
			require.True(t, s.lc.Advance(lifecycle.NotStarted, lifecycle.Starting))
			require.True(t, s.lc.Advance(lifecycle.Starting, lifecycle.Active))

			var stop bool
			assert.NotPanics(t, func() { stop = s.handle(tt.event) })
			assert.True(t, stop)
		})
	}
}

func TestSessionIdleTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := NewSession(context.Background(), server, NewDispatcher(nil),
		WithTimeouts(50*time.Millisecond, time.Hour))

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("idle session was not dropped")
	}
	assert.Equal(t, lifecycle.Disposed, s.State())
}

func TestHubConnectionLimit(t *testing.T) {
	hub := NewHub(1)
	newSession := func() *Session {
		server, client := net.Pipe()
		t.Cleanup(func() { client.Close(); server.Close() })
		return NewSession(context.Background(), server, NewDispatcher(nil))
	}

	first := newSession()
	require.NoError(t, hub.Register(first))
	assert.ErrorIs(t, hub.Register(newSession()), ErrHubFull)

	hub.Unregister(first)
	assert.NoError(t, hub.Register(newSession()))

	closed := NewHub(0)
	closed.Shutdown("bye")
	assert.Error(t, closed.Register(newSession()))
}
