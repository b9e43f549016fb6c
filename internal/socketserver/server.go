package socketserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codefionn/netshell/internal/config"
	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/protocol"
	"github.com/codefionn/netshell/internal/world"
)

// Deps are the collaborators of a Server
type Deps struct {
	Dispatcher *Dispatcher
	// ConfigPath, if set, is watched and log level changes are applied live
	ConfigPath string
	// TLS overrides the certificate configuration from cfg
	TLS *tls.Config
}

// Server accepts TLS connections, optionally websocket connections, and
// runs the tick loop of every world.
type Server struct {
	cfg  *config.Config
	deps Deps
	hub  *Hub
	tls  *tls.Config

	mu       sync.Mutex
	listener net.Listener
	running  bool

	sessions sync.WaitGroup
}

// NewServer creates a server
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, errors.New("server needs a dispatcher")
	}
	tlsCfg := deps.TLS
	if tlsCfg == nil {
		var err error
		if tlsCfg, err = TLSConfig(cfg.TLS); err != nil {
			return nil, err
		}
	}
	return &Server{
		cfg:  cfg,
		deps: deps,
		hub:  NewHub(cfg.MaxConnections),
		tls:  tlsCfg,
	}, nil
}

// Hub returns the session table
func (s *Server) Hub() *Hub { return s.hub }

// Listen binds the TLS listener. Run calls it when it has not been called.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound TLS address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled or a component fails. Every session is
// disposed before it returns.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Listen(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.acceptLoop(ctx)
	})

	if s.cfg.WebSocketAddr != "" {
		httpServer := &http.Server{
			Addr:              s.cfg.WebSocketAddr,
			Handler:           s.websocketHandler(),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger.StdLog(logger.Global().WithPrefix("websocket"), slog.LevelWarn),
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		g.Go(func() error {
			logger.Info("WebSocket transport listening on %s", s.cfg.WebSocketAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("websocket listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	for _, w := range s.deps.Dispatcher.Worlds() {
		w := w
		g.Go(func() error {
			err := w.Run(ctx, s.cfg.TickInterval(), nil)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if s.deps.ConfigPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, s.deps.ConfigPath, s.applyConfig)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.mu.Lock()
		err := s.listener.Close()
		s.mu.Unlock()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("Error closing listener: %v", err)
		}
		return nil
	})

	logger.Info("Server listening on %s (max connections: %d)", s.Addr(), s.cfg.MaxConnections)
	err := g.Wait()
	s.hub.Broadcast(&protocol.AlertEvent{
		Kind:   protocol.AlertSystem,
		Header: "Shutdown",
		Body:   "The server is going down.",
	})
	s.hub.Shutdown("Server shutting down.")
	s.sessions.Wait()
	logger.Info("Server stopped")
	return err
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info("Accept loop stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.serveConn(tls.Server(conn, s.tls))
	}
}

// serveConn registers a session for conn and serves it on its own goroutine
func (s *Server) serveConn(conn net.Conn) {
	sess := NewSession(context.Background(), conn, s.deps.Dispatcher,
		WithTimeouts(s.cfg.PreLoginTimeout(), s.cfg.PostLoginTimeout()),
		WithDisposeHook(s.hub.Unregister),
	)
	if err := s.hub.Register(sess); err != nil {
		logger.Warn("Rejecting connection from %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		_ = sess.Serve()
	}()
	logger.Info("New connection accepted: %s from %s (total: %d)", sess.ID, conn.RemoteAddr(), s.hub.Count())
}

func (s *Server) applyConfig(cfg *config.Config) {
	level := logger.ParseLevel(cfg.LogLevel)
	logger.Global().SetLevel(level)
	logger.Info("Log level set to %s", level)
}

// Worlds returns the worlds this server ticks
func (s *Server) Worlds() []*world.World {
	return s.deps.Dispatcher.Worlds()
}
