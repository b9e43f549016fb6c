// Package pprof serves the runtime profiling endpoints over HTTP.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	netpprof "net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/codefionn/netshell/internal/logger"
)

// Handler owns the profiling HTTP server
type Handler struct {
	addr     string
	server   *http.Server
	listener net.Listener

	mu sync.Mutex
}

// NewHandler creates a handler for addr (e.g. "localhost:6060")
func NewHandler(addr string) *Handler {
	return &Handler{addr: addr}
}

// Addr returns the bound address, or nil before Start
func (h *Handler) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Start binds the listener and serves in the background. Block and mutex
// profiling are enabled at full rate.
func (h *Handler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server != nil {
		return errors.New("pprof server already started")
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", netpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", netpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", netpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", netpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", netpprof.Trace)
	for _, name := range []string{"goroutine", "heap", "block", "mutex", "threadcreate", "allocs"} {
		mux.Handle("/debug/pprof/"+name, netpprof.Handler(name))
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to bind pprof HTTP server: %w", err)
	}
	h.listener = ln
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StdLog(logger.Global().WithPrefix("pprof"), slog.LevelWarn),
	}

	srv := h.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pprof server error: %v", err)
		}
	}()
	logger.Info("pprof listening on http://%s/debug/pprof/", ln.Addr())
	return nil
}

// Stop shuts the server down
func (h *Handler) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv := h.server
	h.server = nil
	h.listener = nil
	h.mu.Unlock()

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop pprof server: %w", err)
	}
	return nil
}
