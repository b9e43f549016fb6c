package socketserver

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/protocol"
)

// ErrHubFull is returned by Register when the connection limit is reached
var ErrHubFull = errors.New("connection limit reached")

// Hub maintains the set of live sessions
type Hub struct {
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
	maxConns int
	closed   bool
}

// NewHub creates a hub. maxConns <= 0 means unlimited.
func NewHub(maxConns int) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]*Session),
		maxConns: maxConns,
	}
}

// Register adds a session
func (h *Hub) Register(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.New("hub is shut down")
	}
	if h.maxConns > 0 && len(h.sessions) >= h.maxConns {
		return ErrHubFull
	}
	h.sessions[s.ID] = s
	logger.Info("Session registered: %s (total: %d)", s.ID, len(h.sessions))
	return nil
}

// Unregister removes a session. Unknown sessions are ignored.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.ID]; ok {
		delete(h.sessions, s.ID)
		logger.Info("Session unregistered: %s (total: %d)", s.ID, len(h.sessions))
	}
}

// Get returns the session with the given id
func (h *Hub) Get(id uuid.UUID) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Count returns the number of live sessions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast queues events on every logged-in session
func (h *Hub) Broadcast(events ...protocol.Event) {
	for _, s := range h.snapshot() {
		if s.Connected() {
			s.Send(events...)
		}
	}
}

// Shutdown tells every session why it is closing and disposes it. Later
// registrations fail.
func (h *Hub) Shutdown(reason string) {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	sessions := h.snapshot()
	logger.Info("Shutting down hub with %d sessions", len(sessions))
	for _, s := range sessions {
		s.Send(&protocol.ServerDisconnectEvent{Reason: reason})
		_ = s.out.Flush()
		s.Dispose()
	}
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}
