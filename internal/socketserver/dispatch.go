package socketserver

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/codefionn/netshell/internal/auth"
	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/lifecycle"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/protocol"
	"github.com/codefionn/netshell/internal/securemem"
	"github.com/codefionn/netshell/internal/world"
)

// Dispatcher routes authenticated sessions to their world and owns the
// account service used during login.
type Dispatcher struct {
	accounts *auth.Accounts

	mu     sync.RWMutex
	worlds map[string]*world.World
	def    *world.World
}

// NewDispatcher creates a dispatcher. The first world added becomes the
// default world.
func NewDispatcher(accounts *auth.Accounts, worlds ...*world.World) *Dispatcher {
	d := &Dispatcher{accounts: accounts, worlds: make(map[string]*world.World)}
	for _, w := range worlds {
		d.AddWorld(w)
	}
	return d
}

// AddWorld registers w under its name
func (d *Dispatcher) AddWorld(w *world.World) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.worlds[w.Name()] = w
	if d.def == nil {
		d.def = w
	}
}

// Worlds returns every registered world ordered by name
func (d *Dispatcher) Worlds() []*world.World {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*world.World, 0, len(d.worlds))
	for _, w := range d.worlds {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// WorldFor returns the world u plays in
func (d *Dispatcher) WorldFor(u *model.User) *world.World {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.def
}

// handle processes one inbound event. It returns true when the receive
// loop should stop.
func (s *Session) handle(e protocol.Event) bool {
	if s.lc.State() != lifecycle.Active {
		return s.handleUnauthenticated(e)
	}
	// Dispose may have detached the world since the state check
	w := s.world()
	if w == nil {
		return true
	}

	switch ev := e.(type) {
	case *protocol.RegistrationTokenForgeRequestEvent:
		s.forgeToken(ev)
	case *protocol.InitialCommandEvent:
		w.InitialCommand(s, ev.Operation, conWidth(ev.ConWidth))
	case *protocol.CommandEvent:
		w.Command(s, ev.Operation, conWidth(ev.ConWidth), ev.Text)
	case *protocol.InputResponseEvent, *protocol.EditResponseEvent:
		s.in.Put(e)
	case *protocol.ClientDisconnectEvent:
		s.log.Info("client disconnected")
		return true
	case *protocol.LoginEvent:
		s.log.Warn("ignoring repeated login from %s", s.User().Name)
	default:
		s.log.Warn("ignoring unexpected %s", e.Command())
	}
	return false
}

func (s *Session) handleUnauthenticated(e protocol.Event) bool {
	switch ev := e.(type) {
	case *protocol.LoginEvent:
		return !s.login(ev)
	case *protocol.RegistrationTokenForgeRequestEvent:
		s.Send(&protocol.AccessFailEvent{Operation: ev.Operation})
	case *protocol.CommandEvent:
		s.Send(&protocol.OperationCompleteEvent{Operation: ev.Operation})
	case *protocol.InitialCommandEvent:
		s.Send(&protocol.InitialCommandCompleteEvent{Operation: ev.Operation, NeedsRetry: true})
	case *protocol.ClientDisconnectEvent:
		return true
	default:
		s.log.Debug("ignoring %s before login", e.Command())
	}
	return false
}

// login authenticates ev, registering the account first when it carries a
// token. It reports whether the session is now Active.
func (s *Session) login(ev *protocol.LoginEvent) bool {
	pass := securemem.FromString(ev.Pass)
	defer pass.Destroy()

	var (
		u   *model.User
		err error
	)
	if ev.RegistrationToken != nil {
		u, err = s.disp.accounts.Register(s.ctx, ev.User, pass, *ev.RegistrationToken)
	} else {
		u, err = s.disp.accounts.Authenticate(s.ctx, ev.User, pass)
	}
	if err != nil {
		s.rejectLogin(ev, err)
		return false
	}

	w := s.disp.WorldFor(u)
	if w == nil {
		s.rejectLogin(ev, errors.New("no world available"))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lc.Advance(lifecycle.Starting, lifecycle.Active) {
		return false
	}
	s.user = u
	s.joined = w
	s.out.Send(
		&protocol.UserInfoEvent{Operation: ev.Operation, Admin: u.Admin},
		&protocol.OutputEvent{Text: fmt.Sprintf("Welcome to %s, %s.\n", w.Name(), u.Name)},
	)
	w.Join(u.Name, u.Admin, s)
	s.log.Info("user %s logged in from %s", u.Name, s.conn.RemoteAddr())
	return true
}

func (s *Session) rejectLogin(ev *protocol.LoginEvent, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrUserExists), errors.Is(err, auth.ErrInvalidUsername):
		s.log.Info("login for %q from %s rejected: %v", ev.User, s.conn.RemoteAddr(), err)
	default:
		s.log.Error("login for %q failed: %v", ev.User, err)
	}
	s.out.Send(
		&protocol.LoginFailEvent{Operation: ev.Operation},
		&protocol.ServerDisconnectEvent{Reason: "Invalid login."},
	)
	if err := s.out.Flush(); err != nil {
		s.log.Debug("failed to flush login failure: %v", err)
	}
}

func (s *Session) forgeToken(ev *protocol.RegistrationTokenForgeRequestEvent) {
	u := s.User()
	if !u.Admin {
		s.log.Warn("non-admin %s requested a registration token", u.Name)
		s.Send(&protocol.AccessFailEvent{Operation: ev.Operation})
		return
	}
	tok, err := s.disp.accounts.ForgeToken(s.ctx, u.Name)
	if err != nil {
		s.log.Error("failed to forge registration token: %v", err)
		s.Send(&protocol.AccessFailEvent{Operation: ev.Operation})
		return
	}
	s.Send(&protocol.RegistrationTokenForgeResponseEvent{Operation: ev.Operation, Token: tok})
}

func (s *Session) world() *world.World {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

func conWidth(w int32) int {
	if w <= 0 {
		return consts.DefaultConWidth
	}
	return int(w)
}
