package world

import (
	"github.com/buildkite/shellwords"
	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/protocol"
)

// request is work handed to the world from another goroutine
type request interface {
	apply(w *World)
}

type joinRequest struct {
	user  string
	admin bool
	term  Terminal
}

type leaveRequest struct {
	term Terminal
}

type commandRequest struct {
	term     Terminal
	op       uuid.UUID
	conWidth int
	text     string
}

type initialCommandRequest struct {
	term     Terminal
	op       uuid.UUID
	conWidth int
}

type aiCommandRequest struct {
	person uuid.UUID
	argv   []string
}

func (w *World) enqueue(r request) {
	w.reqMu.Lock()
	w.requests = append(w.requests, r)
	w.reqMu.Unlock()
}

// drainRequests applies queued requests in arrival order. The queue is
// swapped out under the lock and processed without it.
func (w *World) drainRequests() {
	w.reqMu.Lock()
	batch := w.requests
	w.requests = nil
	w.reqMu.Unlock()

	for _, r := range batch {
		r.apply(w)
	}
}

// Join binds term to user's person, provisioning one on first entry, and
// starts a shell on the person's default system.
func (w *World) Join(user string, admin bool, term Terminal) {
	w.enqueue(joinRequest{user: user, admin: admin, term: term})
}

// Leave unbinds term and ends every process attached to it
func (w *World) Leave(term Terminal) {
	w.enqueue(leaveRequest{term: term})
}

// Command runs a command line typed at term's current shell
func (w *World) Command(term Terminal, op uuid.UUID, conWidth int, text string) {
	w.enqueue(commandRequest{term: term, op: op, conWidth: conWidth, text: text})
}

// InitialCommand runs the world's startup command line for term
func (w *World) InitialCommand(term Terminal, op uuid.UUID, conWidth int) {
	w.enqueue(initialCommandRequest{term: term, op: op, conWidth: conWidth})
}

// AICommand runs argv for a non-human person. Nothing is reported back.
func (w *World) AICommand(person uuid.UUID, argv []string) {
	w.enqueue(aiCommandRequest{person: person, argv: argv})
}

func (r joinRequest) apply(w *World) {
	person, err := w.playerPerson(r.user, r.admin)
	if err != nil {
		w.log.Error("failed to provision %s: %v", r.user, err)
		if r.term.Connected() {
			r.term.Send(&protocol.OutputEvent{Text: "Failed to enter world.\n"})
		}
		return
	}

	for t, pid := range w.terminals {
		if pid != person.ID || t == r.term {
			continue
		}
		delete(w.terminals, t)
		w.endTerminal(t)
		if t.Connected() {
			t.Send(&protocol.AlertEvent{
				Kind:   protocol.AlertSystem,
				Header: "Session replaced",
				Body:   "You logged in from another connection.",
			})
		}
	}
	w.terminals[r.term] = person.ID

	login, ok := w.LoginFor(person.ID, person.DefaultSystem)
	if !ok {
		w.log.Error("%s has no login on its default system", r.user)
		return
	}
	if _, err := w.startShell(login, r.term, false); err != nil {
		w.log.Error("failed to start shell for %s: %v", r.user, err)
		return
	}
	w.log.Info("%s joined", r.user)
}

func (r leaveRequest) apply(w *World) {
	if _, ok := w.terminals[r.term]; !ok {
		return
	}
	delete(w.terminals, r.term)
	w.endTerminal(r.term)
}

// endTerminal completes every process bound to term
func (w *World) endTerminal(term Terminal) {
	for _, p := range w.Active() {
		if p.Context().Terminal == term {
			w.complete(p, KilledRemotely)
		}
	}
}

func (r commandRequest) apply(w *World) {
	person, ok := w.terminals[r.term]
	if !ok {
		r.term.Send(&protocol.OperationCompleteEvent{Operation: r.op})
		return
	}
	argv, err := shellwords.SplitPosix(r.text)
	if err != nil {
		w.reject(person, r.term, r.op, InvokePlain, "sh: "+err.Error()+"\n")
		return
	}
	if len(argv) > consts.MaxArgvLength {
		w.reject(person, r.term, r.op, InvokePlain, "sh: argument list too long\n")
		return
	}
	w.ExecuteCommand(CommandRequest{
		Person:     person,
		Terminal:   r.term,
		Operation:  r.op,
		ConWidth:   r.conWidth,
		Argv:       argv,
		Invocation: InvokePlain,
	})
}

func (r initialCommandRequest) apply(w *World) {
	person, ok := w.terminals[r.term]
	if !ok {
		r.term.Send(&protocol.InitialCommandCompleteEvent{Operation: r.op, NeedsRetry: true})
		return
	}
	argv, err := shellwords.SplitPosix(w.rec.StartupCommandLine)
	if err != nil {
		w.log.Warn("bad startup command line %q: %v", w.rec.StartupCommandLine, err)
		argv = nil
	}
	w.ExecuteCommand(CommandRequest{
		Person:     person,
		Terminal:   r.term,
		Operation:  r.op,
		ConWidth:   r.conWidth,
		Argv:       argv,
		Invocation: InvokeStartup,
	})
}

func (r aiCommandRequest) apply(w *World) {
	w.ExecuteCommand(CommandRequest{Person: r.person, Argv: r.argv, AI: true})
}
