package world

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/protocol"
)

const terminatedNotice = "[Process terminated]\n"

func (w *World) registry(system uuid.UUID) *pidTable {
	t, ok := w.registries[system]
	if !ok {
		t = newPIDTable()
		w.registries[system] = t
	}
	return t
}

// lookup finds a process by pid without creating a table for system
func (w *World) lookup(system uuid.UUID, pid int) (Process, bool) {
	t, ok := w.registries[system]
	if !ok {
		return nil, false
	}
	return t.get(pid)
}

// dropRegistry forgets the pid table of a removed system once it is empty
func (w *World) dropRegistry(system uuid.UUID) {
	if _, exists := w.systems[system]; exists {
		return
	}
	if t, ok := w.registries[system]; ok && t.len() == 0 {
		delete(w.registries, system)
	}
}

// Processes returns the live processes of system ordered by pid
func (w *World) Processes(system uuid.UUID) []Process {
	t, ok := w.registries[system]
	if !ok {
		return nil
	}
	return t.list()
}

// Active returns a snapshot of the active set in launch order
func (w *World) Active() []Process {
	return append([]Process(nil), w.active...)
}

// launch registers p under a fresh pid on its system
func (w *World) launch(p Process, parent int) {
	c := p.core()
	t := w.registry(c.ctx.System)
	c.pid = t.alloc()
	c.parent = parent
	t.add(p)
	w.active = append(w.active, p)
	w.log.Debug("launched %s pid %d on %s", c.Name(), c.pid, c.ctx.System)
}

// Tick advances the world by delta
func (w *World) Tick(delta time.Duration) {
	w.drainRequests()

	w.prev = w.now
	w.now += delta

	for _, p := range w.Active() {
		c := p.core()
		if c.done {
			continue
		}
		if reason, ok := w.alive(p); !ok {
			w.log.Debug("pid %d (%s) killed remotely: %s", c.pid, c.Name(), reason)
			w.complete(p, KilledRemotely)
			continue
		}

		done, err := w.update(p)
		switch {
		case err != nil:
			w.log.Error("pid %d (%s) faulted: %v", c.pid, c.Name(), err)
			w.complete(p, Killed)
		case done:
			w.complete(p, Normal)
		}
	}

	w.reconcile()
	w.runTasks()
}

// alive runs the liveness checks in order and stops at the first failure
func (w *World) alive(p Process) (string, bool) {
	c := p.Context()
	if c.Terminal != nil && !c.Terminal.Connected() {
		return "terminal disconnected", false
	}
	if _, ok := w.systems[c.System]; !ok {
		return "system removed", false
	}
	if c.Login != uuid.Nil {
		l, ok := w.logins[c.Login]
		if !ok || l.System != c.System {
			return "login detached", false
		}
	}
	if c.Anchor != nil && !w.inChain(c.Person, *c.Anchor) {
		return "anchor shell gone", false
	}
	return "", true
}

// update steps p once. Panics and Fail outcomes come back as err.
func (w *World) update(p Process) (done bool, err error) {
	c := p.core()
	if c.pending != nil && !c.pending.Ready(w) {
		return false, nil
	}
	c.last, c.pending = c.pending, nil

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	o := c.body.Step(&Exec{w: w, p: p})
	if c.done {
		// the step completed its own process, for example by killing its shell
		return false, nil
	}
	switch o.kind {
	case outcomeExit:
		return true, nil
	case outcomeFail:
		if o.err == nil {
			return false, fmt.Errorf("failed")
		}
		return false, o.err
	default:
		c.pending = o.token
		return false, nil
	}
}

// complete ends p with kind and cascades to its children
func (w *World) complete(p Process, kind CompletionKind) {
	w.completeWith(p, kind, false)
}

func (w *World) completeWith(p Process, kind CompletionKind, cascaded bool) {
	c := p.core()
	if c.done {
		return
	}
	c.done = true
	c.kind = kind

	if t, ok := w.registries[c.ctx.System]; ok {
		t.remove(c.pid)
		w.dropRegistry(c.ctx.System)
	}

	shell, isShell := p.(*ShellProcess)
	if isShell {
		w.popShell(c.ctx.Person, shell.Ref())
	}

	term := w.visibleTerminal(c)
	_, isProgram := p.(*ProgramProcess)
	if isProgram && kind != Normal && term != nil {
		term.Send(&protocol.OutputEvent{Text: terminatedNotice})
	}

	for _, child := range w.Active() {
		cc := child.core()
		if cc.done || cc.ctx.System != c.ctx.System || cc.parent != c.pid {
			continue
		}
		w.completeWith(child, kind, true)
	}

	if c.closeAnchor && kind == Normal && c.ctx.Anchor != nil {
		if sp, ok := w.lookup(c.ctx.Anchor.System, c.ctx.Anchor.PID); ok {
			w.completeWith(sp, Normal, true)
		}
	}

	if _, isService := p.(*ServiceProcess); isService || term == nil {
		return
	}
	if c.ctx.Invocation == InvokeChild || c.handedOff {
		return
	}
	if !cascaded {
		if cur := w.currentShell(c.ctx.Person); cur != nil {
			term.Send(w.promptFor(cur))
		}
	}
	if isProgram {
		term.Send(completionEvent(c.ctx.Invocation, c.ctx.Operation, kind != Normal))
	}
}

// visibleTerminal is the terminal output of c may go to, or nil
func (w *World) visibleTerminal(c *proc) Terminal {
	if c.ctx.AI || c.ctx.Terminal == nil || !c.ctx.Terminal.Connected() {
		return nil
	}
	return c.ctx.Terminal
}

func completionEvent(inv InvocationKind, op uuid.UUID, needsRetry bool) protocol.Event {
	switch inv {
	case InvokeChain:
		return &protocol.ChainCommandCompleteEvent{Operation: op, NeedsRetry: needsRetry}
	case InvokeStartup:
		return &protocol.InitialCommandCompleteEvent{Operation: op, NeedsRetry: needsRetry}
	default:
		return &protocol.OperationCompleteEvent{Operation: op}
	}
}

// reconcile drops completed processes from the active set
func (w *World) reconcile() {
	kept := w.active[:0]
	for _, p := range w.active {
		if !p.core().done {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(w.active); i++ {
		w.active[i] = nil
	}
	w.active = kept
}
