package world

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/protocol"
)

// CommandRequest is a resolved command submission
type CommandRequest struct {
	Person     uuid.UUID
	Terminal   Terminal
	Operation  uuid.UUID
	ConWidth   int
	Argv       []string
	Invocation InvocationKind
	AI         bool
}

// ExecuteCommand launches req.Argv on the person's current shell. Resolution
// failures are reported as output, followed by a prompt and the completion
// event; AI requests report nothing.
func (w *World) ExecuteCommand(req CommandRequest) {
	term := req.Terminal
	if req.AI {
		term = nil
	}

	sh := w.currentShell(req.Person)
	if sh == nil {
		if term != nil {
			term.Send(completionEvent(req.Invocation, req.Operation, false))
		}
		return
	}

	if len(req.Argv) == 0 {
		if term != nil {
			term.Send(w.promptFor(sh), completionEvent(req.Invocation, req.Operation, false))
		}
		return
	}

	factory, notFound := w.resolve(sh, req.Argv[0])
	if factory == nil {
		if term != nil {
			w.reject(req.Person, term, req.Operation, req.Invocation, notFound)
		}
		return
	}

	ref := sh.Ref()
	ctx := sh.ctx.clone()
	ctx.Argv = append([]string(nil), req.Argv...)
	ctx.Operation = req.Operation
	ctx.ConWidth = req.ConWidth
	ctx.Invocation = req.Invocation
	ctx.Terminal = req.Terminal
	ctx.AI = req.AI
	ctx.Anchor = &ref

	w.launch(&ProgramProcess{proc: proc{ctx: ctx, body: factory()}}, sh.pid)
}

// reject reports a command that did not start
func (w *World) reject(person uuid.UUID, term Terminal, op uuid.UUID, inv InvocationKind, text string) {
	events := protocol.SplitOutput(text)
	if sh := w.currentShell(person); sh != nil {
		events = append(events, w.promptFor(sh))
	}
	events = append(events, completionEvent(inv, op, false))
	term.Send(events...)
}

// resolve finds the backing code for name. Intrinsics come first, then
// program files in /bin. Names containing a slash are paths.
func (w *World) resolve(sh *ShellProcess, name string) (Factory, string) {
	if strings.Contains(name, "/") {
		path := model.ResolvePath(sh.cwd, name)
		if f := w.programFile(sh.ctx.System, path); f != nil {
			return f, ""
		}
		return nil, path + ": not found\n"
	}

	if f, ok := w.intrinsics[name]; ok {
		return f, ""
	}
	if bin, ok := w.File(sh.ctx.System, "/bin"); !ok || bin.Kind != model.FileKindDir {
		return nil, name + ": command not found\n"
	}
	path := "/bin/" + name
	if f := w.programFile(sh.ctx.System, path); f != nil {
		return f, ""
	}
	return nil, path + ": not found\n"
}

func (w *World) programFile(system uuid.UUID, path string) Factory {
	file, ok := w.File(system, path)
	if !ok || file.Kind != model.FileKindProgram {
		return nil
	}
	return w.programs[file.Program]
}

// ProcessInfo describes a process to programs such as ps
type ProcessInfo struct {
	PID     int
	Parent  int
	User    string
	Command string
	Kind    string
}

// Exec is a process's view of the world during one step
type Exec struct {
	w *World
	p Process
}

// World returns the world as a script host
func (x *Exec) World() ScriptHost { return x.w }

// Context returns the process context
func (x *Exec) Context() *Context { return x.p.Context() }

// PID returns the running process's pid
func (x *Exec) PID() int { return x.p.PID() }

// Args returns argv
func (x *Exec) Args() []string { return x.p.Context().Argv }

// Now returns world time
func (x *Exec) Now() time.Duration { return x.w.now }

func (x *Exec) terminal() Terminal {
	return x.w.visibleTerminal(x.p.core())
}

// Write sends text to the invoking terminal. Text longer than the wire
// limit goes out as several OutputEvents.
func (x *Exec) Write(text string) {
	if t := x.terminal(); t != nil && text != "" {
		t.Send(protocol.SplitOutput(text)...)
	}
}

// Writef formats and sends text to the invoking terminal
func (x *Exec) Writef(format string, args ...any) {
	x.Write(fmt.Sprintf(format, args...))
}

// Log writes to the world log
func (x *Exec) Log(format string, args ...any) {
	x.w.log.Info("[%s:%d] %s", x.p.Name(), x.p.PID(), fmt.Sprintf(format, args...))
}

// Sleep returns a token ready after d of world time. The deadline saturates
// instead of wrapping.
func (x *Exec) Sleep(d time.Duration) YieldToken {
	if d > math.MaxInt64-x.w.now {
		return Delay(math.MaxInt64)
	}
	return Delay(x.w.now + d)
}

// ReadInput asks the terminal for a line
func (x *Exec) ReadInput(hidden bool) YieldToken {
	c := x.p.Context()
	if t := x.terminal(); t != nil {
		t.Send(&protocol.InputRequestEvent{Operation: c.Operation, Hidden: hidden})
	}
	return Input(c.Terminal, c.Operation)
}

// AskConfirm writes question and waits for a y/n answer
func (x *Exec) AskConfirm(question string) YieldToken {
	c := x.p.Context()
	x.Write(question)
	if t := x.terminal(); t != nil {
		t.Send(&protocol.InputRequestEvent{Operation: c.Operation})
	}
	return Confirm(c.Terminal, c.Operation)
}

// RequestEdit opens content in the client's editor
func (x *Exec) RequestEdit(content string, readOnly bool) YieldToken {
	c := x.p.Context()
	if t := x.terminal(); t != nil {
		t.Send(&protocol.EditRequestEvent{Operation: c.Operation, Content: content, ReadOnly: readOnly})
	}
	return Edit(c.Terminal, c.Operation)
}

// Input returns the line delivered to the last Input or Confirm token
func (x *Exec) Input() (string, bool) {
	switch t := x.p.core().last.(type) {
	case *inputToken:
		if t.resp != nil {
			return t.resp.Input, true
		}
	case *confirmToken:
		if t.resp != nil {
			return t.resp.Input, true
		}
	}
	return "", false
}

// Confirmed reports whether the last Confirm token was answered yes
func (x *Exec) Confirmed() bool {
	t, ok := x.p.core().last.(*confirmToken)
	return ok && t.yes()
}

// Edited returns the response to the last Edit token
func (x *Exec) Edited() (content string, write bool, ok bool) {
	t, isEdit := x.p.core().last.(*editToken)
	if !isEdit || t.resp == nil {
		return "", false, false
	}
	return t.resp.Content, t.resp.Write, true
}

// System returns the system the process runs on
func (x *Exec) System() *model.System {
	return x.w.systems[x.p.Context().System]
}

// Login returns the login the process runs under
func (x *Exec) Login() *model.Login {
	return x.w.logins[x.p.Context().Login]
}

// Shell returns the anchor shell, or nil
func (x *Exec) Shell() *ShellProcess {
	a := x.p.Context().Anchor
	if a == nil {
		return nil
	}
	p, ok := x.w.lookup(a.System, a.PID)
	if !ok {
		return nil
	}
	sh, _ := p.(*ShellProcess)
	return sh
}

// Cwd returns the anchor shell's working directory
func (x *Exec) Cwd() string {
	if sh := x.Shell(); sh != nil {
		return sh.cwd
	}
	return "/"
}

// Chdir changes the anchor shell's working directory
func (x *Exec) Chdir(path string) error {
	sh := x.Shell()
	if sh == nil {
		return errors.New("no shell")
	}
	return x.w.chdir(sh, path)
}

// File looks up path relative to the working directory
func (x *Exec) File(path string) (*model.File, bool) {
	return x.w.File(x.p.Context().System, model.ResolvePath(x.Cwd(), path))
}

// ListDir lists a directory relative to the working directory
func (x *Exec) ListDir(path string) []*model.File {
	return x.w.ListDir(x.p.Context().System, model.ResolvePath(x.Cwd(), path))
}

// WriteFile replaces the content of a file, creating it if needed
func (x *Exec) WriteFile(path, content string) error {
	sys := x.p.Context().System
	abs := model.ResolvePath(x.Cwd(), path)
	if f, ok := x.w.File(sys, abs); ok {
		if f.Kind != model.FileKindFile {
			return fmt.Errorf("%s: not a regular file", path)
		}
		return x.w.writeFile(f, content)
	}
	_, err := x.w.addFile(sys, abs, model.FileKindFile, content, "")
	return err
}

// Processes lists the processes on the current system
func (x *Exec) Processes() []ProcessInfo {
	procs := x.w.Processes(x.p.Context().System)
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		c := p.Context()
		info := ProcessInfo{PID: p.PID(), Command: strings.Join(c.Argv, " ")}
		info.Parent, _ = p.ParentPID()
		if l, ok := x.w.logins[c.Login]; ok {
			info.User = l.User
		}
		switch p.(type) {
		case *ShellProcess:
			info.Kind = "shell"
		case *ServiceProcess:
			info.Kind = "service"
		default:
			info.Kind = "program"
		}
		out = append(out, info)
	}
	return out
}

var (
	ErrNoSuchProcess = errors.New("no such process")
	ErrNotPermitted  = errors.New("operation not permitted")
)

// Lookup returns a process on the current system
func (x *Exec) Lookup(pid int) (ProcessInfo, bool) {
	for _, info := range x.Processes() {
		if info.PID == pid {
			return info, true
		}
	}
	return ProcessInfo{}, false
}

// Kill completes pid on the current system as killed. Users may only kill
// their own processes unless their login is admin.
func (x *Exec) Kill(pid int) error {
	c := x.p.Context()
	target, ok := x.w.lookup(c.System, pid)
	if !ok {
		return ErrNoSuchProcess
	}
	me := x.w.logins[c.Login]
	them := x.w.logins[target.Context().Login]
	if me == nil || (!me.Admin && (them == nil || them.User != me.User)) {
		return ErrNotPermitted
	}
	x.w.complete(target, Killed)
	return nil
}

// Connect opens a shell on the system at address, on top of the chain. If
// chained is not empty it runs there under this process's operation, and
// this process no longer reports completion itself.
func (x *Exec) Connect(address string, chained []string) error {
	c := x.p.Context()
	sys, ok := x.w.SystemByAddress(address)
	if !ok {
		return fmt.Errorf("%s: no route to host", address)
	}
	login, ok := x.w.LoginFor(c.Person, sys.ID)
	if !ok {
		return fmt.Errorf("%s: permission denied", address)
	}
	if _, err := x.w.startShell(login, c.Terminal, c.AI); err != nil {
		return err
	}
	x.Log("connected to %s as %s", address, login.User)

	if len(chained) == 0 {
		return nil
	}
	x.p.core().handedOff = true
	x.w.ExecuteCommand(CommandRequest{
		Person:     c.Person,
		Terminal:   c.Terminal,
		Operation:  c.Operation,
		ConWidth:   c.ConWidth,
		Argv:       chained,
		Invocation: InvokeChain,
		AI:         c.AI,
	})
	return nil
}

// ExitShell closes the anchor shell once this process exits normally. The
// last shell of a chain cannot be closed.
func (x *Exec) ExitShell() error {
	c := x.p.Context()
	if len(x.w.chains[c.Person]) < 2 {
		return errors.New("not in a remote shell")
	}
	x.p.core().closeAnchor = true
	return nil
}

// Spawn starts argv as a child program sharing this process's terminal
func (x *Exec) Spawn(argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, errors.New("empty command")
	}
	sh := x.Shell()
	if sh == nil {
		return 0, errors.New("no shell")
	}
	factory, notFound := x.w.resolve(sh, argv[0])
	if factory == nil {
		return 0, errors.New(strings.TrimSuffix(notFound, "\n"))
	}
	ctx := x.p.Context().clone()
	ctx.Argv = append([]string(nil), argv...)
	ctx.Invocation = InvokeChild
	child := &ProgramProcess{proc: proc{ctx: ctx, body: factory()}}
	x.w.launch(child, x.p.PID())
	return child.PID(), nil
}

// Commands lists intrinsic names and the program files in /bin
func (x *Exec) Commands() (intrinsics, bin []string) {
	intrinsics = x.w.Intrinsics()
	for _, f := range x.w.ListDir(x.p.Context().System, "/bin") {
		if f.Kind == model.FileKindProgram {
			bin = append(bin, strings.TrimPrefix(f.Path, "/bin/"))
		}
	}
	return intrinsics, bin
}
