package world

import (
	"fmt"

	"github.com/google/uuid"
)

// CompletionKind says how a process ended
type CompletionKind int

const (
	Normal CompletionKind = iota + 1
	Killed
	// KilledRemotely is used when world state invalidated the process
	KilledRemotely
)

func (k CompletionKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Killed:
		return "killed"
	case KilledRemotely:
		return "killed-remotely"
	default:
		return fmt.Sprintf("completion(%d)", int(k))
	}
}

// InvocationKind says why a program was launched; it selects the completion
// event sent to the session.
type InvocationKind int

const (
	// InvokePlain is a command typed at a shell
	InvokePlain InvocationKind = iota
	// InvokeChain is a command run on a freshly connected shell
	InvokeChain
	// InvokeStartup is the world's startup command line
	InvokeStartup
	// InvokeChild is a program spawned by another program. It sends no
	// completion event and no prompt.
	InvokeChild
)

// ShellRef names a shell process
type ShellRef struct {
	System uuid.UUID
	PID    int
}

// Context is who runs a process, where, and for whom
type Context struct {
	Person     uuid.UUID
	System     uuid.UUID
	Login      uuid.UUID
	Argv       []string
	Operation  uuid.UUID
	ConWidth   int
	Invocation InvocationKind
	// Terminal is nil for processes nobody watches.
	Terminal Terminal
	// AI marks invocations without a human reader; they produce no
	// session-facing output.
	AI bool
	// Anchor is the shell this process belongs to. For shells it is the
	// shell they were connected from; root shells and detached services
	// have none.
	Anchor *ShellRef
}

func (c *Context) clone() Context {
	out := *c
	out.Argv = append([]string(nil), c.Argv...)
	if c.Anchor != nil {
		a := *c.Anchor
		out.Anchor = &a
	}
	return out
}

// Process is a schedulable unit. The set of implementations is closed:
// *ShellProcess, *ProgramProcess and *ServiceProcess.
type Process interface {
	PID() int
	// ParentPID returns 0, false for processes without parent.
	ParentPID() (int, bool)
	Context() *Context
	// Completion returns the completion kind once the process has ended.
	Completion() (CompletionKind, bool)
	Name() string

	core() *proc
}

type proc struct {
	ctx     Context
	pid     int
	parent  int
	body    Body
	pending YieldToken
	last    YieldToken
	done    bool
	kind    CompletionKind
	// handedOff suppresses the completion event once a chained command
	// has taken over the operation.
	handedOff bool
	// closeAnchor ends the anchor shell when this program exits normally.
	closeAnchor bool
}

func (p *proc) PID() int { return p.pid }

func (p *proc) ParentPID() (int, bool) {
	return p.parent, p.parent != 0
}

func (p *proc) Context() *Context { return &p.ctx }

func (p *proc) Completion() (CompletionKind, bool) {
	return p.kind, p.done
}

func (p *proc) Name() string {
	if len(p.ctx.Argv) == 0 {
		return ""
	}
	return p.ctx.Argv[0]
}

func (p *proc) core() *proc { return p }

// ShellProcess anchors one entry of a person's shell chain
type ShellProcess struct {
	proc
	cwd string
}

// Cwd is the shell's working directory
func (s *ShellProcess) Cwd() string { return s.cwd }

// ProgramProcess is a foreground command
type ProgramProcess struct {
	proc
}

// ServiceProcess is a background unit with no completion event
type ServiceProcess struct {
	proc
}

func (s *ShellProcess) Ref() ShellRef {
	return ShellRef{System: s.ctx.System, PID: s.pid}
}
