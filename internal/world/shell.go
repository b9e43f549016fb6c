package world

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/protocol"
)

// Chain returns a copy of person's shell chain; the last entry is current
func (w *World) Chain(person uuid.UUID) []ShellRef {
	return append([]ShellRef(nil), w.chains[person]...)
}

func (w *World) inChain(person uuid.UUID, ref ShellRef) bool {
	for _, r := range w.chains[person] {
		if r == ref {
			return true
		}
	}
	return false
}

func (w *World) popShell(person uuid.UUID, ref ShellRef) {
	chain := w.chains[person]
	for i, r := range chain {
		if r == ref {
			chain = append(chain[:i], chain[i+1:]...)
			break
		}
	}
	if len(chain) == 0 {
		delete(w.chains, person)
		return
	}
	w.chains[person] = chain
}

// currentShell returns the last live shell of person's chain
func (w *World) currentShell(person uuid.UUID) *ShellProcess {
	chain := w.chains[person]
	if len(chain) == 0 {
		return nil
	}
	ref := chain[len(chain)-1]
	p, ok := w.lookup(ref.System, ref.PID)
	if !ok {
		return nil
	}
	sh, _ := p.(*ShellProcess)
	return sh
}

// startShell launches a shell for login and pushes it onto the person's
// chain. The new shell is anchored to the previous current shell, if any.
func (w *World) startShell(login *model.Login, term Terminal, ai bool) (*ShellProcess, error) {
	if _, ok := w.systems[login.System]; !ok {
		return nil, errNoSystem
	}
	ctx := Context{
		Person:   login.Person,
		System:   login.System,
		Login:    login.ID,
		Argv:     []string{"sh"},
		Terminal: term,
		AI:       ai,
	}
	if cur := w.currentShell(login.Person); cur != nil {
		ref := cur.Ref()
		ctx.Anchor = &ref
	}

	cwd := login.Home
	if f, ok := w.File(login.System, cwd); !ok || f.Kind != model.FileKindDir {
		cwd = "/"
	}
	sh := &ShellProcess{proc: proc{ctx: ctx, body: idleBody{}}, cwd: cwd}
	w.launch(sh, 0)
	w.chains[login.Person] = append(w.chains[login.Person], sh.Ref())
	return sh, nil
}

func (w *World) promptFor(sh *ShellProcess) *protocol.ShellPromptEvent {
	addr := ""
	if s, ok := w.systems[sh.ctx.System]; ok {
		addr = s.Address
	}
	return &protocol.ShellPromptEvent{Address: addr, Path: sh.cwd}
}

func (w *World) chdir(sh *ShellProcess, path string) error {
	target := model.ResolvePath(sh.cwd, path)
	f, ok := w.File(sh.ctx.System, target)
	if !ok {
		return fmt.Errorf("%s: no such file or directory", path)
	}
	if f.Kind != model.FileKindDir {
		return fmt.Errorf("%s: not a directory", path)
	}
	sh.cwd = target
	return nil
}
