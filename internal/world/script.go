package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/model"
)

// ScriptHost is the surface content scripts call into. Calls must happen on
// the tick goroutine, typically from a scheduled task or a process step.
type ScriptHost interface {
	// SpawnPerson creates a non-player person with a login on system and
	// an AI shell there.
	SpawnPerson(name string, system uuid.UUID) (*model.Person, error)
	RemovePerson(id uuid.UUID) error
	// SpawnSystem creates a system owned by owner, giving the owner a
	// login, and applies templateName when it is not empty.
	SpawnSystem(name, address string, owner uuid.UUID, templateName string) (*model.System, error)
	RemoveSystem(id uuid.UUID) error
	SpawnFile(system uuid.UUID, path string, kind model.FileKind, content string) (*model.File, error)
	RemoveFile(system uuid.UUID, path string) error
	// StartService launches argv as a detached background service.
	StartService(system, person uuid.UUID, argv []string) (int, error)
	// RunAs executes argv as an AI invocation on person's current shell.
	RunAs(person uuid.UUID, argv []string)
	Schedule(delay time.Duration, fn func(h ScriptHost))
	Log(format string, args ...any)
}

var _ ScriptHost = (*World)(nil)

type timedTask struct {
	due time.Duration
	seq uint64
	fn  func(h ScriptHost)
}

func (w *World) SpawnPerson(name string, system uuid.UUID) (*model.Person, error) {
	if _, ok := w.systems[system]; !ok {
		return nil, errNoSystem
	}
	p := &model.Person{ID: uuid.New(), World: w.rec.ID, Name: name, DefaultSystem: system}
	if err := w.addPerson(p); err != nil {
		return nil, err
	}
	l := &model.Login{ID: uuid.New(), System: system, Person: p.ID, User: name, Home: "/"}
	if err := w.addLogin(l); err != nil {
		_ = w.removePerson(p.ID)
		return nil, err
	}
	if _, err := w.startShell(l, nil, true); err != nil {
		_ = w.removePerson(p.ID)
		return nil, err
	}
	return p, nil
}

// RemovePerson deletes the person and its logins. Its processes fail their
// next liveness check.
func (w *World) RemovePerson(id uuid.UUID) error {
	return w.removePerson(id)
}

func (w *World) SpawnSystem(name, address string, owner uuid.UUID, templateName string) (*model.System, error) {
	person, ok := w.persons[owner]
	if !ok {
		return nil, fmt.Errorf("no such person %s", owner)
	}
	if address == "" {
		a, err := w.allocAddress()
		if err != nil {
			return nil, err
		}
		address = a
	}
	sys := &model.System{ID: uuid.New(), World: w.rec.ID, Owner: owner, Name: name, Address: address}
	login := &model.Login{ID: uuid.New(), System: sys.ID, Person: owner, User: person.Name, Admin: true}
	target, err := w.buildSystem(sys, login, person, templateName)
	if err != nil {
		return nil, err
	}
	w.startServices(target)
	return sys, nil
}

func (w *World) RemoveSystem(id uuid.UUID) error {
	return w.removeSystem(id)
}

func (w *World) SpawnFile(system uuid.UUID, path string, kind model.FileKind, content string) (*model.File, error) {
	return w.addFile(system, path, kind, content, "")
}

func (w *World) RemoveFile(system uuid.UUID, path string) error {
	return w.removeFile(system, path)
}

func (w *World) StartService(system, person uuid.UUID, argv []string) (int, error) {
	return w.startService(system, person, argv, nil)
}

func (w *World) startService(system, person uuid.UUID, argv []string, anchor *ShellRef) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty service command")
	}
	if _, ok := w.systems[system]; !ok {
		return 0, errNoSystem
	}
	factory, ok := w.programs[argv[0]]
	if !ok {
		factory, ok = w.intrinsics[argv[0]]
	}
	if !ok {
		return 0, fmt.Errorf("%s: no such program", argv[0])
	}

	ctx := Context{
		Person: person,
		System: system,
		Argv:   append([]string(nil), argv...),
		AI:     true,
		Anchor: anchor,
	}
	if l, ok := w.LoginFor(person, system); ok {
		ctx.Login = l.ID
	}
	svc := &ServiceProcess{proc: proc{ctx: ctx, body: factory()}}
	w.launch(svc, 0)
	return svc.PID(), nil
}

func (w *World) RunAs(person uuid.UUID, argv []string) {
	w.ExecuteCommand(CommandRequest{Person: person, Argv: argv, AI: true})
}

// Schedule runs fn at the end of the first tick whose time is at least
// delay from now
func (w *World) Schedule(delay time.Duration, fn func(h ScriptHost)) {
	w.taskSeq++
	w.tasks = append(w.tasks, timedTask{due: w.now + delay, seq: w.taskSeq, fn: fn})
}

func (w *World) Log(format string, args ...any) {
	w.log.Info(format, args...)
}

// runTasks runs due tasks in due order. Tasks scheduled by a running task
// wait for a later tick.
func (w *World) runTasks() {
	if len(w.tasks) == 0 {
		return
	}
	sort.Slice(w.tasks, func(i, j int) bool {
		if w.tasks[i].due != w.tasks[j].due {
			return w.tasks[i].due < w.tasks[j].due
		}
		return w.tasks[i].seq < w.tasks[j].seq
	})

	var due []timedTask
	i := 0
	for ; i < len(w.tasks) && w.tasks[i].due <= w.now; i++ {
		due = append(due, w.tasks[i])
	}
	w.tasks = append([]timedTask(nil), w.tasks[i:]...)

	for _, t := range due {
		w.runTask(t)
	}
}

func (w *World) runTask(t timedTask) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("scheduled task panicked: %v", r)
		}
	}()
	t.fn(w)
}
