package programs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/protocol"
	"github.com/codefionn/netshell/internal/store"
	"github.com/codefionn/netshell/internal/world"
)

const tick = 50 * time.Millisecond

type testTerm struct {
	mu     sync.Mutex
	events []protocol.Event
	inputs []protocol.Event
}

func (t *testTerm) Connected() bool { return true }

func (t *testTerm) Send(events ...protocol.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, events...)
}

func (t *testTerm) TakeInput(op uuid.UUID, cmd protocol.Command) (protocol.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.inputs {
		if id, _ := protocol.OperationOf(e); id == op && e.Command() == cmd {
			t.inputs = append(t.inputs[:i], t.inputs[i+1:]...)
			return e, true
		}
	}
	return nil, false
}

func (t *testTerm) respond(e protocol.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs = append(t.inputs, e)
}

func (t *testTerm) take() []protocol.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.events
	t.events = nil
	return out
}

func output(events []protocol.Event) string {
	var b strings.Builder
	for _, e := range events {
		if o, ok := e.(*protocol.OutputEvent); ok {
			b.WriteString(o.Text)
		}
	}
	return b.String()
}

func completed(events []protocol.Event, op uuid.UUID) bool {
	for _, e := range events {
		if c, ok := e.(*protocol.OperationCompleteEvent); ok && c.Operation == op {
			return true
		}
	}
	return false
}

type fixture struct {
	w      *world.World
	term   *testTerm
	person *model.Person
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := &model.World{ID: uuid.New(), Name: "test"}
	w, err := world.New(context.Background(), store.NewMemory(), rec, world.WithLogger(logger.Discard()))
	require.NoError(t, err)
	Install(w)

	term := &testTerm{}
	w.Join("alice", false, term)
	w.Tick(tick)
	p, ok := w.PersonByUser("alice")
	require.True(t, ok)
	term.take()
	return &fixture{w: w, term: term, person: p}
}

func (f *fixture) run(text string) (uuid.UUID, []protocol.Event) {
	op := uuid.New()
	f.w.Command(f.term, op, 80, text)
	f.w.Tick(tick)
	return op, f.term.take()
}

func (f *fixture) tick() []protocol.Event {
	f.w.Tick(tick)
	return f.term.take()
}

func TestEcho(t *testing.T) {
	f := newFixture(t)
	op, events := f.run(`echo hello   "big world"`)
	assert.Equal(t, "hello big world\n", output(events))
	assert.True(t, completed(events, op))
}

func TestSleep(t *testing.T) {
	f := newFixture(t)
	op, events := f.run("sleep 0.1")
	assert.False(t, completed(events, op))
	assert.False(t, completed(f.tick(), op))
	assert.True(t, completed(f.tick(), op))

	_, events = f.run("sleep soon")
	assert.Equal(t, "sleep: invalid time interval 'soon'\n", output(events))
	_, events = f.run("sleep")
	assert.Equal(t, "usage: sleep <seconds>\n", output(events))

	for _, arg := range []string{"NaN", "inf", "-Inf", "-1"} {
		t.Run(arg, func(t *testing.T) {
			op, events := f.run("sleep " + arg)
			assert.Equal(t, "sleep: invalid time interval '"+arg+"'\n", output(events))
			assert.True(t, completed(events, op))
		})
	}
}

func TestSleepHugeIntervalDoesNotWrap(t *testing.T) {
	for _, arg := range []string{"1e10", "1e300"} {
		t.Run(arg, func(t *testing.T) {
			f := newFixture(t)
			op, events := f.run("sleep " + arg)
			assert.False(t, completed(events, op))
			assert.False(t, completed(f.tick(), op))
			assert.False(t, completed(f.tick(), op))
		})
	}
}

func TestFilesystemCommands(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		line string
		want string
	}{
		{"ls /", "bin/\netc/\nhome/\n"},
		{"ls /bin /etc/motd", "/bin:\nkill\nps\nmotd\n"},
		{"ls /nope", "ls: /nope: no such file or directory\n"},
		{"cat /etc/motd", "Welcome to alice-box.\n"},
		{"cat /etc", "cat: /etc: is a directory\n"},
		{"cat /bin/ps", "cat: /bin/ps: binary file\n"},
		{"cd /etc/motd", "cd: /etc/motd: not a directory\n"},
		{"cd /nope", "cd: /nope: no such file or directory\n"},
		{"cd /etc", ""},
		{"ls", "motd\n"},
		{"cat motd ../etc/motd", "Welcome to alice-box.\nWelcome to alice-box.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, events := f.run(tt.line)
			assert.Equal(t, tt.want, output(events))
		})
	}

	_, events := f.run("cd")
	var prompt *protocol.ShellPromptEvent
	for _, e := range events {
		if p, ok := e.(*protocol.ShellPromptEvent); ok {
			prompt = p
		}
	}
	require.NotNil(t, prompt)
	assert.Equal(t, "/home/alice", prompt.Path)
}

func TestRead(t *testing.T) {
	f := newFixture(t)
	op, events := f.run("read name?")
	assert.Equal(t, "name?", output(events))
	assert.Equal(t, &protocol.InputRequestEvent{Operation: op}, events[len(events)-1])

	f.term.respond(&protocol.InputResponseEvent{Operation: op, Input: "bob"})
	events = f.tick()
	assert.Equal(t, "bob\n", output(events))
	assert.True(t, completed(events, op))

	op, events = f.run("read -s")
	assert.Equal(t, &protocol.InputRequestEvent{Operation: op, Hidden: true}, events[len(events)-1])
	f.term.respond(&protocol.InputResponseEvent{Operation: op, Input: "hunter2"})
	assert.Equal(t, "\nread 7 characters\n", output(f.tick()))
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	op, events := f.run("edit notes.txt")
	require.NotEmpty(t, events)
	assert.Equal(t, &protocol.EditRequestEvent{Operation: op}, events[len(events)-1])

	f.term.respond(&protocol.EditResponseEvent{Operation: op, Write: true, Content: "hi\n"})
	assert.True(t, completed(f.tick(), op))

	file, ok := f.w.File(f.person.DefaultSystem, "/home/alice/notes.txt")
	require.True(t, ok)
	assert.Equal(t, "hi\n", file.Content)

	op, events = f.run("edit notes.txt")
	assert.Equal(t, &protocol.EditRequestEvent{Operation: op, Content: "hi\n"}, events[len(events)-1])
	f.term.respond(&protocol.EditResponseEvent{Operation: op, Write: false, Content: "discarded"})
	f.tick()
	file, _ = f.w.File(f.person.DefaultSystem, "/home/alice/notes.txt")
	assert.Equal(t, "hi\n", file.Content)

	op, events = f.run("edit /bin/ps")
	assert.Equal(t, &protocol.EditRequestEvent{Operation: op, ReadOnly: true}, events[len(events)-1])

	_, events = f.run("edit /etc")
	assert.Equal(t, "edit: /etc: is a directory\n", output(events))
}

func TestCatLargeOutputFitsWire(t *testing.T) {
	f := newFixture(t)
	content := strings.Repeat("0123456789abcdef\n", 700*1024/17)
	op, _ := f.run("edit big.txt")
	f.term.respond(&protocol.EditResponseEvent{Operation: op, Write: true, Content: content})
	require.True(t, completed(f.tick(), op))

	op, events := f.run("cat big.txt big.txt")
	assert.True(t, completed(events, op))

	var chunks int
	for _, e := range events {
		if o, ok := e.(*protocol.OutputEvent); ok {
			chunks++
			assert.LessOrEqual(t, len(o.Text), consts.MaxStringBytes)
		}
	}
	assert.Equal(t, 2, chunks)
	assert.Equal(t, content+content, output(events))
}

func TestHelp(t *testing.T) {
	f := newFixture(t)
	_, events := f.run("help")
	text := output(events)
	assert.Contains(t, text, "Built-in commands:")
	assert.Contains(t, text, "echo [word...]")
	assert.Contains(t, text, "Programs in /bin:")
	assert.Contains(t, text, "kill <pid>")
	assert.NotContains(t, text, "beacon")
}

func TestPs(t *testing.T) {
	f := newFixture(t)
	f.run("sleep 100")
	_, events := f.run("ps")
	lines := strings.Split(strings.TrimSpace(output(events)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "PID")
	assert.Contains(t, lines[0], "COMMAND")
	assert.Contains(t, lines[1], "shell")
	assert.Contains(t, lines[2], "sleep 100")
	assert.Contains(t, lines[3], "ps")
	assert.Contains(t, lines[3], "alice")
}

func TestKill(t *testing.T) {
	f := newFixture(t)
	sleepOp, _ := f.run("sleep 100")

	op, events := f.run("kill 2")
	assert.Equal(t, "[Process terminated]\n", output(events))
	assert.True(t, completed(events, sleepOp))
	assert.True(t, completed(events, op))

	tests := []struct {
		line string
		want string
	}{
		{"kill 99", "kill: (99): no such process\n"},
		{"kill x", "kill: x: arguments must be process ids\n"},
		{"kill", "usage: kill <pid>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, events := f.run(tt.line)
			assert.Equal(t, tt.want, output(events))
		})
	}
}

func TestKillShellAsksFirst(t *testing.T) {
	f := newFixture(t)

	op, events := f.run("kill 1")
	assert.Equal(t, "kill shell 1? [y/N] ", output(events))
	f.term.respond(&protocol.InputResponseEvent{Operation: op, Input: "n"})
	events = f.tick()
	assert.Equal(t, "kill: aborted\n", output(events))
	assert.True(t, completed(events, op))
	require.Len(t, f.w.Chain(f.person.ID), 1)

	op, _ = f.run("kill 1")
	f.term.respond(&protocol.InputResponseEvent{Operation: op, Input: "y"})
	events = f.tick()
	assert.True(t, completed(events, op))
	assert.Empty(t, f.w.Chain(f.person.ID))
}

func TestConnectAndExit(t *testing.T) {
	f := newFixture(t)
	_, err := f.w.SpawnSystem("relay", "10.0.0.9", f.person.ID, "")
	require.NoError(t, err)

	_, events := f.run("connect")
	assert.Equal(t, "usage: connect <address> [command...]\n", output(events))

	op, events := f.run("connect 10.0.0.9 echo hi")
	assert.False(t, completed(events, op))
	events = f.tick()
	assert.Equal(t, "hi\n", output(events))
	assert.Equal(t, &protocol.ChainCommandCompleteEvent{Operation: op}, events[len(events)-1])

	_, events = f.run("exit")
	assert.Empty(t, output(events))
	assert.Len(t, f.w.Chain(f.person.ID), 1)

	_, events = f.run("exit")
	assert.Equal(t, "exit: not in a remote shell\n", output(events))
}

func TestBeaconService(t *testing.T) {
	f := newFixture(t)
	sys := f.person.DefaultSystem

	pid, err := f.w.StartService(sys, f.person.ID, []string{"beacon", "0.05", "ping"})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		f.w.Tick(tick)
	}
	var alive bool
	for _, p := range f.w.Processes(sys) {
		if p.PID() == pid {
			alive = true
		}
	}
	assert.True(t, alive)

	_, err = f.w.StartService(sys, f.person.ID, []string{"beacon", "never"})
	require.NoError(t, err)
	f.w.Tick(tick)
	assert.Len(t, f.w.Processes(sys), 2)
	assert.Empty(t, f.term.take())
}

func TestCatalogIsSorted(t *testing.T) {
	var names []string
	for _, p := range Catalog() {
		names = append(names, p.Name)
		assert.NotNil(t, p.New, p.Name)
		assert.True(t, strings.HasPrefix(p.Usage, p.Name), p.Name)
	}
	assert.IsIncreasing(t, names)
}

func TestGrep(t *testing.T) {
	f := newFixture(t)
	op, _ := f.run("edit notes.txt")
	f.term.respond(&protocol.EditResponseEvent{Operation: op, Write: true, Content: "root password\nguest\nROOT shell\n"})
	f.tick()

	tests := []struct {
		line string
		want string
	}{
		{"grep root notes.txt", "root password\n"},
		{"grep -i root notes.txt", "root password\nROOT shell\n"},
		{"grep -e guest -e shell notes.txt", "guest\nROOT shell\n"},
		{"grep Welcome notes.txt /etc/motd", "/etc/motd:Welcome to alice-box.\n"},
		{"grep x /etc", "grep: /etc: is a directory\n"},
		{"grep x nope", "grep: nope: no such file or directory\n"},
		{"grep ps /bin/ps", "grep: /bin/ps: binary file matches\n"},
		{"grep root", "usage: grep [-i] [-e pattern]... [pattern] <file...>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, events := f.run(tt.line)
			assert.Equal(t, tt.want, output(events))
		})
	}
}
