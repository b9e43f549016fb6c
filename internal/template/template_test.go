package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/netshell/internal/model"
)

type fakeTarget struct {
	person   model.Person
	system   model.System
	login    model.Login
	files    map[string]model.File
	services [][]string
}

func newFakeTarget(user string) *fakeTarget {
	return &fakeTarget{
		person: model.Person{ID: uuid.New(), User: user},
		system: model.System{ID: uuid.New(), Address: "10.42.0.7"},
		login:  model.Login{ID: uuid.New(), User: user},
		files:  make(map[string]model.File),
	}
}

func (f *fakeTarget) Person() *model.Person { return &f.person }
func (f *fakeTarget) System() *model.System { return &f.system }
func (f *fakeTarget) Login() *model.Login   { return &f.login }

func (f *fakeTarget) AddFile(path string, kind model.FileKind, content, program string) error {
	if _, dup := f.files[path]; dup {
		return errors.New("exists: " + path)
	}
	f.files[path] = model.File{Path: path, Kind: kind, Content: content, Program: program}
	return nil
}

func (f *fakeTarget) AddService(argv []string) error {
	f.services = append(f.services, argv)
	return nil
}

func TestStaticPlayer(t *testing.T) {
	target := newFakeTarget("alice")
	require.NoError(t, NewStatic().Apply(context.Background(), PlayerTemplate, target))

	assert.Equal(t, "/home/alice", target.login.Home)
	assert.Equal(t, "alice-box", target.system.Name)
	assert.Equal(t, model.FileKindDir, target.files["/bin"].Kind)
	assert.Equal(t, "ps", target.files["/bin/ps"].Program)
	assert.Equal(t, "kill", target.files["/bin/kill"].Program)
	assert.Equal(t, model.FileKindDir, target.files["/home/alice"].Kind)
	assert.Contains(t, target.files["/etc/motd"].Content, "alice-box")
}

func TestStaticUnknown(t *testing.T) {
	err := NewStatic().Apply(context.Background(), "castle", newFakeTarget("a"))
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

const bunker = `
name: bunker
system_name: $USER-bunker
home: /srv/$USER
files:
  - path: /bin
    kind: dir
  - path: /bin/ps
    kind: progfile
    program: ps
  - path: ~/notes.txt
    content: "hello $USER"
services:
  - [sleep, "3600"]
`

func TestYAMLDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bunker.yaml"), []byte(bunker), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	y, err := LoadYAMLDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"bunker"}, y.Names())

	target := newFakeTarget("bob")
	require.NoError(t, y.Apply(context.Background(), "bunker", target))
	assert.Equal(t, "bob-bunker", target.system.Name)
	assert.Equal(t, "/srv/bob", target.login.Home)
	assert.Equal(t, "hello bob", target.files["/srv/bob/notes.txt"].Content)
	assert.Equal(t, model.FileKindProgram, target.files["/bin/ps"].Kind)
	assert.Equal(t, [][]string{{"sleep", "3600"}}, target.services)
}

func TestYAMLDirRejectsBadKind(t *testing.T) {
	dir := t.TempDir()
	doc := "name: broken\nfiles:\n  - path: /dev/null\n    kind: socket\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte(doc), 0644))
	_, err := LoadYAMLDir(dir)
	assert.Error(t, err)
}

func TestYAMLDirMissing(t *testing.T) {
	y, err := LoadYAMLDir(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.Empty(t, y.Names())
}

func TestChainFallsThrough(t *testing.T) {
	y, err := LoadYAMLDir("")
	require.NoError(t, err)
	p := Chain(y, NewStatic())

	target := newFakeTarget("carol")
	require.NoError(t, p.Apply(context.Background(), PlayerTemplate, target))
	assert.Contains(t, target.files, "/bin/ps")

	assert.ErrorIs(t, p.Apply(context.Background(), "nope", newFakeTarget("d")), ErrUnknownTemplate)
}
