package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/store"
	"github.com/codefionn/netshell/internal/template"
)

// World is one simulated universe. Apart from the request methods in
// request.go, its methods must be called from the tick goroutine.
type World struct {
	rec       *model.World
	db        store.DB
	st        store.Store
	templates template.Provider
	log       *logger.Logger

	now  time.Duration
	prev time.Duration

	active     []Process
	registries map[uuid.UUID]*pidTable
	chains     map[uuid.UUID][]ShellRef

	systems   map[uuid.UUID]*model.System
	byAddress map[string]uuid.UUID
	persons   map[uuid.UUID]*model.Person
	byUser    map[string]uuid.UUID
	logins    map[uuid.UUID]*model.Login
	files     map[uuid.UUID]map[string]*model.File

	terminals map[Terminal]uuid.UUID

	intrinsics map[string]Factory
	programs   map[string]Factory

	tasks   []timedTask
	taskSeq uint64

	reqMu    sync.Mutex
	requests []request
}

// Option configures a World
type Option func(*World)

// WithTemplates sets the provider used for player provisioning and
// SpawnSystem
func WithTemplates(p template.Provider) Option {
	return func(w *World) { w.templates = p }
}

// WithLogger sets the world's logger
func WithLogger(l *logger.Logger) Option {
	return func(w *World) { w.log = l }
}

// New loads the world rec from db
func New(ctx context.Context, db store.DB, rec *model.World, opts ...Option) (*World, error) {
	w := &World{
		rec:        rec,
		db:         db,
		templates:  template.NewStatic(),
		log:        logger.Global().WithPrefix("world:" + rec.Name),
		registries: make(map[uuid.UUID]*pidTable),
		chains:     make(map[uuid.UUID][]ShellRef),
		terminals:  make(map[Terminal]uuid.UUID),
		intrinsics: make(map[string]Factory),
		programs:   make(map[string]Factory),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.load(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Record is the world's stored record
func (w *World) Record() *model.World { return w.rec }

// Name is the world's name
func (w *World) Name() string { return w.rec.Name }

// Now is the current simulation time
func (w *World) Now() time.Duration { return w.now }

// PreviousTime is the simulation time before the last tick
func (w *World) PreviousTime() time.Duration { return w.prev }

// RegisterIntrinsic adds a built-in command. Intrinsics resolve before /bin.
func (w *World) RegisterIntrinsic(name string, f Factory) {
	w.intrinsics[name] = f
}

// RegisterProgram adds backing code that program files and services name
func (w *World) RegisterProgram(name string, f Factory) {
	w.programs[name] = f
}

// Intrinsics lists the registered intrinsic names
func (w *World) Intrinsics() []string {
	names := make([]string, 0, len(w.intrinsics))
	for n := range w.intrinsics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// load replaces all indices with the stored state
func (w *World) load(ctx context.Context) error {
	st := w.db.UnitOfWork()
	parent := model.WorldKey(w.rec.ID)

	systems, err := st.Query(ctx, model.KindSystem, parent)
	if err != nil {
		return fmt.Errorf("failed to load systems: %w", err)
	}
	persons, err := st.Query(ctx, model.KindPerson, parent)
	if err != nil {
		return fmt.Errorf("failed to load persons: %w", err)
	}

	w.st = st
	w.systems = make(map[uuid.UUID]*model.System, len(systems))
	w.byAddress = make(map[string]uuid.UUID, len(systems))
	w.persons = make(map[uuid.UUID]*model.Person, len(persons))
	w.byUser = make(map[string]uuid.UUID)
	w.logins = make(map[uuid.UUID]*model.Login)
	w.files = make(map[uuid.UUID]map[string]*model.File, len(systems))

	for _, e := range persons {
		p := e.(*model.Person)
		w.persons[p.ID] = p
		if p.User != "" {
			w.byUser[p.User] = p.ID
		}
	}
	for _, e := range systems {
		s := e.(*model.System)
		w.systems[s.ID] = s
		w.byAddress[s.Address] = s.ID
		w.files[s.ID] = make(map[string]*model.File)

		logins, err := st.Query(ctx, model.KindLogin, s.Key())
		if err != nil {
			return fmt.Errorf("failed to load logins of %s: %w", s.Address, err)
		}
		for _, le := range logins {
			l := le.(*model.Login)
			w.logins[l.ID] = l
		}

		files, err := st.Query(ctx, model.KindFile, s.Key())
		if err != nil {
			return fmt.Errorf("failed to load files of %s: %w", s.Address, err)
		}
		for _, fe := range files {
			f := fe.(*model.File)
			w.files[s.ID][f.Path] = f
		}
	}
	w.log.Debug("loaded %d systems, %d persons, %d logins", len(w.systems), len(w.persons), len(w.logins))
	return nil
}

// System returns a system by id
func (w *World) System(id uuid.UUID) (*model.System, bool) {
	s, ok := w.systems[id]
	return s, ok
}

// SystemByAddress returns a system by address
func (w *World) SystemByAddress(addr string) (*model.System, bool) {
	id, ok := w.byAddress[addr]
	if !ok {
		return nil, false
	}
	return w.systems[id], true
}

// Person returns a person by id
func (w *World) Person(id uuid.UUID) (*model.Person, bool) {
	p, ok := w.persons[id]
	return p, ok
}

// PersonByUser returns the player person of a user
func (w *World) PersonByUser(user string) (*model.Person, bool) {
	id, ok := w.byUser[user]
	if !ok {
		return nil, false
	}
	return w.persons[id], true
}

// Login returns a login by id
func (w *World) Login(id uuid.UUID) (*model.Login, bool) {
	l, ok := w.logins[id]
	return l, ok
}

// LoginFor returns the login person holds on system
func (w *World) LoginFor(person, system uuid.UUID) (*model.Login, bool) {
	for _, l := range w.logins {
		if l.Person == person && l.System == system {
			return l, true
		}
	}
	return nil, false
}

// File returns the entry at path on system. The root always exists.
func (w *World) File(system uuid.UUID, path string) (*model.File, bool) {
	path = model.CleanPath(path)
	if path == "/" {
		if _, ok := w.systems[system]; !ok {
			return nil, false
		}
		return &model.File{System: system, Path: "/", Kind: model.FileKindDir}, true
	}
	f, ok := w.files[system][path]
	return f, ok
}

// ListDir returns the direct children of dir, ordered by path
func (w *World) ListDir(system uuid.UUID, dir string) []*model.File {
	dir = model.CleanPath(dir)
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	var out []*model.File
	for p, f := range w.files[system] {
		if !strings.HasPrefix(p, prefix) || p == dir {
			continue
		}
		if strings.Contains(p[len(prefix):], "/") {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

var errNoSystem = errors.New("no such system")

func (w *World) addSystem(s *model.System) error {
	if _, taken := w.byAddress[s.Address]; taken {
		return fmt.Errorf("address %s already in use", s.Address)
	}
	if err := w.st.Add(context.Background(), s); err != nil {
		return err
	}
	w.systems[s.ID] = s
	w.byAddress[s.Address] = s.ID
	w.files[s.ID] = make(map[string]*model.File)
	return nil
}

func (w *World) removeSystem(id uuid.UUID) error {
	s, ok := w.systems[id]
	if !ok {
		return errNoSystem
	}
	ctx := context.Background()
	var keys []model.Key
	for _, f := range w.files[id] {
		keys = append(keys, f.Key())
	}
	for lid, l := range w.logins {
		if l.System == id {
			keys = append(keys, l.Key())
			delete(w.logins, lid)
		}
	}
	keys = append(keys, s.Key())
	if err := w.st.DeleteBulk(ctx, keys); err != nil {
		return err
	}
	delete(w.systems, id)
	delete(w.byAddress, s.Address)
	delete(w.files, id)
	w.dropRegistry(id)
	return nil
}

func (w *World) addPerson(p *model.Person) error {
	if err := w.st.Add(context.Background(), p); err != nil {
		return err
	}
	w.persons[p.ID] = p
	if p.User != "" {
		w.byUser[p.User] = p.ID
	}
	return nil
}

func (w *World) removePerson(id uuid.UUID) error {
	p, ok := w.persons[id]
	if !ok {
		return fmt.Errorf("no such person %s", id)
	}
	keys := []model.Key{p.Key()}
	for lid, l := range w.logins {
		if l.Person == id {
			keys = append(keys, l.Key())
			delete(w.logins, lid)
		}
	}
	if err := w.st.DeleteBulk(context.Background(), keys); err != nil {
		return err
	}
	delete(w.persons, id)
	if p.User != "" {
		delete(w.byUser, p.User)
	}
	return nil
}

func (w *World) addLogin(l *model.Login) error {
	if _, ok := w.systems[l.System]; !ok {
		return errNoSystem
	}
	if err := w.st.Add(context.Background(), l); err != nil {
		return err
	}
	w.logins[l.ID] = l
	return nil
}

func (w *World) addFile(system uuid.UUID, path string, kind model.FileKind, content, program string) (*model.File, error) {
	files, ok := w.files[system]
	if !ok {
		return nil, errNoSystem
	}
	path = model.CleanPath(path)
	if path == "/" {
		return nil, fmt.Errorf("%s: file exists", path)
	}
	if _, ok := files[path]; ok {
		return nil, fmt.Errorf("%s: file exists", path)
	}
	dir := parentDir(path)
	if d, ok := w.File(system, dir); !ok || d.Kind != model.FileKindDir {
		return nil, fmt.Errorf("%s: no such directory", dir)
	}

	f := &model.File{ID: uuid.New(), System: system, Path: path, Kind: kind, Content: content, Program: program}
	if err := w.st.Add(context.Background(), f); err != nil {
		return nil, err
	}
	files[path] = f
	return f, nil
}

func (w *World) writeFile(f *model.File, content string) error {
	f.Content = content
	return w.st.Update(context.Background(), f)
}

func (w *World) removeFile(system uuid.UUID, path string) error {
	path = model.CleanPath(path)
	f, ok := w.files[system][path]
	if !ok {
		return fmt.Errorf("%s: no such file", path)
	}
	if f.Kind == model.FileKindDir && len(w.ListDir(system, path)) > 0 {
		return fmt.Errorf("%s: directory not empty", path)
	}
	if err := w.st.Delete(context.Background(), f.Key()); err != nil {
		return err
	}
	delete(w.files[system], path)
	return nil
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}
