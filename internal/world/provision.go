package world

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/template"
)

// provisionTarget adapts a freshly created system to template.Target
type provisionTarget struct {
	w        *World
	person   *model.Person
	system   *model.System
	login    *model.Login
	services [][]string
}

func (t *provisionTarget) Person() *model.Person { return t.person }
func (t *provisionTarget) System() *model.System { return t.system }
func (t *provisionTarget) Login() *model.Login   { return t.login }

func (t *provisionTarget) AddFile(path string, kind model.FileKind, content, program string) error {
	_, err := t.w.addFile(t.system.ID, path, kind, content, program)
	return err
}

func (t *provisionTarget) AddService(argv []string) error {
	t.services = append(t.services, append([]string(nil), argv...))
	return nil
}

// playerPerson returns user's person, provisioning one on first entry
func (w *World) playerPerson(user string, admin bool) (*model.Person, error) {
	if p, ok := w.PersonByUser(user); ok {
		return p, nil
	}
	return w.provisionPlayer(user, admin)
}

func (w *World) provisionPlayer(user string, admin bool) (*model.Person, error) {
	addr, err := w.allocAddress()
	if err != nil {
		return nil, err
	}
	person := &model.Person{ID: uuid.New(), World: w.rec.ID, Name: user, User: user}
	sys := &model.System{ID: uuid.New(), World: w.rec.ID, Owner: person.ID, Address: addr}
	person.DefaultSystem = sys.ID
	login := &model.Login{ID: uuid.New(), System: sys.ID, Person: person.ID, User: user, Admin: true}

	name := w.rec.PlayerTemplate
	if name == "" {
		name = template.PlayerTemplate
	}
	target, err := w.buildSystem(sys, login, person, name)
	if err != nil {
		return nil, err
	}
	if err := w.addPerson(person); err != nil {
		_ = w.removeSystem(sys.ID)
		return nil, err
	}
	w.startServices(target)
	w.log.Info("provisioned %s at %s (admin=%v)", user, addr, admin)
	return person, nil
}

// buildSystem stores sys and login and applies the named template to them.
// On failure nothing is left behind.
func (w *World) buildSystem(sys *model.System, login *model.Login, person *model.Person, name string) (*provisionTarget, error) {
	ctx := context.Background()
	if err := w.addSystem(sys); err != nil {
		return nil, err
	}
	target := &provisionTarget{w: w, person: person, system: sys, login: login}
	if name != "" {
		if err := w.templates.Apply(ctx, name, target); err != nil {
			_ = w.removeSystem(sys.ID)
			return nil, fmt.Errorf("failed to apply template %s: %w", name, err)
		}
	}
	if login.Home == "" {
		login.Home = "/"
	}
	if err := w.st.Update(ctx, sys); err != nil {
		_ = w.removeSystem(sys.ID)
		return nil, err
	}
	if err := w.addLogin(login); err != nil {
		_ = w.removeSystem(sys.ID)
		return nil, err
	}
	return target, nil
}

func (w *World) startServices(t *provisionTarget) {
	for _, argv := range t.services {
		if _, err := w.StartService(t.system.ID, t.person.ID, argv); err != nil {
			w.log.Warn("service %v on %s did not start: %v", argv, t.system.Address, err)
		}
	}
}

// allocAddress returns the first unused address under the player prefix
func (w *World) allocAddress() (string, error) {
	for n := 1; n < 256*256; n++ {
		lo := n % 256
		if lo == 0 || lo == 255 {
			continue
		}
		addr := fmt.Sprintf("%s.%d.%d", consts.PlayerAddressPrefix, n/256, lo)
		if _, taken := w.byAddress[addr]; !taken {
			return addr, nil
		}
	}
	return "", fmt.Errorf("address space %s exhausted", consts.PlayerAddressPrefix)
}
