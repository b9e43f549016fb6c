package template

import (
	"context"
	"fmt"

	"github.com/codefionn/netshell/internal/model"
)

// PlayerTemplate is the built-in template for new player systems
const PlayerTemplate = "player"

// ApplyFunc shapes a target
type ApplyFunc func(ctx context.Context, t Target) error

// Static is a provider backed by Go functions
type Static struct {
	templates map[string]ApplyFunc
}

// NewStatic returns a provider containing the built-in player template
func NewStatic() *Static {
	s := &Static{templates: make(map[string]ApplyFunc)}
	s.Register(PlayerTemplate, applyPlayer)
	return s
}

// Register adds or replaces a template
func (s *Static) Register(name string, fn ApplyFunc) {
	s.templates[name] = fn
}

func (s *Static) Apply(ctx context.Context, name string, t Target) error {
	fn, ok := s.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return fn(ctx, t)
}

func applyPlayer(_ context.Context, t Target) error {
	login := t.Login()
	if login.Home == "" {
		login.Home = "/home/" + login.User
	}
	if t.System().Name == "" {
		t.System().Name = login.User + "-box"
	}

	files := []struct {
		path    string
		kind    model.FileKind
		content string
		program string
	}{
		{"/bin", model.FileKindDir, "", ""},
		{"/bin/ps", model.FileKindProgram, "", "ps"},
		{"/bin/kill", model.FileKindProgram, "", "kill"},
		{"/etc", model.FileKindDir, "", ""},
		{"/etc/motd", model.FileKindFile, "Welcome to " + t.System().Name + ".\n", ""},
		{"/home", model.FileKindDir, "", ""},
		{login.Home, model.FileKindDir, "", ""},
	}
	for _, f := range files {
		if err := t.AddFile(f.path, f.kind, f.content, f.program); err != nil {
			return fmt.Errorf("player template: %w", err)
		}
	}
	return nil
}
