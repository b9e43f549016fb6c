// Package template shapes freshly created systems. The world creates the
// person, system and login records and hands them to a [Provider], which
// fills in the name, filesystem and background services.
package template

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codefionn/netshell/internal/model"
)

// ErrUnknownTemplate is returned by Apply for names a provider does not know
var ErrUnknownTemplate = errors.New("unknown template")

// Target is the system being provisioned
type Target interface {
	Person() *model.Person
	System() *model.System
	Login() *model.Login
	// AddFile creates a filesystem entry. Parent directories must exist.
	AddFile(path string, kind model.FileKind, content, program string) error
	// AddService starts argv as a background service once provisioning ends.
	AddService(argv []string) error
}

// Provider applies named templates
type Provider interface {
	Apply(ctx context.Context, name string, target Target) error
}

// Chain tries providers in order and uses the first that knows name
func Chain(providers ...Provider) Provider {
	return chain(providers)
}

type chain []Provider

func (c chain) Apply(ctx context.Context, name string, target Target) error {
	for _, p := range c {
		err := p.Apply(ctx, name, target)
		if errors.Is(err, ErrUnknownTemplate) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
}

// expand replaces ~ at the start of a path with the login's home and $USER
// with the login's user name.
func expand(s string, t Target) string {
	l := t.Login()
	if s == "~" || strings.HasPrefix(s, "~/") {
		s = l.Home + s[1:]
	}
	return strings.ReplaceAll(s, "$USER", l.User)
}
