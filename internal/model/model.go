// Package model defines the persistent entities of a netshell world.
//
// Entities reference each other by id, never by pointer. Every entity has a
// [Key]; entities that live underneath another one (a system in a world, a
// file on a system) also report the parent key so storage can list children.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind names an entity type. It doubles as the storage discriminator.
type Kind string

const (
	KindUser              Kind = "user"
	KindWorld             Kind = "world"
	KindPerson            Kind = "person"
	KindSystem            Kind = "system"
	KindLogin             Kind = "login"
	KindFile              Kind = "file"
	KindRegistrationToken Kind = "registration_token"
)

// Key identifies one entity
type Key struct {
	Kind Kind
	ID   string
}

// IsZero reports whether k is the zero key
func (k Key) IsZero() bool {
	return k.Kind == "" && k.ID == ""
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Entity is implemented by every stored type
type Entity interface {
	Key() Key
	// Parent is the zero key for top-level entities.
	Parent() Key
}

// New returns a zero entity of kind
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindUser:
		return &User{}, nil
	case KindWorld:
		return &World{}, nil
	case KindPerson:
		return &Person{}, nil
	case KindSystem:
		return &System{}, nil
	case KindLogin:
		return &Login{}, nil
	case KindFile:
		return &File{}, nil
	case KindRegistrationToken:
		return &RegistrationToken{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}

// User is an account. Name is the primary key.
type User struct {
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"password_hash"`
	Admin        bool      `json:"admin"`
	Created      time.Time `json:"created"`
}

func (u *User) Key() Key    { return UserKey(u.Name) }
func (u *User) Parent() Key { return Key{} }

// UserKey returns the key of the user called name
func UserKey(name string) Key { return Key{Kind: KindUser, ID: name} }

// World is one simulated universe
type World struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	PlayerTemplate     string    `json:"player_template"`
	StartupCommandLine string    `json:"startup_command_line"`
}

func (w *World) Key() Key    { return WorldKey(w.ID) }
func (w *World) Parent() Key { return Key{} }

// WorldKey returns the key of world id
func WorldKey(id uuid.UUID) Key { return Key{Kind: KindWorld, ID: id.String()} }

// Person is an identity inside a world. Player persons carry the owning
// user's name; scripted ones leave it empty.
type Person struct {
	ID            uuid.UUID `json:"id"`
	World         uuid.UUID `json:"world"`
	Name          string    `json:"name"`
	User          string    `json:"user,omitempty"`
	DefaultSystem uuid.UUID `json:"default_system"`
}

func (p *Person) Key() Key    { return PersonKey(p.ID) }
func (p *Person) Parent() Key { return WorldKey(p.World) }

// PersonKey returns the key of person id
func PersonKey(id uuid.UUID) Key { return Key{Kind: KindPerson, ID: id.String()} }

// System is a simulated machine
type System struct {
	ID      uuid.UUID `json:"id"`
	World   uuid.UUID `json:"world"`
	Owner   uuid.UUID `json:"owner"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
}

func (s *System) Key() Key    { return SystemKey(s.ID) }
func (s *System) Parent() Key { return WorldKey(s.World) }

// SystemKey returns the key of system id
func SystemKey(id uuid.UUID) Key { return Key{Kind: KindSystem, ID: id.String()} }

// Login grants a person a user account on a system
type Login struct {
	ID     uuid.UUID `json:"id"`
	System uuid.UUID `json:"system"`
	Person uuid.UUID `json:"person"`
	User   string    `json:"user"`
	Admin  bool      `json:"admin"`
	Home   string    `json:"home"`
}

func (l *Login) Key() Key    { return LoginKey(l.ID) }
func (l *Login) Parent() Key { return SystemKey(l.System) }

// LoginKey returns the key of login id
func LoginKey(id uuid.UUID) Key { return Key{Kind: KindLogin, ID: id.String()} }

// FileKind distinguishes directories, data files and program files
type FileKind int

const (
	FileKindFile FileKind = iota
	FileKindDir
	// FileKindProgram names a registered program in Program.
	FileKindProgram
)

func (k FileKind) String() string {
	switch k {
	case FileKindFile:
		return "file"
	case FileKindDir:
		return "dir"
	case FileKindProgram:
		return "progfile"
	default:
		return fmt.Sprintf("filekind(%d)", int(k))
	}
}

// ParseFileKind parses the names produced by FileKind.String
func ParseFileKind(s string) (FileKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "file":
		return FileKindFile, nil
	case "dir", "directory":
		return FileKindDir, nil
	case "progfile", "program":
		return FileKindProgram, nil
	default:
		return 0, fmt.Errorf("unknown file kind %q", s)
	}
}

// File is a filesystem entry on a system, addressed by its absolute path
type File struct {
	ID      uuid.UUID `json:"id"`
	System  uuid.UUID `json:"system"`
	Path    string    `json:"path"`
	Kind    FileKind  `json:"kind"`
	Content string    `json:"content,omitempty"`
	Program string    `json:"program,omitempty"`
}

func (f *File) Key() Key    { return FileKey(f.ID) }
func (f *File) Parent() Key { return SystemKey(f.System) }

// FileKey returns the key of file id
func FileKey(id uuid.UUID) Key { return Key{Kind: KindFile, ID: id.String()} }

// RegistrationToken allows one account registration
type RegistrationToken struct {
	Token     string    `json:"token"`
	CreatedBy string    `json:"created_by"`
	Created   time.Time `json:"created"`
}

func (t *RegistrationToken) Key() Key    { return RegistrationTokenKey(t.Token) }
func (t *RegistrationToken) Parent() Key { return Key{} }

// RegistrationTokenKey returns the key of token
func RegistrationTokenKey(token string) Key {
	return Key{Kind: KindRegistrationToken, ID: token}
}
