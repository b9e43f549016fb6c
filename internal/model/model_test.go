package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoversEveryKind(t *testing.T) {
	kinds := []Kind{KindUser, KindWorld, KindPerson, KindSystem, KindLogin, KindFile, KindRegistrationToken}
	for _, k := range kinds {
		e, err := New(k)
		require.NoError(t, err, k)
		assert.Equal(t, k, e.Key().Kind)
	}

	_, err := New("ghost")
	assert.Error(t, err)
}

func TestParentKeys(t *testing.T) {
	world, sys := uuid.New(), uuid.New()
	assert.Equal(t, WorldKey(world), (&System{ID: sys, World: world}).Parent())
	assert.Equal(t, SystemKey(sys), (&File{ID: uuid.New(), System: sys}).Parent())
	assert.Equal(t, SystemKey(sys), (&Login{ID: uuid.New(), System: sys}).Parent())
	assert.True(t, (&User{Name: "alice"}).Parent().IsZero())
}

func TestFileKindNames(t *testing.T) {
	for _, k := range []FileKind{FileKindFile, FileKindDir, FileKindProgram} {
		got, err := ParseFileKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseFileKind("socket")
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		cwd, p, want string
	}{
		{"/home/alice", "notes", "/home/alice/notes"},
		{"/home/alice", "../bob", "/home/bob"},
		{"/home/alice", "/etc/motd", "/etc/motd"},
		{"", "bin", "/bin"},
		{"/", "../../..", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.cwd+"+"+tt.p, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePath(tt.cwd, tt.p))
		})
	}
}
