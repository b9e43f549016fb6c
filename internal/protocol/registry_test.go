package protocol

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagBijection(t *testing.T) {
	types := make(map[reflect.Type]Command)
	for _, c := range Commands() {
		ev, ok := Lookup(c)
		require.True(t, ok)
		assert.Equal(t, c, ev.Command())

		typ := reflect.TypeOf(ev)
		if other, dup := types[typ]; dup {
			t.Fatalf("%s shared by %s and %s", typ, other, c)
		}
		types[typ] = c
	}
	assert.Len(t, types, len(registrations))
}

func TestTagRangesAreDisjoint(t *testing.T) {
	var client, server int
	for _, c := range Commands() {
		isClient, isServer := IsClientCommand(c), IsServerCommand(c)
		assert.NotEqual(t, isClient, isServer, "%s must be in exactly one range", c)
		if isClient {
			client++
		} else {
			server++
		}
	}
	assert.Equal(t, 7, client)
	assert.Equal(t, 13, server)
}

func TestNewUnknownTag(t *testing.T) {
	_, ok := Lookup(0x0001_FFFF)
	assert.False(t, ok)
	_, ok = Lookup(0)
	assert.False(t, ok)
}

func TestBuildRegistryRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		buildRegistry([]registration{
			{CommandOutput, "Output", func() Event { return &OutputEvent{} }},
			{CommandOutput, "Again", func() Event { return &OutputEvent{} }},
		})
	})
	assert.Panics(t, func() {
		buildRegistry([]registration{
			{CommandAlert, "Mismatch", func() Event { return &OutputEvent{} }},
		})
	})
	assert.Panics(t, func() {
		buildRegistry([]registration{
			{0x1234, "OutOfRange", func() Event { return &OutputEvent{} }},
		})
	})
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "Login", CommandLogin.String())
	assert.Equal(t, "command(0xDEADBEEF)", Command(0xDEADBEEF).String())
}
