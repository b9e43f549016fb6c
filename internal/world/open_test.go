package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/store"
)

func TestOpenCreatesOnce(t *testing.T) {
	db := store.NewMemory()
	ctx := context.Background()
	def := model.World{Name: "net", StartupCommandLine: "motd"}

	first, err := Open(ctx, db, def, WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, "motd", first.Record().StartupCommandLine)

	def.StartupCommandLine = "ignored"
	second, err := Open(ctx, db, def, WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, first.Record().ID, second.Record().ID)
	assert.Equal(t, "motd", second.Record().StartupCommandLine)

	other, err := Open(ctx, db, model.World{Name: "other"}, WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.NotEqual(t, first.Record().ID, other.Record().ID)
}
