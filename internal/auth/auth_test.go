package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/codefionn/netshell/internal/securemem"
	"github.com/codefionn/netshell/internal/store"
)

func newAccounts(t *testing.T) (*Accounts, store.DB) {
	t.Helper()
	db := store.NewMemory()
	return New(db, WithCost(bcrypt.MinCost)), db
}

func TestCreateAndAuthenticate(t *testing.T) {
	a, _ := newAccounts(t)
	ctx := context.Background()

	_, err := a.CreateUser(ctx, "alice", securemem.FromString("x"), false)
	require.NoError(t, err)

	u, err := a.Authenticate(ctx, "alice", securemem.FromString("x"))
	require.NoError(t, err)
	assert.False(t, u.Admin)

	_, err = a.Authenticate(ctx, "alice", securemem.FromString("wrong"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, "nobody", securemem.FromString("x"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserRejects(t *testing.T) {
	a, _ := newAccounts(t)
	ctx := context.Background()
	_, err := a.CreateUser(ctx, "root", securemem.FromString("pw"), true)
	require.NoError(t, err)

	_, err = a.CreateUser(ctx, "root", securemem.FromString("pw"), true)
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = a.CreateUser(ctx, "Bad Name", securemem.FromString("pw"), false)
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = a.CreateUser(ctx, "empty", securemem.FromString(""), false)
	assert.Error(t, err)
}

func TestRegisterConsumesToken(t *testing.T) {
	a, _ := newAccounts(t)
	ctx := context.Background()

	tok, err := a.ForgeToken(ctx, "root")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	u, err := a.Register(ctx, "bob", securemem.FromString("pw"), tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Name)

	_, err = a.Register(ctx, "carol", securemem.FromString("pw"), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Authenticate(ctx, "bob", securemem.FromString("pw"))
	assert.NoError(t, err)
}

func TestRegisterFailureKeepsToken(t *testing.T) {
	a, _ := newAccounts(t)
	ctx := context.Background()
	_, err := a.CreateUser(ctx, "dave", securemem.FromString("pw"), false)
	require.NoError(t, err)

	tok, err := a.ForgeToken(ctx, "root")
	require.NoError(t, err)

	_, err = a.Register(ctx, "dave", securemem.FromString("pw"), tok)
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = a.Register(ctx, "erin", securemem.FromString("pw"), tok)
	assert.NoError(t, err, "a failed registration must not consume the token")
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("alice"))
	assert.True(t, ValidUsername("_svc-1"))
	assert.False(t, ValidUsername(""))
	assert.False(t, ValidUsername("1abc"))
	assert.False(t, ValidUsername("UPPER"))
}
