// Package auth verifies account credentials and manages single-use
// registration tokens. Every call runs in its own unit of work.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/securemem"
	"github.com/codefionn/netshell/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown users and wrong passwords alike
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid registration token")
	ErrInvalidUsername    = errors.New("invalid username")
)

var usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// Accounts is the account service
type Accounts struct {
	db   store.DB
	cost int
	now  func() time.Time
}

// Option configures Accounts
type Option func(*Accounts)

// WithCost sets the bcrypt cost
func WithCost(cost int) Option {
	return func(a *Accounts) { a.cost = cost }
}

// New creates the account service
func New(db store.DB, opts ...Option) *Accounts {
	a := &Accounts{db: db, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidUsername reports whether name is acceptable as an account name
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// HashPassword hashes pass with bcrypt
func (a *Accounts) HashPassword(pass *securemem.Secret) ([]byte, error) {
	var (
		hash []byte
		err  error
	)
	pass.WithBytes(func(b []byte) {
		hash, err = bcrypt.GenerateFromPassword(b, a.cost)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func checkPassword(hash []byte, pass *securemem.Secret) bool {
	ok := false
	pass.WithBytes(func(b []byte) {
		ok = bcrypt.CompareHashAndPassword(hash, b) == nil
	})
	return ok
}

// Authenticate returns the user if pass matches the stored hash
func (a *Accounts) Authenticate(ctx context.Context, name string, pass *securemem.Secret) (*model.User, error) {
	e, err := a.db.UnitOfWork().Get(ctx, model.UserKey(name))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", name, err)
	}
	u := e.(*model.User)
	if !checkPassword(u.PasswordHash, pass) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// CreateUser adds an account without a registration token
func (a *Accounts) CreateUser(ctx context.Context, name string, pass *securemem.Secret, admin bool) (*model.User, error) {
	st := a.db.UnitOfWork()
	u, err := a.addUser(ctx, st, name, pass, admin)
	if err != nil {
		return nil, err
	}
	if err := st.Sync(ctx); err != nil {
		return nil, a.syncError(name, err)
	}
	logger.Info("created user %s (admin=%v)", name, admin)
	return u, nil
}

// Register consumes token and creates a non-admin account
func (a *Accounts) Register(ctx context.Context, name string, pass *securemem.Secret, token string) (*model.User, error) {
	st := a.db.UnitOfWork()
	if _, err := st.Get(ctx, model.RegistrationTokenKey(token)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load registration token: %w", err)
	}
	u, err := a.addUser(ctx, st, name, pass, false)
	if err != nil {
		return nil, err
	}
	if err := st.Delete(ctx, model.RegistrationTokenKey(token)); err != nil {
		return nil, err
	}
	if err := st.Sync(ctx); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// user added or token consumed by a concurrent registration
			var cerr *store.ConflictError
			if errors.As(err, &cerr) && cerr.Key.Kind == model.KindRegistrationToken {
				return nil, ErrInvalidToken
			}
		}
		return nil, a.syncError(name, err)
	}
	logger.Info("registered user %s", name)
	return u, nil
}

func (a *Accounts) addUser(ctx context.Context, st store.Store, name string, pass *securemem.Secret, admin bool) (*model.User, error) {
	if !ValidUsername(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, name)
	}
	if pass.IsEmpty() {
		return nil, fmt.Errorf("empty password for %s", name)
	}
	if _, err := st.Get(ctx, model.UserKey(name)); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := a.HashPassword(pass)
	if err != nil {
		return nil, err
	}
	u := &model.User{Name: name, PasswordHash: hash, Admin: admin, Created: a.now().UTC()}
	if err := st.Add(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (a *Accounts) syncError(name string, err error) error {
	var cerr *store.ConflictError
	if errors.As(err, &cerr) && cerr.Key == model.UserKey(name) {
		return ErrUserExists
	}
	return fmt.Errorf("failed to store user %s: %w", name, err)
}

// ForgeToken creates a registration token on behalf of admin
func (a *Accounts) ForgeToken(ctx context.Context, createdBy string) (string, error) {
	st := a.db.UnitOfWork()
	tok := &model.RegistrationToken{
		Token:     uuid.NewString(),
		CreatedBy: createdBy,
		Created:   a.now().UTC(),
	}
	if err := st.Add(ctx, tok); err != nil {
		return "", err
	}
	if err := st.Sync(ctx); err != nil {
		return "", fmt.Errorf("failed to store registration token: %w", err)
	}
	logger.Info("user %s forged a registration token", createdBy)
	return tok.Token, nil
}
