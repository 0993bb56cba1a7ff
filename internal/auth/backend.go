package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/security"
)

var ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")

type UserByEmail interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

// Backend checks email/password pairs against the user store.
type Backend struct {
	users UserByEmail

	dummyOnce sync.Once
	dummyHash string
}

func NewBackend(users UserByEmail) *Backend {
	return &Backend{users: users}
}

// Authenticate returns the active user owning email whose password matches.
// Unknown email, wrong password and inactive user all yield
// ErrInvalidCredentials. Store failures are returned as is.
func (b *Backend) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := b.users.GetByEmail(ctx, user.NormalizeEmail(email))

	if err != nil {
		// spend the same bcrypt time as a real check so response timing
		// does not reveal which emails are registered
		_ = security.CheckPassword(b.dummy(), password)

		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !u.CheckPassword(password) {
		return user.User{}, ErrInvalidCredentials
	}

	if !u.IsActive {
		return user.User{}, ErrInvalidCredentials
	}

	return u, nil
}

func (b *Backend) dummy() string {
	b.dummyOnce.Do(func() {
		h, err := security.HashPassword("timing-equaliser")
		if err == nil {
			b.dummyHash = h
		}
	})
	return b.dummyHash
}
