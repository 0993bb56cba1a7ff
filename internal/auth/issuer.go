package auth

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/accounts/internal/domain/user"
)

var ErrInvalidToken = errors.New("invalid token")

// Issuer hands out tokens for authenticated users and resolves them back.
type Issuer interface {
	// Name identifies the backend in metrics.
	Name() string
	Issue(ctx context.Context, u user.User) (string, error)
	Verify(ctx context.Context, raw string) (user.User, error)
	Revoke(ctx context.Context, raw string) error
}

// TokenCache is implemented by cache.Cache and cache.RedisCache.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type UserByID interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

func loadActive(ctx context.Context, users UserByID, id string) (user.User, error) {
	u, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidToken
		}
		return user.User{}, err
	}

	if !u.IsActive {
		return user.User{}, ErrInvalidToken
	}

	return u, nil
}
