package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/accounts/internal/domain/token"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/security"
	"golang.org/x/sync/singleflight"
)

const (
	keyCachePrefix   = "key:"
	revokedKeyPrefix = "revoked-key:"
	minRevokedKeyTTL = time.Minute
)

type TokenStore interface {
	GetOrCreateForUser(ctx context.Context, userID, candidate string) (token.Token, error)
	GetByKey(ctx context.Context, key string) (token.Token, error)
	DeleteByKey(ctx context.Context, key string) error
}

// KeyIssuer issues one persistent opaque key per user. Asking again returns
// the same key until it is revoked.
type KeyIssuer struct {
	tokens   TokenStore
	users    UserByID
	cache    TokenCache
	cacheTTL time.Duration
	group    singleflight.Group
	newKey   func() (string, error)
}

// NewKeyIssuer wires the issuer. cache may be nil.
func NewKeyIssuer(tokens TokenStore, users UserByID, cache TokenCache, cacheTTL time.Duration) *KeyIssuer {
	return &KeyIssuer{
		tokens:   tokens,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
		newKey:   security.GenerateKey,
	}
}

func (k *KeyIssuer) Name() string { return "key" }

func (k *KeyIssuer) Issue(ctx context.Context, u user.User) (string, error) {
	candidate, err := k.newKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	t, err := k.tokens.GetOrCreateForUser(ctx, u.ID, candidate)
	if err != nil {
		return "", fmt.Errorf("store key: %w", err)
	}

	k.cacheSet(ctx, t.Key, t.UserID)

	return t.Key, nil
}

func (k *KeyIssuer) Verify(ctx context.Context, raw string) (user.User, error) {
	if raw == "" {
		return user.User{}, ErrInvalidToken
	}

	userID, err := k.resolve(ctx, raw)
	if err != nil {
		return user.User{}, err
	}

	return loadActive(ctx, k.users, userID)
}

// Revoke leaves a tombstone before deleting so an in-flight lookup that read
// the row earlier cannot put the key back into the cache.
func (k *KeyIssuer) Revoke(ctx context.Context, raw string) error {
	k.tombstone(ctx, raw)

	err := k.tokens.DeleteByKey(ctx, raw)

	k.cacheDelete(ctx, raw)

	if errors.Is(err, token.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}

// resolve maps a key to its user id, consulting the cache first and
// collapsing concurrent store lookups for the same key.
func (k *KeyIssuer) resolve(ctx context.Context, raw string) (string, error) {
	if k.cache != nil {
		id, ok, err := k.cache.Get(ctx, keyCachePrefix+raw)
		if err != nil {
			slog.Default().WarnContext(ctx, "token cache get failed", "err", err)
		} else if ok {
			return id, nil
		}
	}

	v, err, _ := k.group.Do(raw, func() (interface{}, error) {
		t, err := k.tokens.GetByKey(ctx, raw)
		if err != nil {
			return "", err
		}
		k.cacheSet(ctx, t.Key, t.UserID)

		// a revoke may have raced the read; undo the fill and refuse the key
		revoked, err := k.revoked(ctx, t.Key)
		if err != nil || revoked {
			k.cacheDelete(ctx, t.Key)
		}
		if revoked {
			return "", token.ErrNotFound
		}
		return t.UserID, nil
	})

	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}

	return v.(string), nil
}

func (k *KeyIssuer) cacheSet(ctx context.Context, key, userID string) {
	if k.cache == nil {
		return
	}
	if err := k.cache.Set(ctx, keyCachePrefix+key, userID, k.cacheTTL); err != nil {
		slog.Default().WarnContext(ctx, "token cache set failed", "err", err)
	}
}

func (k *KeyIssuer) cacheDelete(ctx context.Context, key string) {
	if k.cache == nil {
		return
	}
	if err := k.cache.Delete(ctx, keyCachePrefix+key); err != nil {
		slog.Default().WarnContext(ctx, "token cache delete failed", "err", err)
	}
}

func (k *KeyIssuer) tombstone(ctx context.Context, key string) {
	if k.cache == nil {
		return
	}
	ttl := k.cacheTTL
	if ttl < minRevokedKeyTTL {
		ttl = minRevokedKeyTTL
	}
	if err := k.cache.Set(ctx, revokedKeyPrefix+key, "1", ttl); err != nil {
		slog.Default().WarnContext(ctx, "token cache tombstone failed", "err", err)
	}
}

func (k *KeyIssuer) revoked(ctx context.Context, key string) (bool, error) {
	if k.cache == nil {
		return false, nil
	}
	_, ok, err := k.cache.Get(ctx, revokedKeyPrefix+key)
	if err != nil {
		slog.Default().WarnContext(ctx, "token cache tombstone check failed", "err", err)
		return false, err
	}
	return ok, nil
}
