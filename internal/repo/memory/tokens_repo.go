package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/accounts/internal/domain/token"
)

type TokensRepo struct {
	mu     sync.Mutex
	byKey  map[string]token.Token
	byUser map[string]string // user id -> key
}

func NewTokensRepo() *TokensRepo {
	return &TokensRepo{
		byKey:  make(map[string]token.Token),
		byUser: make(map[string]string),
	}
}

// GetOrCreateForUser stores candidate unless the user already has a key, in
// which case the existing token wins.
func (r *TokensRepo) GetOrCreateForUser(ctx context.Context, userID, candidate string) (token.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.byUser[userID]; ok {
		return r.byKey[key], nil
	}

	t := token.Token{
		Key:       candidate,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	r.byKey[t.Key] = t
	r.byUser[userID] = t.Key

	return t, nil
}

func (r *TokensRepo) GetByKey(ctx context.Context, key string) (token.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byKey[key]
	if !ok {
		return token.Token{}, token.ErrNotFound
	}
	return t, nil
}

func (r *TokensRepo) DeleteByKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byKey[key]
	if !ok {
		return token.ErrNotFound
	}

	delete(r.byKey, key)
	delete(r.byUser, t.UserID)

	return nil
}
