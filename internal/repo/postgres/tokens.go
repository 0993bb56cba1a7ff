package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/accounts/internal/domain/token"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *TokensRepo {
	return &TokensRepo{pool: pool, prom: prom}
}

// GetOrCreateForUser inserts candidate as the user's key unless one exists.
// Concurrent callers for the same user all end up with the stored key.
func (r *TokensRepo) GetOrCreateForUser(ctx context.Context, userID, candidate string) (token.Token, error) {
	var t token.Token

	err := r.prom.ObserveDB(ctx, "tokens.get_or_create", func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO auth_tokens (key, user_id, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, candidate, userID)
		if err != nil {
			return err
		}

		return r.pool.QueryRow(ctx, `
			SELECT key, user_id, created_at
			FROM auth_tokens
			WHERE user_id = $1
		`, userID).Scan(&t.Key, &t.UserID, &t.CreatedAt)
	})

	if err != nil {
		// a concurrent revoke can remove the row between insert and select
		if errors.Is(err, pgx.ErrNoRows) {
			return token.Token{}, token.ErrNotFound
		}
		return token.Token{}, err
	}

	return t, nil
}

func (r *TokensRepo) GetByKey(ctx context.Context, key string) (token.Token, error) {
	var t token.Token

	err := r.prom.ObserveDB(ctx, "tokens.get_by_key", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, `
			SELECT key, user_id, created_at
			FROM auth_tokens
			WHERE key = $1
		`, key).Scan(&t.Key, &t.UserID, &t.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return token.Token{}, token.ErrNotFound
		}
		return token.Token{}, err
	}

	return t, nil
}

func (r *TokensRepo) DeleteByKey(ctx context.Context, key string) error {
	var affected int64

	err := r.prom.ObserveDB(ctx, "tokens.delete_by_key", func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE key = $1`, key)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return token.ErrNotFound
	}

	return nil
}
