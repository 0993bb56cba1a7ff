package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess = "access"
	revokedPrefix   = "revoked:"
)

type Claims struct {
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTIssuer issues self-contained HS256 tokens. Revocation is a deny list of
// token ids kept in the cache until the token would have expired anyway.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	users  UserByID
	denied TokenCache
	now    func() time.Time
}

func NewJWTIssuer(secret string, ttl time.Duration, users UserByID, denied TokenCache) *JWTIssuer {
	return &JWTIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		denied: denied,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *JWTIssuer) Name() string { return "jwt" }

func (m *JWTIssuer) Issue(_ context.Context, u user.User) (string, error) {
	now := m.now()

	claims := Claims{
		Email:     u.Email,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func (m *JWTIssuer) Verify(ctx context.Context, raw string) (user.User, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return user.User{}, ErrInvalidToken
	}

	if m.denied != nil {
		_, revoked, err := m.denied.Get(ctx, revokedPrefix+claims.ID)
		if err != nil {
			// cannot prove the token is still valid, fail closed
			return user.User{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return user.User{}, ErrInvalidToken
		}
	}

	return loadActive(ctx, m.users, claims.Subject)
}

func (m *JWTIssuer) Revoke(ctx context.Context, raw string) error {
	claims, err := m.parse(raw)
	if err != nil {
		return ErrInvalidToken
	}

	if m.denied == nil {
		return errors.New("jwt revocation needs a token cache")
	}

	remaining := claims.ExpiresAt.Time.Sub(m.now())
	if remaining <= 0 {
		return nil
	}

	return m.denied.Set(ctx, revokedPrefix+claims.ID, claims.Subject, remaining)
}

func (m *JWTIssuer) parse(raw string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.TokenType != tokenTypeAccess {
		return nil, errors.New("invalid token type")
	}

	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("missing jti or sub")
	}

	return claims, nil
}
