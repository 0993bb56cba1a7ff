package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/accounts/internal/actorctx"
	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (user.User, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
	prom   *observability.Prom
}

func NewAuthMiddleware(tokens TokenVerifier, prom *observability.Prom) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, prom: prom}
}

// accepted Authorization schemes, matched case-insensitively
var authSchemes = []string{"Token", "Bearer"}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := tokenFromHeader(c.GetHeader("Authorization"))
		if !ok {
			m.prom.IncAuthFailure("missing_token")
			abortUnauthorized(c, "Authentication credentials were not provided.")
			return
		}

		u, err := m.tokens.Verify(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				m.prom.IncAuthFailure("invalid_token")
				abortUnauthorized(c, "Invalid token.")
				return
			}

			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "internal_error",
					"message": "Could not verify token",
				},
			})
			return
		}

		c.Set(ctxUserKey, u)
		c.Set(ctxTokenKey, raw)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))

		c.Next()
	}
}

func tokenFromHeader(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", false
	}

	for _, s := range authSchemes {
		if strings.EqualFold(scheme, s) {
			return raw, true
		}
	}

	return "", false
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Token realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

// Helpers so handlers don't need to know the context keys.

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func TokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxTokenKey)
	if !ok {
		return "", false
	}
	raw, ok := v.(string)
	return raw, ok && raw != ""
}
