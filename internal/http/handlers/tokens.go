package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (user.User, error)
}

type TokenIssuer interface {
	Name() string
	Issue(ctx context.Context, u user.User) (string, error)
	Revoke(ctx context.Context, raw string) error
}

type TokensHandler struct {
	creds  Authenticator
	tokens TokenIssuer
	prom   *observability.Prom
}

func NewTokensHandler(creds Authenticator, tokens TokenIssuer, prom *observability.Prom) *TokensHandler {
	return &TokensHandler{creds: creds, tokens: tokens, prom: prom}
}

const invalidCredentialsMessage = "Unable to authenticate with provided credentials"

// POST /api/user/token
func (h *TokensHandler) Create(ctx *gin.Context) {
	var req user.TokenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	u, err := h.creds.Authenticate(cctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.prom.IncAuthFailure("invalid_credentials")
			RespondError(ctx, http.StatusBadRequest, "invalid_credentials", invalidCredentialsMessage, gin.H{
				"nonFieldErrors": []string{invalidCredentialsMessage},
			})
			return
		}
		_ = ctx.Error(err)
		RespondInternal(ctx, "Could not authenticate")
		return
	}

	raw, err := h.tokens.Issue(cctx, u)
	if err != nil {
		_ = ctx.Error(err)
		RespondInternal(ctx, "Could not issue token")
		return
	}

	h.prom.IncTokenIssued(h.tokens.Name())

	ctx.JSON(http.StatusOK, gin.H{"token": raw})
}

// DELETE /api/user/token revokes the token used on this request.
func (h *TokensHandler) Revoke(ctx *gin.Context) {
	raw, ok := middlewares.TokenFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication credentials were not provided.")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	if err := h.tokens.Revoke(cctx, raw); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			RespondUnauthorized(ctx, "Invalid token.")
			return
		}
		_ = ctx.Error(err)
		RespondInternal(ctx, "Could not revoke token")
		return
	}

	ctx.Status(http.StatusNoContent)
}
