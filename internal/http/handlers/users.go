package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/geocoder89/accounts/internal/security"
	"github.com/gin-gonic/gin"
)

type AccountManager interface {
	CreateUser(ctx context.Context, email, password, name string) (user.User, error)
	UpdateProfile(ctx context.Context, u user.User, req user.UpdateUserRequest) (user.User, error)
}

type UsersHandler struct {
	users AccountManager
	prom  *observability.Prom
}

func NewUsersHandler(users AccountManager, prom *observability.Prom) *UsersHandler {
	return &UsersHandler{users: users, prom: prom}
}

// requestContext bounds store work by d while keeping the request's trace and ids.
func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

func respondPasswordTooLong(ctx *gin.Context) {
	RespondFieldError(ctx, "invalid_request", "password", "bcryptmax", validationMessage("bcryptmax", "", reflect.String))
}

// POST /api/user/create
func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt is the slow part, allow for it
	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	u, err := h.users.CreateUser(cctx, req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondFieldError(ctx, "email_taken", "email", "unique", "user with this email already exists.")
		case errors.Is(err, user.ErrEmailRequired):
			RespondFieldError(ctx, "invalid_request", "email", "required", "This field is required.")
		case errors.Is(err, security.ErrPasswordTooLong):
			respondPasswordTooLong(ctx)
		default:
			_ = ctx.Error(err)
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	h.prom.IncUserCreated()
	slog.Default().InfoContext(cctx, "user.created", "user_id", u.ID)

	ctx.JSON(http.StatusCreated, u.Profile())
}

// GET /api/user/me
func (h *UsersHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication credentials were not provided.")
		return
	}

	ctx.JSON(http.StatusOK, u.Profile())
}

// PATCH /api/user/me
func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication credentials were not provided.")
		return
	}

	var req user.UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	updated, err := h.users.UpdateProfile(cctx, u, req)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// deleted between auth and update
			RespondUnauthorized(ctx, "Invalid token.")
			return
		}
		if errors.Is(err, security.ErrPasswordTooLong) {
			respondPasswordTooLong(ctx)
			return
		}
		_ = ctx.Error(err)
		RespondInternal(ctx, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, updated.Profile())
}
