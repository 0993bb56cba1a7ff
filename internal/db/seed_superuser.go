package db

import (
	"context"
	"fmt"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/domain/user"
)

type SuperuserCreator interface {
	Exists(ctx context.Context, email string) (bool, error)
	CreateSuperuser(ctx context.Context, email, password, name string) (user.User, error)
}

// EnsureSuperuser creates the configured admin account on first boot. It is a
// no-op when ADMIN_EMAIL or ADMIN_PASSWORD is unset or the user already exists.
func EnsureSuperuser(ctx context.Context, users SuperuserCreator, cfg config.Config) (created bool, err error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	exists, err := users.Exists(ctx, cfg.AdminEmail)
	if err != nil {
		return false, fmt.Errorf("check superuser: %w", err)
	}

	if exists {
		return false, nil
	}

	if _, err := users.CreateSuperuser(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		return false, fmt.Errorf("create superuser: %w", err)
	}

	return true, nil
}
