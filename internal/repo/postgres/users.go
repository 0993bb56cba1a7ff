package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usersEmailConstraint = "users_email_key"

const userColumns = `id, email, password_hash, name, is_active, is_staff, is_superuser, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return r.prom.ObserveDB(ctx, op, fn)
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe(ctx, "users.create", func(ctx context.Context) error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.IsActive, u.IsStaff, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
		)
		return e
	})

	if err != nil {
		if isEmailConflict(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool

	err := r.observe(ctx, "users.exists_by_email", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
		).Scan(&exists)
	})

	return exists, err
}

func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	var tag pgconn.CommandTag

	err := r.observe(ctx, "users.update", func(ctx context.Context) error {
		var e error
		tag, e = r.pool.Exec(ctx, `
			UPDATE users
			SET email = $2, password_hash = $3, name = $4, is_active = $5,
			    is_staff = $6, is_superuser = $7, updated_at = $8
			WHERE id = $1
		`, u.ID, u.Email, u.PasswordHash, u.Name, u.IsActive, u.IsStaff, u.IsSuperuser, u.UpdatedAt)
		return e
	})

	if err != nil {
		if isEmailConflict(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	if tag.RowsAffected() == 0 {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg any) (user.User, error) {
	var u user.User

	err := r.observe(ctx, op, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, arg).Scan(
			&u.ID,
			&u.Email,
			&u.PasswordHash,
			&u.Name,
			&u.IsActive,
			&u.IsStaff,
			&u.IsSuperuser,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func isEmailConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == usersEmailConstraint
}
