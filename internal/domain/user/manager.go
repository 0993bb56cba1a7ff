package user

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/accounts/internal/security"
	"github.com/google/uuid"
)

// Store is the persistence contract shared by the postgres and memory repos.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u User) (User, error)
}

// Manager creates and mutates users. It does not validate password strength;
// request payloads carry those rules.
type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) CreateUser(ctx context.Context, email, password, name string) (User, error) {
	return m.create(ctx, email, password, name, false)
}

func (m *Manager) CreateSuperuser(ctx context.Context, email, password, name string) (User, error) {
	return m.create(ctx, email, password, name, true)
}

func (m *Manager) create(ctx context.Context, email, password, name string, super bool) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrEmailRequired
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := m.now()

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
		IsStaff:      super,
		IsSuperuser:  super,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return m.store.Create(ctx, u)
}

// UpdateProfile applies the non-nil fields of req to u and persists it.
func (m *Manager) UpdateProfile(ctx context.Context, u User, req UpdateUserRequest) (User, error) {
	if req.Name != nil {
		u.Name = *req.Name
	}

	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	u.UpdatedAt = m.now()

	return m.store.Update(ctx, u)
}

func (m *Manager) Exists(ctx context.Context, email string) (bool, error) {
	return m.store.ExistsByEmail(ctx, NormalizeEmail(email))
}
