package user

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/accounts/internal/security"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrEmailRequired = errors.New("users must have an email address")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Name         string    `json:"name"`
	IsActive     bool      `json:"isActive"`
	IsStaff      bool      `json:"isStaff"`
	IsSuperuser  bool      `json:"isSuperuser"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CheckPassword reports whether plain matches the stored hash.
func (u User) CheckPassword(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return security.CheckPassword(u.PasswordHash, plain) == nil
}

// Profile is the public view returned by the API.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u User) Profile() Profile {
	return Profile{Email: u.Email, Name: u.Name}
}

// Registration payload. Password length is enforced here and nowhere else.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=128,bcryptmax"`
	Name     string `json:"name" binding:"required,notblank,max=255"`
}

type TokenRequest struct {
	Email    string `json:"email" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

// partial update, nil fields are left untouched
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,notblank,max=255"`
	Password *string `json:"password" binding:"omitempty,min=8,max=128,bcryptmax"`
}

// NormalizeEmail lower-cases the domain part and keeps the local part as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}

	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
