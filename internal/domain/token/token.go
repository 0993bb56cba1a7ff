package token

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("token not found")

// Token is the opaque per-user key handed out by the token endpoint.
type Token struct {
	Key       string
	UserID    string
	CreatedAt time.Time
}
