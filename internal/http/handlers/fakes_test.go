package handlers_test

import (
	"context"
	"errors"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/domain/user"
)

type fakeAccounts struct {
	created   []user.User
	createErr error
	updateErr error
	updates   []user.UpdateUserRequest
}

func (f *fakeAccounts) CreateUser(ctx context.Context, email, password, name string) (user.User, error) {
	if f.createErr != nil {
		return user.User{}, f.createErr
	}
	u := user.User{ID: "u-1", Email: email, Name: name, PasswordHash: "hash:" + password, IsActive: true}
	f.created = append(f.created, u)
	return u, nil
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, u user.User, req user.UpdateUserRequest) (user.User, error) {
	if f.updateErr != nil {
		return user.User{}, f.updateErr
	}
	f.updates = append(f.updates, req)
	if req.Name != nil {
		u.Name = *req.Name
	}
	return u, nil
}

type fakeAuthenticator struct {
	u   user.User
	err error
}

func (f fakeAuthenticator) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	if f.err != nil {
		return user.User{}, f.err
	}
	if email != f.u.Email || password != "testpassword" {
		return user.User{}, auth.ErrInvalidCredentials
	}
	return f.u, nil
}

type fakeIssuer struct {
	issueErr  error
	revokeErr error
	revoked   []string
	valid     map[string]user.User
}

func (f *fakeIssuer) Name() string { return "fake" }

func (f *fakeIssuer) Issue(ctx context.Context, u user.User) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	return "tok-" + u.ID, nil
}

func (f *fakeIssuer) Verify(ctx context.Context, raw string) (user.User, error) {
	u, ok := f.valid[raw]
	if !ok {
		return user.User{}, auth.ErrInvalidToken
	}
	return u, nil
}

func (f *fakeIssuer) Revoke(ctx context.Context, raw string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, raw)
	return nil
}

var errStoreDown = errors.New("store down")
