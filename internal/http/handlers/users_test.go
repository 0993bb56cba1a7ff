package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/security"
	"github.com/gin-gonic/gin"
)

func usersRouter(accounts *fakeAccounts, issuer *fakeIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := handlers.NewUsersHandler(accounts, nil)
	authMw := middlewares.NewAuthMiddleware(issuer, nil)

	r := gin.New()
	r.POST("/api/user/create", h.Create)
	r.GET("/api/user/me", authMw.RequireAuth(), h.Me)
	r.PATCH("/api/user/me", authMw.RequireAuth(), h.UpdateMe)
	return r
}

func TestUsersHandler_Create(t *testing.T) {
	accounts := &fakeAccounts{}
	r := usersRouter(accounts, &fakeIssuer{})

	w := postJSON(r, http.MethodPost, "/api/user/create", `{"email":"test@test.com","password":"testpassword","name":"test name"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201, body=%s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["email"] != "test@test.com" || body["name"] != "test name" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["password"]; ok {
		t.Fatalf("password must not be echoed: %v", body)
	}
	if strings.Contains(w.Body.String(), "testpassword") {
		t.Fatalf("response leaks the password: %s", w.Body.String())
	}
	if len(accounts.created) != 1 {
		t.Fatalf("created %d users, want 1", len(accounts.created))
	}
}

func TestUsersHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name:       "duplicate email",
			body:       `{"email":"test@test.com","password":"testpassword","name":"Test"}`,
			createErr:  user.ErrEmailTaken,
			wantStatus: http.StatusBadRequest,
			wantCode:   "email_taken",
			wantField:  "email",
		},
		{
			name:       "short password",
			body:       `{"email":"test@test.com","password":"test","name":"Test"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
			wantField:  "password",
		},
		{
			name:       "missing name",
			body:       `{"email":"test@test.com","password":"testpassword"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
			wantField:  "name",
		},
		{
			name:       "password too long for hashing",
			body:       `{"email":"test@test.com","password":"testpassword","name":"Test"}`,
			createErr:  fmt.Errorf("hash password: %w", security.ErrPasswordTooLong),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
			wantField:  "password",
		},
		{
			name:       "store failure",
			body:       `{"email":"test@test.com","password":"testpassword","name":"Test"}`,
			createErr:  fmt.Errorf("insert user: %w", errStoreDown),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &fakeAccounts{createErr: tt.createErr}
			w := postJSON(usersRouter(accounts, &fakeIssuer{}), http.MethodPost, "/api/user/create", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			resp := decodeError(t, w)
			if resp.Error.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
			if tt.wantField != "" {
				if _, ok := fieldsByName(resp)[tt.wantField]; !ok {
					t.Fatalf("expected field error on %q, got %+v", tt.wantField, resp.Error.Details.Fields)
				}
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(w.Body.String(), "store down") {
				t.Fatalf("internal error details leaked: %s", w.Body.String())
			}
			if len(accounts.created) != 0 {
				t.Fatalf("no user should be created, got %d", len(accounts.created))
			}
		})
	}
}

func TestUsersHandler_Me(t *testing.T) {
	me := user.User{ID: "u-1", Email: "test@test.com", Name: "Test", IsActive: true}
	issuer := &fakeIssuer{valid: map[string]user.User{"good": me}}
	r := usersRouter(&fakeAccounts{}, issuer)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "token scheme", header: "Token good", wantStatus: http.StatusOK},
		{name: "bearer scheme", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lower-case scheme", header: "token good", wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Token bad", wantStatus: http.StatusUnauthorized},
		{name: "unknown scheme", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "no credentials", header: "Token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus != http.StatusOK {
				if w.Header().Get("WWW-Authenticate") == "" {
					t.Fatalf("401 should carry WWW-Authenticate")
				}
				return
			}

			var p user.Profile
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p != me.Profile() {
				t.Fatalf("profile = %+v, want %+v", p, me.Profile())
			}
		})
	}
}

func TestUsersHandler_UpdateMe(t *testing.T) {
	me := user.User{ID: "u-1", Email: "test@test.com", Name: "Old", IsActive: true}
	accounts := &fakeAccounts{}
	r := usersRouter(accounts, &fakeIssuer{valid: map[string]user.User{"good": me}})

	req := httptest.NewRequest(http.MethodPatch, "/api/user/me", strings.NewReader(`{"name":"New","password":"newpassword"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token good")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var p user.Profile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "New" {
		t.Fatalf("name = %q, want New", p.Name)
	}

	if len(accounts.updates) != 1 || accounts.updates[0].Password == nil || *accounts.updates[0].Password != "newpassword" {
		t.Fatalf("password change was not forwarded: %+v", accounts.updates)
	}
}

func TestUsersHandler_UpdateMeRejectsShortPassword(t *testing.T) {
	me := user.User{ID: "u-1", Email: "test@test.com", Name: "Old", IsActive: true}
	accounts := &fakeAccounts{}
	r := usersRouter(accounts, &fakeIssuer{valid: map[string]user.User{"good": me}})

	req := httptest.NewRequest(http.MethodPatch, "/api/user/me", strings.NewReader(`{"password":"short"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token good")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
	if len(accounts.updates) != 0 {
		t.Fatalf("update must not run on invalid input")
	}
}
