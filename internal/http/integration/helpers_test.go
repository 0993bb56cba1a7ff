package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/cache"
	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/db"
	"github.com/geocoder89/accounts/internal/domain/user"
	apphttp "github.com/geocoder89/accounts/internal/http"
	"github.com/geocoder89/accounts/internal/repo/memory"
	"github.com/geocoder89/accounts/internal/repo/postgres"
	"github.com/geocoder89/accounts/internal/security"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	security.BcryptCost = bcrypt.MinCost
}

// env is one fully wired API plus direct access to its user store.
type env struct {
	router   http.Handler
	users    user.Store
	accounts *user.Manager
}

func testConfig(backend string) config.Config {
	return config.Config{
		Env:                     "test",
		TokenBackend:            backend,
		JWTSecret:               "integration-test-secret",
		JWTTTLMinutes:           60,
		TokenCacheTTLSeconds:    60,
		TokenRateLimitPerMinute: 0,
	}
}

func newEnv(t *testing.T, cfg config.Config, users user.Store, tokens auth.TokenStore) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	accounts := user.NewManager(users)
	tokenCache := cache.New(cfg.TokenCacheTTL())

	var issuer auth.Issuer
	switch cfg.TokenBackend {
	case config.TokenBackendJWT:
		issuer = auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL(), users, tokenCache)
	default:
		issuer = auth.NewKeyIssuer(tokens, users, tokenCache, cfg.TokenCacheTTL())
	}

	router := apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Users:  accounts,
		Creds:  auth.NewBackend(users),
		Tokens: issuer,
	})

	return env{router: router, users: users, accounts: accounts}
}

func newMemoryEnv(t *testing.T, backend string) env {
	return newEnv(t, testConfig(backend), memory.NewUsersRepo(), memory.NewTokensRepo())
}

func newPostgresEnv(t *testing.T) env {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := pool.Exec(ctx, `TRUNCATE auth_tokens, users CASCADE`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	return newEnv(t, testConfig(config.TokenBackendKey), postgres.NewUsersRepo(pool, nil), postgres.NewTokensRepo(pool, nil))
}

func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)

	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func mustCreateUser(t *testing.T, e env, email, password, name string) user.User {
	t.Helper()
	u, err := e.accounts.CreateUser(context.Background(), email, password, name)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustGetToken(t *testing.T, e env, email, password string) string {
	t.Helper()

	w := doRequest(e.router, http.MethodPost, "/api/user/token",
		`{"email":"`+email+`","password":"`+password+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("token: got %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var body map[string]any
	mustReadJSON(t, w, &body)

	tok, _ := body["token"].(string)
	if tok == "" {
		t.Fatalf("token missing from body=%s", w.Body.String())
	}
	return tok
}

func doRequestWithType(router http.Handler, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
