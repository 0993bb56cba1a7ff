package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
		Details   struct {
			JSON           string                `json:"json"`
			Field          string                `json:"field"`
			Fields         []handlers.FieldError `json:"fields"`
			NonFieldErrors []string              `json:"nonFieldErrors"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp
}

func fieldsByName(resp errorResponse) map[string]handlers.FieldError {
	out := map[string]handlers.FieldError{}
	for _, fe := range resp.Error.Details.Fields {
		out[fe.Field] = fe
	}
	return out
}

func bindRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/users", func(ctx *gin.Context) {
		var req user.CreateUserRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	r.PATCH("/me", func(ctx *gin.Context) {
		var req user.UpdateUserRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusOK)
	})
	return r
}

func postJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	w := postJSON(bindRouter(), http.MethodPost, "/users", `{"email":"not-an-email","password":"short","name":"   "}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	resp := decodeError(t, w)
	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	wantRules := map[string]string{
		"email":    "email",
		"password": "min",
		"name":     "notblank",
	}

	found := fieldsByName(resp)
	for field, rule := range wantRules {
		fe, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fe.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fe.Rule, rule)
		}
		if fe.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}

	if got := found["password"].Message; !strings.Contains(got, "8 characters") {
		t.Fatalf("password message = %q, want it to mention 8 characters", got)
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	w := postJSON(bindRouter(), http.MethodPost, "/users", `{"email":"a@b.com","password":"testpassword","name":42}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	resp := decodeError(t, w)
	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "name" {
		t.Fatalf("expected detail field to be name, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 || resp.Error.Details.Fields[0].Rule != "type" {
		t.Fatalf("expected a type rule in details.fields, got %+v", resp.Error.Details.Fields)
	}
}

func TestBindJSON_SyntaxAndEmptyBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: "empty_body"},
		{name: "truncated", body: `{"email":`, want: "invalid_json_syntax"},
		{name: "garbage", body: `{email}`, want: "invalid_json_syntax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(bindRouter(), http.MethodPost, "/users", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Error.Details.JSON; got != tt.want {
				t.Fatalf("details.json = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBindJSON_PartialUpdate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{name: "empty object", body: `{}`, wantStatus: http.StatusOK},
		{name: "name only", body: `{"name":"New"}`, wantStatus: http.StatusOK},
		{name: "blank name", body: `{"name":""}`, wantStatus: http.StatusBadRequest, wantField: "name"},
		{name: "short password", body: `{"password":"abc"}`, wantStatus: http.StatusBadRequest, wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(bindRouter(), http.MethodPatch, "/me", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantField == "" {
				return
			}
			if _, ok := fieldsByName(decodeError(t, w))[tt.wantField]; !ok {
				t.Fatalf("expected a field error for %q, body=%s", tt.wantField, w.Body.String())
			}
		})
	}
}

func TestBindJSON_BodyOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/users", func(ctx *gin.Context) {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, 16)
		var req user.CreateUserRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})

	w := postJSON(r, http.MethodPost, "/users", `{"email":"someone@example.com","password":"testpassword","name":"x"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want 413, body=%s", w.Code, w.Body.String())
	}
}

func TestBindJSON_PasswordOverBcryptLimit(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		password string
		want     int
	}{
		{name: "72 ascii bytes", method: http.MethodPost, path: "/users", password: strings.Repeat("a", 72), want: http.StatusCreated},
		{name: "100 ascii bytes", method: http.MethodPost, path: "/users", password: strings.Repeat("a", 100), want: http.StatusBadRequest},
		{name: "50 runes 100 bytes", method: http.MethodPost, path: "/users", password: strings.Repeat("é", 50), want: http.StatusBadRequest},
		{name: "update 100 ascii bytes", method: http.MethodPatch, path: "/me", password: strings.Repeat("a", 100), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"email":"test@test.com","password":"` + tt.password + `","name":"Test"}`
			w := postJSON(bindRouter(), tt.method, tt.path, body)

			if w.Code != tt.want {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.want, w.Body.String())
			}
			if tt.want != http.StatusBadRequest {
				return
			}

			fe, ok := fieldsByName(decodeError(t, w))["password"]
			if !ok || fe.Rule != "bcryptmax" {
				t.Fatalf("expected a bcryptmax error on password, body=%s", w.Body.String())
			}
		})
	}
}
