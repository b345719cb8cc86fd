package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spendhub/spendhub/internal/domain/user"
)

func TestRegisterIssuesToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	token, _ := body["accessToken"].(string)
	if token == "" {
		t.Fatal("accessToken missing")
	}

	u, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatal("user missing")
	}
	if u["role"] != user.RoleUser {
		t.Errorf("role = %v, want USER regardless of input", u["role"])
	}
	if _, leaked := u["passwordHash"]; leaked {
		t.Error("passwordHash leaked in response")
	}

	// the issued token works against a protected route
	rec = env.do(t, http.MethodGet, "/users/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token rejected: status = %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (%s)", rec.Code, rec.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"short password", map[string]any{"username": "alice", "email": "alice@example.com", "password": "short"}},
		{"bad email", map[string]any{"username": "alice", "email": "not-an-email", "password": "password123"}},
		{"short username", map[string]any{"username": "al", "email": "alice@example.com", "password": "password123"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", "", c.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLoginHappyPath(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["accessToken"] == "" {
		t.Error("accessToken missing")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	wrongPass := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	unknown := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "nobody@example.com",
		"password": "password123",
	})

	// identical failures so callers cannot probe which emails exist
	if wrongPass.Code != unknown.Code {
		t.Errorf("codes differ: %d vs %d", wrongPass.Code, unknown.Code)
	}
	if decodeBody(t, wrongPass)["error"].(map[string]any)["code"] != decodeBody(t, unknown)["error"].(map[string]any)["code"] {
		t.Error("error codes differ between wrong password and unknown email")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)
	alice.Enabled = false
	env.users.byID[alice.ID] = alice

	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRequiresJSONContentType(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=a@b.c"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestProtectedRouteRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/users/me", "not.a.jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
