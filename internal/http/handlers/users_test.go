package handlers_test

import (
	"net/http"
	"testing"

	"github.com/spendhub/spendhub/internal/domain/user"
)

func TestMeReturnsOwnRecord(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodGet, "/users/me", env.token(t, alice), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["id"] != alice.ID {
		t.Errorf("id = %v, want %s", body["id"], alice.ID)
	}
	if _, ok := body["passwordHash"]; ok {
		t.Error("passwordHash leaked in response")
	}
}

func TestGetUserForbiddenForOtherNonAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)
	bob := env.addUser(t, "bob", "bob@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodGet, "/users/"+bob.ID, env.token(t, alice), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAdminReadsAnyUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "root", "root@example.com", "password123", user.RoleAdmin)
	bob := env.addUser(t, "bob", "bob@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodGet, "/users/"+bob.ID, env.token(t, admin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestListUsersAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)
	admin := env.addUser(t, "root", "root@example.com", "password123", user.RoleAdmin)

	if rec := env.do(t, http.MethodGet, "/users", env.token(t, alice), nil); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin: status = %d, want 403", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/users", env.token(t, admin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
}

func TestUpdateOwnProfile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodPatch, "/users/"+alice.ID, env.token(t, alice), map[string]any{
		"username": "alice2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["username"] != "alice2" {
		t.Errorf("username = %v, want alice2", body["username"])
	}
}

func TestNonAdminCannotChangeOwnRole(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodPatch, "/users/"+alice.ID, env.token(t, alice), map[string]any{
		"role": user.RoleAdmin,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (%s)", rec.Code, rec.Body.String())
	}

	u, err := env.users.GetByID(t.Context(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != user.RoleUser {
		t.Errorf("role = %s, want unchanged", u.Role)
	}
}

func TestAdminDisablesUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "root", "root@example.com", "password123", user.RoleAdmin)
	bob := env.addUser(t, "bob", "bob@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodPatch, "/users/"+bob.ID, env.token(t, admin), map[string]any{
		"enabled": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	// the disabled account is locked out on its very next request
	rec = env.do(t, http.MethodGet, "/users/me", env.token(t, bob), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("disabled user status = %d, want 401", rec.Code)
	}
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "root", "root@example.com", "password123", user.RoleAdmin)

	rec := env.do(t, http.MethodDelete, "/users/"+admin.ID, env.token(t, admin), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestUserDeletesOwnAccount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "alice@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodDelete, "/users/"+alice.ID, env.token(t, alice), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}

	// their token dies with the record
	rec = env.do(t, http.MethodGet, "/users/me", env.token(t, alice), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user status = %d, want 401", rec.Code)
	}
}

func TestAdminCreatesUserWithRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "root", "root@example.com", "password123", user.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/users", env.token(t, admin), map[string]any{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "password123",
		"role":     user.RoleAdmin,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["role"] != user.RoleAdmin {
		t.Errorf("role = %v, want ADMIN", body["role"])
	}
}

func TestCreateUserDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "root", "root@example.com", "password123", user.RoleAdmin)
	env.addUser(t, "bob", "bob@example.com", "password123", user.RoleUser)

	rec := env.do(t, http.MethodPost, "/users", env.token(t, admin), map[string]any{
		"username": "bob2",
		"email":    "bob@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (%s)", rec.Code, rec.Body.String())
	}
}
