package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/spendhub/spendhub/internal/domain/user"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 256 bits

func testUser() user.User {
	return user.User{
		ID:      "7",
		Email:   "a@b.com",
		Role:    user.RoleUser,
		Enabled: true,
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	if claims.Subject != "a@b.com" {
		t.Fatalf("subject = %q, want a@b.com", claims.Subject)
	}
	if claims.UserID != "7" {
		t.Fatalf("userId = %q, want 7", claims.UserID)
	}
	if claims.Role != user.RoleUser {
		t.Fatalf("role = %q, want %q", claims.Role, user.RoleUser)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		t.Fatalf("expiresAt %v not after issuedAt %v", claims.ExpiresAt, claims.IssuedAt)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token parts, got %d", len(parts))
	}

	// Flip each byte of the payload in turn; every mutation must fail.
	// The final byte is skipped: base64 ignores residual bits there, so
	// two encodings can decode to identical payload bytes.
	payload := []byte(parts[1])
	for i := range payload[:len(payload)-1] {
		mutated := make([]byte, len(payload))
		copy(mutated, payload)

		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}

		bad := parts[0] + "." + string(mutated) + "." + parts[2]
		if _, err := m.Verify(bad); err == nil {
			t.Fatalf("mutation at byte %d verified successfully", i)
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	other := NewManager("another-secret-another-secret-32", time.Hour)

	if _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour

	clock := issuedAt
	m := NewManager(testSecret, ttl).WithClock(func() time.Time { return clock })

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// just before expiry: valid
	clock = issuedAt.Add(ttl - time.Second)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("token invalid just before expiry: %v", err)
	}

	// exactly at expiry: invalid (boundary is exclusive)
	clock = issuedAt.Add(ttl)
	if _, err := m.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken at expiry instant, got %v", err)
	}

	// after expiry: invalid
	clock = issuedAt.Add(61 * time.Minute)
	if _, err := m.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestExtract_AbsentOnFailure(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	if _, ok := m.ExtractSubject("not-a-token"); ok {
		t.Fatalf("ExtractSubject returned present for garbage input")
	}
	if _, ok := m.ExtractUserID("not-a-token"); ok {
		t.Fatalf("ExtractUserID returned present for garbage input")
	}

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	sub, ok := m.ExtractSubject(token)
	if !ok || sub != "a@b.com" {
		t.Fatalf("ExtractSubject = (%q,%v), want (a@b.com,true)", sub, ok)
	}

	id, ok := m.ExtractUserID(token)
	if !ok || id != "7" {
		t.Fatalf("ExtractUserID = (%q,%v), want (7,true)", id, ok)
	}
}
