package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spendhub/spendhub/internal/domain/user"
)

// ErrInvalidToken is the only failure Verify reports. Malformed, forged
// and expired tokens are indistinguishable at this boundary so callers
// cannot leak the reason to a client.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role   string `json:"role"`
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens. It holds no per-session
// state; a token plus the secret is everything needed to re-derive the
// actor on any instance.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the clock. Used by tests to probe the expiry
// boundary without sleeping.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue embeds the user's email as subject plus role and id, stamped
// with issuedAt=now and expiresAt=now+TTL.
func (m *Manager) Issue(u user.User) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		Role:   u.Role,
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(m.secret)
}

// Verify checks the signature first, then expiry against the manager's
// clock. The expiry boundary is exclusive: a token presented exactly at
// expiresAt is already invalid.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithTimeFunc(m.now))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExtractSubject returns the token's subject (email) or absent. It never
// errors: a bad token simply yields no identity.
func (m *Manager) ExtractSubject(tokenStr string) (string, bool) {
	claims, err := m.Verify(tokenStr)

	if err != nil {
		return "", false
	}

	return claims.Subject, true
}

// ExtractUserID returns the token's user id or absent.
func (m *Manager) ExtractUserID(tokenStr string) (string, bool) {
	claims, err := m.Verify(tokenStr)

	if err != nil {
		return "", false
	}

	return claims.UserID, true
}
