package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"timetracker/internal/tables"
)

const issuer = "timetracker"

var ErrInvalidSession = errors.New("invalid session")

// Claims carried by the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	AccessToken string `json:"bat,omitempty"`
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions uses secret to sign tokens. An empty secret gets a random one,
// which invalidates sessions on restart; the second result reports that.
func NewSessions(secret string, ttl time.Duration) (*Sessions, bool, error) {
	generated := false
	if secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, false, fmt.Errorf("generate session secret: %w", err)
		}
		secret = hex.EncodeToString(b)
		generated = true
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}, generated, nil
}

// TTL is the session lifetime.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for id.
func (s *Sessions) Issue(id tables.Identity) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:       id.Email,
		AccessToken: id.AccessToken,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies a token and returns the identity inside it.
func (s *Sessions) Parse(tokenString string) (tables.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return tables.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid || claims.Subject == "" {
		return tables.Identity{}, ErrInvalidSession
	}
	return tables.Identity{UserID: claims.Subject, Email: claims.Email, AccessToken: claims.AccessToken}, nil
}
