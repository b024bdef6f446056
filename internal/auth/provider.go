// Package auth signs users in against the backend (or a local user list),
// keeps them signed in with a JWT session cookie and gates the tracker routes.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"timetracker/internal/tables"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingConfig      = errors.New("auth provider is not configured")
)

// Provider verifies credentials and returns the signed-in identity.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (tables.Identity, error)
}

// RESTProvider uses the backend's password grant. The returned access token
// is forwarded on table requests so row policies see the user.
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTProvider(baseURL, apiKey string, client *http.Client) (*RESTProvider, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: backend URL and public key are required", ErrMissingConfig)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTProvider{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (p *RESTProvider) SignIn(ctx context.Context, email, password string) (tables.Identity, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return tables.Identity{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return tables.Identity{}, fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return tables.Identity{}, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tables.Identity{}, fmt.Errorf("read sign-in response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return tables.Identity{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, tables.DecodeRemoteError("sign in", "auth", resp.StatusCode, payload))
	}
	if resp.StatusCode >= 300 {
		return tables.Identity{}, tables.DecodeRemoteError("sign in", "auth", resp.StatusCode, payload)
	}

	var tr tokenResponse
	if err := json.Unmarshal(payload, &tr); err != nil {
		return tables.Identity{}, fmt.Errorf("decode sign-in response: %w", err)
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return tables.Identity{}, errors.New("sign in: response missing token or user")
	}
	return tables.Identity{UserID: tr.User.ID, Email: tr.User.Email, AccessToken: tr.AccessToken}, nil
}

// LocalProvider checks credentials against bcrypt hashes from configuration.
// User ids are derived from the email, so they stay stable across restarts.
type LocalProvider struct {
	users map[string][]byte
}

// ParseUsers reads "email:bcrypthash" pairs separated by commas.
func ParseUsers(raw string) (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, hash, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(email) == "" || hash == "" {
			return nil, fmt.Errorf("invalid user entry %q: want email:bcrypthash", pair)
		}
		users[strings.ToLower(strings.TrimSpace(email))] = strings.TrimSpace(hash)
	}
	return users, nil
}

func NewLocalProvider(users map[string]string) (*LocalProvider, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: no local users", ErrMissingConfig)
	}
	p := &LocalProvider{users: make(map[string][]byte, len(users))}
	for email, hash := range users {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("user %s: %w", email, err)
		}
		p.users[strings.ToLower(email)] = []byte(hash)
	}
	return p, nil
}

// dummyHash keeps unknown-user sign-ins as slow as known ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timetracker"), bcrypt.MinCost)

func (p *LocalProvider) SignIn(_ context.Context, email, password string) (tables.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, ok := p.users[email]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return tables.Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return tables.Identity{}, ErrInvalidCredentials
	}
	return tables.Identity{UserID: LocalUserID(email), Email: email}, nil
}

// LocalUserID derives a stable UUID for a local user.
func LocalUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(email))).String()
}
