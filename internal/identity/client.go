// Package identity is a client for the Supabase GoTrue auth API.
package identity

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
)

var (
	// ErrUnauthenticated covers rejected credentials and invalid or expired tokens.
	ErrUnauthenticated = errors.New("identity: unauthenticated")
	// ErrUpstream means the provider could not be reached or failed.
	ErrUpstream = errors.New("identity: provider unavailable")
)

// User is the provider's view of an account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	Aud       string    `json:"aud,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Session is a token pair issued by the provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Config holds the provider endpoint and keys.
type Config struct {
	URL       string
	AnonKey   string
	JWTSecret string // optional; enables local access token verification
	Timeout   time.Duration
}

// Client talks to the GoTrue REST API.
type Client struct {
	baseURL    string
	anonKey    string
	verifier   *Verifier
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.JWTSecret != "" {
		c.verifier = NewVerifier(cfg.JWTSecret)
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers an account. The session is nil when the provider
// requires email confirmation before issuing tokens.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, *Session, error) {
	// The response is a session when auto-confirm is on, a bare user otherwise.
	var resp struct {
		Session
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	}
	if err := c.do(ctx, http.MethodPost, "/signup", "", credentials{email, password}, &resp); err != nil {
		return nil, nil, err
	}

	if resp.AccessToken != "" && resp.User != nil {
		session := resp.Session
		return session.User, &session, nil
	}
	if resp.ID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: signup response has no user", ErrUpstream)
	}
	return &User{ID: resp.ID, Email: resp.Email}, nil, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", credentials{email, password}, &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token issued", ErrUnauthenticated)
	}
	return &session, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var session Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token issued", ErrUnauthenticated)
	}
	return &session, nil
}

// SignOut revokes the refresh tokens of the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// GetUser resolves an access token. Tokens are checked locally first when a
// JWT secret is configured.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	if c.verifier != nil {
		if user, err := c.verifier.Verify(accessToken); err == nil {
			return user, nil
		}
	}

	var user User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return &user, nil
}

// providerError is the union of the error shapes GoTrue has used.
type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e providerError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var pe providerError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &pe) == nil && pe.text() != "" {
			msg = pe.text()
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
		}
		return fmt.Errorf("%w: %s", ErrUnauthenticated, msg)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}
	return nil
}
