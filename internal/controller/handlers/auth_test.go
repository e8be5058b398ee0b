package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"neco/internal/controller/middleware"
	"neco/internal/identity"
	"neco/internal/service"
	"neco/internal/store"
	"neco/pkg/api"

	"github.com/google/uuid"
)

func cookieByName(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignup(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name        string
		session     *identity.Session
		err         error
		wantStatus  int
		wantSession bool
	}{
		{name: "with session", session: &identity.Session{AccessToken: "a", RefreshToken: "r", TokenType: "bearer"}, wantStatus: http.StatusCreated, wantSession: true},
		{name: "confirmation required", wantStatus: http.StatusCreated},
		{name: "duplicate email", err: service.Conflict("email already registered"), wantStatus: http.StatusConflict},
		{name: "weak password", err: service.BadRequest("password must be at least 6 characters"), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.SignUpParams
			h := testHandlers(Deps{Users: &mockUsers{
				signUp: func(p service.SignUpParams) (*store.User, *identity.Session, error) {
					got = p
					if tt.err != nil {
						return nil, nil, tt.err
					}
					return &store.User{ID: userID, Email: p.Email, Role: "user"}, tt.session, nil
				},
			}})

			rr := serve(t, "POST /auth/signup", h.Signup, http.MethodPost, "/auth/signup",
				api.SignupRequest{Email: "ada@example.com", Password: "hunter22"}, nil)

			if rr.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", rr.Code, tt.wantStatus)
			}
			if got.Email != "ada@example.com" || got.Password != "hunter22" {
				t.Errorf("unexpected params %+v", got)
			}
			if tt.err != nil {
				return
			}

			var resp api.SignupResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.User.ID != userID.String() {
				t.Errorf("got user id %s, want %s", resp.User.ID, userID)
			}
			if (resp.Session != nil) != tt.wantSession {
				t.Errorf("session presence = %v, want %v", resp.Session != nil, tt.wantSession)
			}
		})
	}
}

func TestLogin_SetsCookies(t *testing.T) {
	h := testHandlers(Deps{
		Users: &mockUsers{
			login: func(email, password string) (*identity.Session, error) {
				return &identity.Session{AccessToken: "acc", RefreshToken: "ref", TokenType: "bearer", ExpiresIn: 3600}, nil
			},
		},
		Cookies: CookieConfig{Secure: true, Domain: "example.com"},
	})

	rr := serve(t, "POST /auth/login", h.Login, http.MethodPost, "/auth/login",
		api.LoginRequest{Email: "ada@example.com", Password: "hunter22"}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp api.SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.AccessToken != "acc" || resp.RefreshToken != "ref" {
		t.Errorf("unexpected tokens %+v", resp)
	}

	access := cookieByName(rr, middleware.AccessTokenCookie)
	if access == nil || access.Value != "acc" || !access.HttpOnly || !access.Secure || access.MaxAge != 3600 {
		t.Errorf("unexpected access cookie %+v", access)
	}
	if refresh := cookieByName(rr, "refresh_token"); refresh == nil || refresh.Value != "ref" {
		t.Errorf("unexpected refresh cookie %+v", refresh)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := testHandlers(Deps{Users: &mockUsers{
		login: func(email, password string) (*identity.Session, error) {
			return nil, service.Unauthenticated(identity.ErrUnauthenticated)
		},
	}})

	rr := serve(t, "POST /auth/login", h.Login, http.MethodPost, "/auth/login",
		api.LoginRequest{Email: "ada@example.com", Password: "nope"}, nil)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("no cookies expected on failed login")
	}
}

func TestRefresh_FromCookie(t *testing.T) {
	var seen string
	h := testHandlers(Deps{Users: &mockUsers{
		refresh: func(token string) (*identity.Session, error) {
			seen = token
			return &identity.Session{AccessToken: "acc2", RefreshToken: "ref2"}, nil
		},
	}})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "ref1"})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if seen != "ref1" {
		t.Errorf("refresh called with %q, want ref1", seen)
	}
}

func TestRefresh_FromBody(t *testing.T) {
	var seen string
	h := testHandlers(Deps{Users: &mockUsers{
		refresh: func(token string) (*identity.Session, error) {
			seen = token
			return &identity.Session{AccessToken: "acc2", RefreshToken: "ref2"}, nil
		},
	}})

	rr := serve(t, "POST /auth/refresh", h.Refresh, http.MethodPost, "/auth/refresh",
		api.RefreshRequest{RefreshToken: "body-token"}, nil)

	if rr.Code != http.StatusOK || seen != "body-token" {
		t.Errorf("got status %d token %q", rr.Code, seen)
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		logoutErr  error
		wantStatus int
		wantClear  bool
	}{
		{name: "success", header: "Bearer acc", wantStatus: http.StatusOK, wantClear: true},
		{name: "missing token", wantStatus: http.StatusUnauthorized},
		{name: "provider rejects", header: "Bearer old", logoutErr: service.Unauthenticated(errors.New("expired")), wantStatus: http.StatusUnauthorized, wantClear: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := testHandlers(Deps{Users: &mockUsers{
				logout: func(token string) error {
					seen = token
					return tt.logoutErr
				},
			}})

			mux := http.NewServeMux()
			mux.HandleFunc("POST /auth/logout", h.Logout)
			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantStatus)
			}
			c := cookieByName(rr, middleware.AccessTokenCookie)
			if tt.wantClear && (c == nil || c.MaxAge >= 0) {
				t.Errorf("expected access cookie to be cleared, got %+v", c)
			}
			if tt.header != "" && seen == "" {
				t.Error("logout not forwarded to user service")
			}
		})
	}
}

func TestMe(t *testing.T) {
	callerID := uuid.New()
	h := testHandlers(Deps{})

	rr := serve(t, "GET /user/me", h.Me, http.MethodGet, "/user/me", nil, &callerID)
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp api.UserResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.ID != callerID.String() || resp.Email != "ada@example.com" {
		t.Errorf("unexpected user %+v", resp)
	}
}
