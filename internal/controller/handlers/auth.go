package handlers

import (
	"net/http"
	"time"

	"neco/internal/controller/middleware"
	"neco/internal/identity"
	"neco/internal/service"
	"neco/pkg/api"
)

const (
	refreshTokenCookie = "refresh_token"
	refreshCookieTTL   = 30 * 24 * time.Hour
)

// Signup handles POST /auth/signup.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, session, err := h.users.SignUp(r.Context(), service.SignUpParams{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Role:     req.Role,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	msg := "signup successful"
	if session == nil {
		msg = "signup successful, confirm your email before logging in"
	}
	h.respondJson(w, http.StatusCreated, api.SignupResponse{
		User:    toUser(user),
		Session: toSession(session),
		Message: msg,
	})
}

// Login handles POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.setSessionCookies(w, session)
	h.respondJson(w, http.StatusOK, toSession(session))
}

// Refresh handles POST /auth/refresh. The token comes from the body or the
// refresh_token cookie.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	if req.RefreshToken == "" {
		if c, err := r.Cookie(refreshTokenCookie); err == nil {
			req.RefreshToken = c.Value
		}
	}

	session, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.setSessionCookies(w, session)
	h.respondJson(w, http.StatusOK, toSession(session))
}

// Logout handles POST /auth/logout. Cookies are cleared even when the
// provider rejects the token.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.AccessToken(r)
	if token == "" {
		h.httpError(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	err := h.users.Logout(r.Context(), token)
	h.clearSessionCookies(w)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.MessageResponse{Message: "logged out"})
}

// Me handles GET /user/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.httpError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if caller.Profile != nil {
		h.respondJson(w, http.StatusOK, toUser(caller.Profile))
		return
	}
	h.respondJson(w, http.StatusOK, api.UserResponse{
		ID:    caller.Auth.ID.String(),
		Email: caller.Auth.Email,
		Role:  caller.Auth.Role,
	})
}

func (h *Handlers) setSessionCookies(w http.ResponseWriter, s *identity.Session) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, s.AccessToken, s.ExpiresIn))
	http.SetCookie(w, h.cookie(refreshTokenCookie, s.RefreshToken, int(refreshCookieTTL.Seconds())))
}

func (h *Handlers) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, "", -1))
	http.SetCookie(w, h.cookie(refreshTokenCookie, "", -1))
}

func (h *Handlers) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
