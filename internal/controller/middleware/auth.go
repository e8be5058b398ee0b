// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"neco/internal/service"
)

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "access_token"

// Authenticator resolves an access token to the calling user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*service.Caller, error)
}

type callerKey struct{}

// NewContextWithCaller returns a copy of ctx carrying caller.
func NewContextWithCaller(ctx context.Context, caller *service.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (*service.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(*service.Caller)
	return caller, ok && caller != nil
}

// AccessToken returns the bearer token from the Authorization header, or
// from the access_token cookie when the header is absent.
func AccessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// Auth rejects requests without a valid access token and stores the caller
// in the request context.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" {
				writeError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			caller, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if service.KindOf(err) == service.KindUpstream {
					writeError(w, service.MessageOf(err), http.StatusBadGateway)
					return
				}
				writeError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithCaller(r.Context(), caller)))
		})
	}
}
