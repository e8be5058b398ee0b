package middleware

import (
	"net/http"
	"strings"

	"neco/internal/auth"
)

// RequireInternalAuth admits only requests bearing the shared secret. An
// empty secret disables the guarded routes.
func RequireInternalAuth(secret string) func(http.Handler) http.Handler {
	matcher := auth.NewMatcher(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, "internal API disabled", http.StatusServiceUnavailable)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			if !matcher.Match(parts[1]) {
				writeError(w, "invalid authorization token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
