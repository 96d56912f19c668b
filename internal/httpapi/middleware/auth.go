package middleware

import (
	"net/http"
	"strings"
)

// Authenticator checks the shared admin secret.
type Authenticator interface {
	Authenticate(given string) bool
}

// ReadSecret returns the secret from "Authorization: Bearer" or X-Admin-Secret.
func ReadSecret(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if k := r.Header.Get("X-Admin-Secret"); k != "" {
		return strings.TrimSpace(k)
	}
	return ""
}

// Forbidden writes the single response used for every rejected secret.
func Forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden"}`))
}

// RequireSecret only permits requests that present the admin secret.
// With no secret configured nothing gets through.
func RequireSecret(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.Authenticate(ReadSecret(r)) {
				next.ServeHTTP(w, r)
				return
			}
			Forbidden(w)
		})
	}
}
