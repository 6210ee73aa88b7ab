// Package middleware provides HTTP middleware for the coaching API.
package middleware

import (
	"net/http"
	"strings"
)

// allowedHeaders includes the tab session header the frontend sends on every call.
var allowedHeaders = strings.Join([]string{"Content-Type", "X-Coach-Session-ID"}, ", ")

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed, explicit := matchOrigin(allowedOrigins, origin)
			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Add("Vary", "Origin")
				// Credentials only for explicitly listed origins; a wildcard echo would enable CSRF.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowedOrigins []string, origin string) (allowed, explicit bool) {
	for _, o := range allowedOrigins {
		if o == origin && o != "*" {
			return true, true
		}
		if o == "*" {
			allowed = true
		}
	}
	return allowed, false
}

// Origins returns the allowed origin list for a frontend URL. An empty URL
// allows any origin, which is only used in development.
func Origins(frontendURL string) []string {
	frontendURL = strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	if frontendURL == "" {
		return []string{"*"}
	}
	return []string{frontendURL}
}
