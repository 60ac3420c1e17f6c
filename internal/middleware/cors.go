package middleware

import (
	"net/http"
	"strings"
)

const defaultAllowedOrigin = "http://localhost:3000"

// CORS allows browser clients from the configured origin. An empty origin
// falls back to the local frontend.
func CORS(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = defaultAllowedOrigin
	}
	methods := strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions,
	}, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
