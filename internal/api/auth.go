package api

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyAuth requires the X-API-Key header to equal key. An empty key
// disables the check.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
