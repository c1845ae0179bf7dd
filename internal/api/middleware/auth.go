package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// BearerAuthMiddleware requires "Authorization: Bearer <token>" matching
// the configured admin token, compared in constant time. It guards the
// config write/history/rollback endpoints only - read-only and
// unauthenticated endpoints never pass through this middleware.
//
// An empty token means auth was never configured; every request is
// rejected rather than silently allowed through, since a misconfigured
// deployment should fail closed on its write surface.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeUnauthorized(w, r, "admin token not configured")
				return
			}

			authHeader := r.Header.Get(AuthorizationHeader)
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			supplied := strings.TrimPrefix(authHeader, prefix)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				writeUnauthorized(w, r, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized JSON response.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	requestID := GetRequestID(r.Context())
	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":       "AUTHENTICATION_ERROR",
			"message":    message,
			"request_id": requestID,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(errorResponse)
}
