// Package middleware contains the HTTP middleware chain of the sync server.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tabsync/tabsync/pkg/api"
)

// AuthMiddleware checks the shared-secret password carried as a Bearer
// token. An empty configured password disables authentication entirely; the
// open default is intentional for trusted-network deployments.
func AuthMiddleware(logger *slog.Logger, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeUnauthorized(w, "missing credentials")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("Invalid Authorization header format")
				writeUnauthorized(w, "invalid authorization format")
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(password)) != 1 {
				logger.Warn("Password rejected", "remote_addr", r.RemoteAddr)
				writeUnauthorized(w, "invalid password")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
	})
}
