package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/tabsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		password       string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "open server passes everything through",
			password:       "",
			authHeader:     "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "correct password",
			password:       "secret",
			authHeader:     "Bearer secret",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			password:       "secret",
			authHeader:     "Bearer nope",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing header",
			password:       "secret",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed header",
			password:       "secret",
			authHeader:     "secret",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "case-insensitive scheme",
			password:       "secret",
			authHeader:     "bearer secret",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(setupTestLogger(), tt.password)(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusUnauthorized {
				var errResp api.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
				assert.Equal(t, "Unauthorized", errResp.Error)
			}
		})
	}
}
