package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
		wantError  string
	}{
		{"valid key", "secret-key", "secret-key", http.StatusOK, ""},
		{"missing key", "secret-key", "", http.StatusUnauthorized, "unauthorized: missing API key"},
		{"wrong key", "secret-key", "wrong-key", http.StatusUnauthorized, "unauthorized: invalid API key"},
		{"auth disabled", "", "", http.StatusOK, ""},
		{"auth disabled ignores header", "", "anything", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			wrapped := APIKeyAuth(tt.configured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/strategies", nil)
			if tt.provided != "" {
				req.Header.Set("X-API-Key", tt.provided)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			if tt.wantError == "" {
				return
			}

			var body response.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, core.ErrUnauthorized.Code, body.Code)
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}
