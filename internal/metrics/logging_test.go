package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, status int, req *http.Request) (observer.LoggedEntry, *httptest.ResponseRecorder) {
	t.Helper()
	obs, logs := observer.New(zapcore.DebugLevel)

	handler := LoggingMiddleware(zap.New(obs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entries := logs.All()
	require.Len(t, entries, 1)
	return entries[0], rec
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/strategies", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	entry, rec := serveLogged(t, http.StatusCreated, req)
	fields := entry.ContextMap()

	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/strategies", fields["path"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, "192.168.1.1:12345", fields["client_ip"])
	assert.Contains(t, fields, "duration_ms")

	requestID := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, fields["request_id"])
}

func TestLoggingMiddleware_ReusesChiRequestID(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)
	handler := chimw.RequestID(LoggingMiddleware(zap.New(obs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-Id", "upstream-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-42", rec.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "upstream-42", logs.All()[0].ContextMap()["request_id"])
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusBadRequest, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			entry, _ := serveLogged(t, tt.status, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{"remote addr", "", "10.0.0.1:54321", "10.0.0.1:54321"},
		{"forwarded", "203.0.113.50", "10.0.0.1:54321", "203.0.113.50"},
		{"forwarded chain", "203.0.113.50, 70.41.3.18", "10.0.0.1:54321", "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
