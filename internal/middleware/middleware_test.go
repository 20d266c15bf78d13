package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("keeps the caller id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "upstream-123")
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-123", rec.Header().Get(RequestIDHeader))
		assert.Equal(t, "upstream-123", seen)
	})

	t.Run("replaces oversized ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 500))
		handler.ServeHTTP(rec, req)

		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success logs info", http.StatusOK, "INFO"},
		{"rejection logs warn", http.StatusTooManyRequests, "WARN"},
		{"server error logs error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: &buf})
			require.NoError(t, err)

			handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(tt.status)
			})))

			req := httptest.NewRequest(http.MethodPost, "/api/feedback?src=test", nil)
			req.Header.Set(RequestIDHeader, "req-7")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			out := buf.String()
			assert.Contains(t, out, tt.level)
			assert.Contains(t, out, "HTTP request completed")
			assert.Contains(t, out, "/api/feedback")
			assert.Contains(t, out, "req-7")
			assert.Contains(t, out, "src=test")
			assert.Contains(t, out, "ratelimit_remaining")
		})
	}
}
