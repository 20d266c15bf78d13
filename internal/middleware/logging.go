package middleware

import (
	"net/http"
	"time"

	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging logs every request with method, path, status and duration.
// 4xx responses, rate limit rejections included, are logged at WARN and 5xx at ERROR.
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []logging.Field{
				{Key: "method", Value: r.Method},
				{Key: "path", Value: r.URL.Path},
				{Key: "status", Value: wrapped.statusCode},
				{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
				{Key: "remote_addr", Value: r.RemoteAddr},
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, logging.Field{Key: "query", Value: r.URL.RawQuery})
			}
			if ua := r.Header.Get("User-Agent"); ua != "" {
				fields = append(fields, logging.Field{Key: "user_agent", Value: ua})
			}
			if remaining := w.Header().Get("X-RateLimit-Remaining"); remaining != "" {
				fields = append(fields, logging.Field{Key: "ratelimit_remaining", Value: remaining})
			}

			log := logger.WithContext(r.Context())
			switch {
			case wrapped.statusCode >= 500:
				log.Error("HTTP request completed", nil, fields...)
			case wrapped.statusCode >= 400:
				log.Warn("HTTP request completed", fields...)
			default:
				log.Info("HTTP request completed", fields...)
			}
		})
	}
}
