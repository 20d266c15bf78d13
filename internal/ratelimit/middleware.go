package ratelimit

import (
	"context"
	"net/http"

	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
)

type decisionKey struct{}

// DecisionFromContext returns the decision Middleware stored for the request.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// Middleware checks every request against l. Rejected requests get a 429 and
// never reach next; allowed ones carry the rate limit headers.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.config.KeyGenerator(r)
			if key == "" {
				key = UnknownClient
			}
			ctx := context.WithValue(r.Context(), logging.ClientKeyKey, key)

			d := l.Check(ctx, key)
			if !d.Allowed {
				WriteRejection(w, d, l.config.Message)
				return
			}

			SetHeaders(w, d)
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, decisionKey{}, d)))
		})
	}
}
