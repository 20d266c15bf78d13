package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, p *Prometheus) string {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNoopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Noop{}
	assert.NotPanics(t, func() {
		r.Decision("general", OutcomeAllowed)
		r.StoreFallback(ReasonTimeout)
		r.StoreLatency("memory", time.Millisecond)
		r.BreakerState("open")
	})
}

func TestPrometheusCounters(t *testing.T) {
	p := NewPrometheus()

	p.Decision("feedback", OutcomeAllowed)
	p.Decision("feedback", OutcomeAllowed)
	p.Decision("feedback", OutcomeRejected)
	p.StoreFallback(ReasonUnavailable)

	body := scrape(t, p)
	assert.Contains(t, body, `admission_decisions_total{limiter="feedback",outcome="allowed"} 2`)
	assert.Contains(t, body, `admission_decisions_total{limiter="feedback",outcome="rejected"} 1`)
	assert.Contains(t, body, `admission_store_fallbacks_total{reason="unavailable"} 1`)
}

func TestPrometheusBreakerGauge(t *testing.T) {
	p := NewPrometheus()
	assert.Contains(t, scrape(t, p), `admission_store_breaker_state{state="closed"} 1`)

	p.BreakerState("open")
	body := scrape(t, p)
	assert.Contains(t, body, `admission_store_breaker_state{state="closed"} 0`)
	assert.Contains(t, body, `admission_store_breaker_state{state="open"} 1`)
}

func TestPrometheusLatencyAndRuntime(t *testing.T) {
	p := NewPrometheus()
	p.StoreLatency("redis", 3*time.Millisecond)

	body := scrape(t, p)
	assert.Contains(t, body, `admission_store_duration_seconds_bucket{backend="redis",le="0.005"} 1`)
	assert.Contains(t, body, "go_goroutines")

	families, err := p.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
