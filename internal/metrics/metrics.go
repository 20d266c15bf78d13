// Package metrics records admission decisions and counter store behaviour.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for admission decisions.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Fallback reasons for the remote counter store.
const (
	ReasonUnavailable = "unavailable"
	ReasonTimeout     = "timeout"
	ReasonBreakerOpen = "breaker_open"
	ReasonError       = "error"
	ReasonData        = "data"
)

// Recorder receives admission events. Implementations must be safe for concurrent use.
type Recorder interface {
	Decision(limiter, outcome string)
	StoreFallback(reason string)
	StoreLatency(backend string, d time.Duration)
	BreakerState(state string)
}

// Noop discards everything so callers never have to nil-check their recorder.
type Noop struct{}

func (Noop) Decision(string, string)            {}
func (Noop) StoreFallback(string)               {}
func (Noop) StoreLatency(string, time.Duration) {}
func (Noop) BreakerState(string)                {}

// Prometheus implements Recorder on its own registry.
type Prometheus struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	breaker   *prometheus.GaugeVec
}

var breakerStates = []string{"closed", "half-open", "open"}

// NewPrometheus creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Rate limit decisions by limiter and outcome.",
		}, []string{"limiter", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_store_fallbacks_total",
			Help: "Remote counter store calls served by the in-memory fallback.",
		}, []string{"reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admission_store_duration_seconds",
			Help:    "Counter store increment latency.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"backend"}),
		breaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "admission_store_breaker_state",
			Help: "1 for the current state of the remote store circuit breaker.",
		}, []string{"state"}),
	}

	p.registry.MustRegister(
		p.decisions,
		p.fallbacks,
		p.latency,
		p.breaker,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p.BreakerState("closed")
	return p
}

func (p *Prometheus) Decision(limiter, outcome string) {
	p.decisions.WithLabelValues(limiter, outcome).Inc()
}

func (p *Prometheus) StoreFallback(reason string) {
	p.fallbacks.WithLabelValues(reason).Inc()
}

func (p *Prometheus) StoreLatency(backend string, d time.Duration) {
	p.latency.WithLabelValues(backend).Observe(d.Seconds())
}

func (p *Prometheus) BreakerState(state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1
		}
		p.breaker.WithLabelValues(s).Set(value)
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
